package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/retailfusion/internal/logger"
	"github.com/rewired-gh/retailfusion/internal/render"
	"github.com/rewired-gh/retailfusion/internal/scheduler"
	"github.com/rewired-gh/retailfusion/internal/server"
	"github.com/rewired-gh/retailfusion/internal/storage"
	"github.com/rewired-gh/retailfusion/internal/telegram"
	"github.com/rewired-gh/retailfusion/internal/viewstate"
)

const (
	defaultTitle    = "Retail Fusion"
	shutdownTimeout = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the refresh scheduler and serve the dashboard",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	journal, err := storage.New(cfg.Journal.MaxCycles, cfg.Journal.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize journal: %w", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			logger.Error("Failed to close journal: %v", err)
		}
	}()
	if err := journal.Rotate(); err != nil {
		logger.Warn("Failed to rotate journal: %v", err)
	}

	var storeOpts []viewstate.Option
	if cfg.Refresh.StrictOrdering {
		storeOpts = append(storeOpts, viewstate.WithStrictOrdering())
	}
	views := viewstate.New(storeOpts...)

	client := newBackendClient(cfg)
	sched := scheduler.New(newSource(cfg, client), views, scheduler.Config{
		Interval:        cfg.Refresh.Interval,
		AdvisoryMessage: cfg.Refresh.AdvisoryMessage,
	})
	sched.Observe(journal.ObserveCycle)

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		telegramClient.SetStatusSource(func() string {
			return telegram.FormatStatus(views.Current(), sched.Stats())
		})
		sched.Observe(telegram.NewNotifier(telegramClient).ObserveCycle)
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		AllowOrigins: cfg.Server.AllowOrigins,
		Mode:         cfg.Server.Mode,
		Render: render.Options{
			DefaultTitle:    defaultTitle,
			RefreshInterval: cfg.Refresh.Interval,
		},
	}, views, journal, sched.Stats)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Info("Shutdown signal received, cleaning up...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	logger.Info("Polling %s every %v (strict ordering: %v)", client.Name(), cfg.Refresh.Interval, cfg.Refresh.StrictOrdering)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server failed: %w", err)
		}
	}

	// Stop the scheduler first so no result lands after the surface goes away.
	sched.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown: %v", err)
	}

	stats := sched.Stats()
	logger.Info("Service stopped after %d fetches (mean latency %v)", stats.Issued, stats.Latency.Mean)
	return runErr
}

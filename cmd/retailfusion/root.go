package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/retailfusion/internal/config"
	"github.com/rewired-gh/retailfusion/internal/logger"
)

var (
	cfgFile  string
	logLevel string
	envFile  string

	// cfg is populated by the root command before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "retailfusion",
	Short: "Live retail inventory dashboard.",
	Long: `retailfusion polls an inventory backend for dashboard snapshots and serves
the live dashboard: stock metrics, a merged demand forecast, the transaction
feed, anomaly alerts and reorder recommendations.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRunE: initConfig,
}

// Execute runs the root command. It is called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults plus RETAIL_FUSION_* environment when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "loglevel", "l", "", "override log level. Available: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd, snapshotCmd, checkCmd)
}

// initConfig loads .env, the config file and the environment, then initializes logging.
func initConfig(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	loaded, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		loaded.Logging.Level = logLevel
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(loaded.Logging.Level, loaded.Logging.Format)
	if cfgFile != "" {
		logger.Debug("Configuration loaded from %s", cfgFile)
	}
	cfg = loaded
	return nil
}

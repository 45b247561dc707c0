package main

import (
	"github.com/rewired-gh/retailfusion/internal/backend"
	"github.com/rewired-gh/retailfusion/internal/config"
	"github.com/rewired-gh/retailfusion/internal/logger"
)

func newBackendClient(cfg *config.Config) *backend.Client {
	return backend.NewClient(cfg.Backend.BaseURL, cfg.Fetch.Timeout, backend.ClientConfig{
		MaxRetries:   cfg.Fetch.MaxRetries,
		RetryWaitMin: cfg.Fetch.RetryWaitMin,
		RetryWaitMax: cfg.Fetch.RetryWaitMax,
	})
}

// newSource wraps the client in a rate limiter when fetch.max_rps is set.
func newSource(cfg *config.Config, client *backend.Client) backend.Source {
	if cfg.Fetch.MaxRPS <= 0 {
		return client
	}
	logger.Debug("Client-side rate limit enabled (%.2f rps, burst %d)", cfg.Fetch.MaxRPS, cfg.Fetch.Burst)
	return backend.NewRateLimitedSource(client, cfg.Fetch.MaxRPS, cfg.Fetch.Burst)
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Server   ServerConfig   `mapstructure:"server"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BackendConfig identifies the single snapshot source
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// FetchConfig holds snapshot request tuning
type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
	MaxRPS       float64       `mapstructure:"max_rps"` // 0 = no client-side limit
	Burst        int           `mapstructure:"burst"`
}

// RefreshConfig holds scheduler and view-state behavior
type RefreshConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	StrictOrdering  bool          `mapstructure:"strict_ordering"`
	AdvisoryMessage string        `mapstructure:"advisory_message"`
}

// ServerConfig holds the dashboard HTTP surface configuration
type ServerConfig struct {
	Addr         string   `mapstructure:"addr"`
	AllowOrigins []string `mapstructure:"allow_origins"`
	Mode         string   `mapstructure:"mode"`
}

// JournalConfig holds the fetch-cycle journal configuration
type JournalConfig struct {
	DSN       string `mapstructure:"dsn"`
	MaxCycles int    `mapstructure:"max_cycles"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envKeyReplacer maps nested keys such as refresh.interval to RETAIL_FUSION_REFRESH_INTERVAL
var envKeyReplacer = strings.NewReplacer(".", "_")

// Load reads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("RETAIL_FUSION")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("failed to expand config path: %w", err)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://127.0.0.1:5000")

	// The scheduler interval doubles as the retry policy, so no transport retries by default
	v.SetDefault("fetch.timeout", "3s")
	v.SetDefault("fetch.max_retries", 0)
	v.SetDefault("fetch.retry_wait_min", "200ms")
	v.SetDefault("fetch.retry_wait_max", "1s")
	v.SetDefault("fetch.max_rps", 0.0)
	v.SetDefault("fetch.burst", 1)

	v.SetDefault("refresh.interval", "3500ms")
	v.SetDefault("refresh.strict_ordering", false)
	v.SetDefault("refresh.advisory_message", "Backend unavailable. Showing the last successful snapshot.")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.mode", "release")

	// In-memory journal: nothing survives the process
	v.SetDefault("journal.dsn", ":memory:")
	v.SetDefault("journal.max_cycles", 500)

	// Secrets are usually supplied through the environment; viper only unmarshals keys it knows about
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute http(s) URL")
	}

	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if c.Fetch.MaxRetries < 0 || c.Fetch.MaxRetries > 5 {
		return fmt.Errorf("fetch.max_retries must be between 0 and 5")
	}
	if c.Fetch.MaxRetries > 0 && c.Fetch.RetryWaitMin > c.Fetch.RetryWaitMax {
		return fmt.Errorf("fetch.retry_wait_min must not exceed fetch.retry_wait_max")
	}
	if c.Fetch.MaxRPS < 0 {
		return fmt.Errorf("fetch.max_rps must not be negative")
	}
	if c.Fetch.MaxRPS > 0 && c.Fetch.Burst < 1 {
		return fmt.Errorf("fetch.burst must be at least 1 when fetch.max_rps is set")
	}

	if c.Refresh.Interval < 100*time.Millisecond {
		return fmt.Errorf("refresh.interval must be at least 100ms")
	}
	if c.Refresh.AdvisoryMessage == "" {
		return fmt.Errorf("refresh.advisory_message is required")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return fmt.Errorf("server.mode must be one of: debug, release, test")
	}

	if c.Journal.DSN == "" {
		return fmt.Errorf("journal.dsn is required")
	}
	if c.Journal.MaxCycles < 1 {
		return fmt.Errorf("journal.max_cycles must be at least 1")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

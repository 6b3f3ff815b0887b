package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	ConfigDir string        `yaml:"config_dir" env:"FREDFLOW_CONFIG_DIR"`
	StateDir  string        `yaml:"state_dir" env:"FREDFLOW_STATE_DIR"`
	Sleep     time.Duration `yaml:"sleep" env:"FREDFLOW_SLEEP"`
	Skip      []string      `yaml:"skip" env:"FREDFLOW_SKIP" envSeparator:","`
	DryRun    bool          `yaml:"dry_run" env:"FREDFLOW_DRY_RUN"`
	Provider  struct {
		BaseURL string `yaml:"base_url" env:"FRED_BASE_URL"`
		APIKey  string `yaml:"-" env:"FRED_API_KEY"`
		Proxy   string `yaml:"proxy" env:"HTTPS_PROXY"`
	} `yaml:"provider"`
	Schedule struct {
		Cron       string `yaml:"cron" env:"FREDFLOW_CRON"`
		RunOnStart bool   `yaml:"run_on_start" env:"RUN_ON_START"`
	} `yaml:"schedule"`
	Log struct {
		Level       string `yaml:"level" env:"FREDFLOW_LOG_LEVEL"`
		Development bool   `yaml:"development" env:"FREDFLOW_LOG_DEV"`
	} `yaml:"log"`
	Metrics struct {
		Addr string `yaml:"addr" env:"FREDFLOW_METRICS_ADDR"`
	} `yaml:"metrics"`
	Telegram struct {
		BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
		ChatID   string `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
	} `yaml:"telegram"`
}

// DefaultBaseURL is the FRED REST endpoint.
const DefaultBaseURL = "https://api.stlouisfed.org/fred"

// Load reads config from a YAML file, then applies .env and environment
// variable overrides and finally defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(".env", ".env.local"); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	// Defaults
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = "config"
	}
	if cfg.StateDir == "" {
		cfg.StateDir = "state"
	}
	if cfg.Sleep == 0 {
		cfg.Sleep = 6 * time.Second
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = DefaultBaseURL
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "0 0 6 * * *"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9108"
	}

	return cfg, nil
}

func loadDotEnv(files ...string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.ConfigDir == "" {
		return errors.New("config_dir is required")
	}
	if c.StateDir == "" {
		return errors.New("state_dir is required")
	}
	if c.Sleep < 0 {
		return fmt.Errorf("sleep must not be negative, got %s", c.Sleep)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return errors.New("telegram.bot_token and telegram.chat_id must be set together")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	return nil
}

// NotifyEnabled reports whether run reports should be sent to Telegram.
func (c *Config) NotifyEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Skipped returns the skip list as a set.
func (c *Config) Skipped() map[string]bool {
	set := make(map[string]bool, len(c.Skip))
	for _, id := range c.Skip {
		if id != "" {
			set[id] = true
		}
	}
	return set
}

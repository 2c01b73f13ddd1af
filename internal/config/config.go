package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// cronParser accepts the same six-field expressions as the scheduler (seconds first).
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		Provider   string `yaml:"provider"` // "coinmarketcap" or "mock"
		BaseURL    string `yaml:"base_url"`
		APIKey     string `yaml:"api_key"`
		Limit      int    `yaml:"limit"`
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"data_source"`
	Telegram struct {
		BotToken        string   `yaml:"bot_token"`
		ChatID          string   `yaml:"chat_id"`
		APIURL          string   `yaml:"api_url"`
		TextTimeoutSec  int      `yaml:"text_timeout_sec"`
		ImageTimeoutSec int      `yaml:"image_timeout_sec"`
		MaxRetries      *int     `yaml:"max_retries"`      // unset means 2; 0 sends once
		SendsPerSecond  *float64 `yaml:"sends_per_second"` // unset means 1; 0 disables pacing
		CommandsEnabled bool     `yaml:"commands_enabled"`
	} `yaml:"telegram"`
	Schedule struct {
		IntervalSec     int    `yaml:"interval_sec"`
		RetryBackoffSec int    `yaml:"retry_backoff_sec"`
		Cron            string `yaml:"cron"`
	} `yaml:"schedule"`
	Storage struct {
		DataDir    string `yaml:"data_dir"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"storage"`
	Report struct {
		TopAssets         int     `yaml:"top_assets"`
		BigMoverThreshold float64 `yaml:"big_mover_threshold"`
	} `yaml:"report"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides and defaults.
// A missing file is not an error.
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

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		cfg.DataSource.Provider = v
	}
	if v := os.Getenv("COINMARKETCAP_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("COINMARKETCAP_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("TELEGRAM_API_URL"); v != "" {
		cfg.Telegram.APIURL = v
	}
	if v := os.Getenv("TELEGRAM_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("TELEGRAM_MAX_RETRIES: %w", err)
		}
		cfg.Telegram.MaxRetries = &n
	}
	if v := os.Getenv("TELEGRAM_SENDS_PER_SECOND"); v != "" {
		r, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_SENDS_PER_SECOND: %w", err)
		}
		cfg.Telegram.SendsPerSecond = &r
	}
	if v := os.Getenv("TELEGRAM_COMMANDS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TELEGRAM_COMMANDS: %w", err)
		}
		cfg.Telegram.CommandsEnabled = b
	}
	if err := envInt("FETCH_INTERVAL", &cfg.Schedule.IntervalSec); err != nil {
		return err
	}
	if err := envInt("RETRY_BACKOFF", &cfg.Schedule.RetryBackoffSec); err != nil {
		return err
	}
	if err := envInt("TOP_N_COINS", &cfg.DataSource.Limit); err != nil {
		return err
	}
	if v := os.Getenv("SCHEDULE_CRON"); v != "" {
		cfg.Schedule.Cron = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "coinmarketcap"
	}
	if cfg.DataSource.BaseURL == "" {
		cfg.DataSource.BaseURL = "https://pro-api.coinmarketcap.com"
	}
	if cfg.DataSource.Limit == 0 {
		cfg.DataSource.Limit = 100
	}
	if cfg.DataSource.TimeoutSec == 0 {
		cfg.DataSource.TimeoutSec = 30
	}
	if cfg.Telegram.TextTimeoutSec == 0 {
		cfg.Telegram.TextTimeoutSec = 10
	}
	if cfg.Telegram.ImageTimeoutSec == 0 {
		cfg.Telegram.ImageTimeoutSec = 60
	}
	if cfg.Telegram.MaxRetries == nil {
		n := 2
		cfg.Telegram.MaxRetries = &n
	}
	if cfg.Telegram.SendsPerSecond == nil {
		r := 1.0
		cfg.Telegram.SendsPerSecond = &r
	}
	if cfg.Schedule.IntervalSec == 0 {
		cfg.Schedule.IntervalSec = 3600
	}
	if cfg.Schedule.RetryBackoffSec == 0 {
		cfg.Schedule.RetryBackoffSec = 60
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(cfg.Storage.DataDir, "crypto_data.db")
	}
	if cfg.Report.TopAssets == 0 {
		cfg.Report.TopAssets = 5
	}
	if cfg.Report.BigMoverThreshold == 0 {
		cfg.Report.BigMoverThreshold = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	switch c.DataSource.Provider {
	case "coinmarketcap":
		if c.DataSource.APIKey == "" {
			return fmt.Errorf("data_source.api_key is required")
		}
	case "mock":
	default:
		return fmt.Errorf("data_source.provider %q is not supported", c.DataSource.Provider)
	}
	if c.DataSource.Limit < 1 {
		return fmt.Errorf("data_source.limit must be positive")
	}
	if c.Schedule.IntervalSec < 1 {
		return fmt.Errorf("schedule.interval_sec must be positive")
	}
	if c.Schedule.RetryBackoffSec < 0 {
		return fmt.Errorf("schedule.retry_backoff_sec must not be negative")
	}
	if c.Report.TopAssets < 1 {
		return fmt.Errorf("report.top_assets must be positive")
	}
	if c.Telegram.MaxRetries != nil && *c.Telegram.MaxRetries < 0 {
		return fmt.Errorf("telegram.max_retries must not be negative")
	}
	if c.Telegram.SendsPerSecond != nil && *c.Telegram.SendsPerSecond < 0 {
		return fmt.Errorf("telegram.sends_per_second must not be negative")
	}
	if c.Schedule.Cron != "" {
		if _, err := cronParser.Parse(c.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron: %w", err)
		}
	}
	return nil
}

// Interval returns the pause between cycles.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Schedule.IntervalSec) * time.Second
}

// RetryBackoff returns the pause after a cycle that failed unexpectedly.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Schedule.RetryBackoffSec) * time.Second
}

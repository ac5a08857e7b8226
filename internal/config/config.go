package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Sheets   SheetsConfig   `mapstructure:"sheets"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SheetsConfig holds spreadsheet access and section layout configuration
type SheetsConfig struct {
	APIKey        string          `mapstructure:"api_key"`
	SpreadsheetID string          `mapstructure:"spreadsheet_id"`
	Timeout       time.Duration   `mapstructure:"timeout"`
	PollInterval  time.Duration   `mapstructure:"poll_interval"`
	AllDay        FeedConfig      `mapstructure:"allday"`
	SevenDay      FeedConfig      `mapstructure:"sevenday"`
	Floor         []SectionConfig `mapstructure:"floor"`
	Signal        SignalConfig    `mapstructure:"signal"`
}

// FeedConfig is a two-sided feed: one range of buying rows, one of selling.
type FeedConfig struct {
	BuyingRange  string `mapstructure:"buying_range"`
	SellingRange string `mapstructure:"selling_range"`
}

// SectionConfig is one named single-block intraday section.
type SectionConfig struct {
	Name  string `mapstructure:"name"`
	Range string `mapstructure:"range"`
}

// SignalConfig is the watched signal cell (for example an SPX 0DTE flag).
type SignalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cell    string `mapstructure:"cell"`
	Label   string `mapstructure:"label"`
}

// AlertsConfig holds alert engine thresholds and switches
type AlertsConfig struct {
	DollarThreshold      float64 `mapstructure:"dollar_threshold"`
	QtyThreshold         float64 `mapstructure:"qty_threshold"`
	NoveltyEnabled       bool    `mapstructure:"novelty_enabled"`
	ConfirmationEnabled  bool    `mapstructure:"confirmation_enabled"`
	OppositeEnabled      bool    `mapstructure:"opposite_enabled"`
	TopExpiries          int     `mapstructure:"top_expiries"`
	ConfirmationMinTotal float64 `mapstructure:"confirmation_min_total"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken string   `mapstructure:"bot_token"`
	ChatIDs  []string `mapstructure:"chat_ids"`
	Enabled  bool     `mapstructure:"enabled"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ScheduleConfig gates polling to market hours
type ScheduleConfig struct {
	MarketHoursOnly bool   `mapstructure:"market_hours_only"`
	Timezone        string `mapstructure:"timezone"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	FilePath string `mapstructure:"file_path"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("FLOWSENTRY")
	v.AutomaticEnv()
	// Secrets routinely come from the environment rather than the file
	_ = v.BindEnv("sheets.api_key", "FLOWSENTRY_SHEETS_API_KEY")
	_ = v.BindEnv("telegram.bot_token", "FLOWSENTRY_TELEGRAM_BOT_TOKEN")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Sheets defaults
	v.SetDefault("sheets.timeout", "30s")
	v.SetDefault("sheets.poll_interval", "5m")
	v.SetDefault("sheets.signal.enabled", false)
	v.SetDefault("sheets.signal.label", "SPX 0DTE")

	// Alert defaults
	v.SetDefault("alerts.dollar_threshold", 500000.0)
	v.SetDefault("alerts.qty_threshold", 1000.0)
	v.SetDefault("alerts.novelty_enabled", true)
	v.SetDefault("alerts.confirmation_enabled", true)
	v.SetDefault("alerts.opposite_enabled", true)
	v.SetDefault("alerts.top_expiries", 5)
	v.SetDefault("alerts.confirmation_min_total", 0.0)

	// Schedule defaults
	v.SetDefault("schedule.market_hours_only", true)
	v.SetDefault("schedule.timezone", "America/New_York")

	// Storage defaults: empty db_path falls back to a temp-dir database

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file_path", "")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Sheets config
	if c.Sheets.APIKey == "" {
		return fmt.Errorf("sheets.api_key is required")
	}
	if c.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("sheets.spreadsheet_id is required")
	}
	if c.Sheets.PollInterval < 1*time.Minute {
		return fmt.Errorf("sheets.poll_interval must be at least 1 minute")
	}
	hasSection := c.Sheets.AllDay.BuyingRange != "" || c.Sheets.AllDay.SellingRange != "" ||
		c.Sheets.SevenDay.BuyingRange != "" || c.Sheets.SevenDay.SellingRange != "" ||
		len(c.Sheets.Floor) > 0
	if !hasSection {
		return fmt.Errorf("sheets must configure at least one section range")
	}
	for i, section := range c.Sheets.Floor {
		if section.Name == "" {
			return fmt.Errorf("sheets.floor[%d].name is required", i)
		}
		if section.Range == "" {
			return fmt.Errorf("sheets.floor[%d].range is required", i)
		}
	}
	if c.Sheets.Signal.Enabled && c.Sheets.Signal.Cell == "" {
		return fmt.Errorf("sheets.signal.cell is required when the signal watcher is enabled")
	}

	// Validate Alerts config
	if c.Alerts.DollarThreshold < 0 {
		return fmt.Errorf("alerts.dollar_threshold must not be negative")
	}
	if c.Alerts.QtyThreshold < 0 {
		return fmt.Errorf("alerts.qty_threshold must not be negative")
	}
	if c.Alerts.TopExpiries < 1 {
		return fmt.Errorf("alerts.top_expiries must be at least 1")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if len(c.Telegram.ChatIDs) == 0 {
			return fmt.Errorf("telegram.chat_ids must contain at least one chat when telegram is enabled")
		}
	}

	// Validate Schedule config
	if c.Schedule.MarketHoursOnly {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone is invalid: %w", err)
		}
	}

	// Validate Logging config
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

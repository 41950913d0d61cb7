package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/argus/internal/risk"
)

// Config represents the complete application configuration
type Config struct {
	Detector  DetectorConfig  `mapstructure:"detector"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Server    ServerConfig    `mapstructure:"server"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DetectorConfig holds the comment scoring weights and result limits
type DetectorConfig struct {
	Threshold       float64 `mapstructure:"threshold"`
	PatternWeight   float64 `mapstructure:"pattern_weight"`
	ChildTermWeight float64 `mapstructure:"child_term_weight"`
	BaseProbability float64 `mapstructure:"base_probability"`
	MaxProbability  float64 `mapstructure:"max_probability"`
	TopUsers        int     `mapstructure:"top_users"`
	TopPosts        int     `mapstructure:"top_posts"`
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	DBPath      string `mapstructure:"db_path"`
	MaxSessions int    `mapstructure:"max_sessions"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	MinLevel       string        `mapstructure:"min_level"`
}

// ServerConfig holds the dashboard API configuration
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	PageSize        int           `mapstructure:"page_size"`
}

// DashboardConfig holds the client configuration for a remote dashboard API
type DashboardConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	CSRFToken  string        `mapstructure:"csrf_token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path loads defaults and environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// ARGUS_TELEGRAM_BOT_TOKEN overrides telegram.bot_token, and so on.
	v.SetEnvPrefix("ARGUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
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
	// Detector defaults
	v.SetDefault("detector.threshold", 0.5)
	v.SetDefault("detector.pattern_weight", 0.5)
	v.SetDefault("detector.child_term_weight", 0.15)
	v.SetDefault("detector.base_probability", 0.05)
	v.SetDefault("detector.max_probability", 0.95)
	v.SetDefault("detector.top_users", 100)
	v.SetDefault("detector.top_posts", 100)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/argus.db")
	v.SetDefault("storage.max_sessions", 100)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")
	v.SetDefault("telegram.min_level", string(risk.LevelLow))

	// Server defaults
	v.SetDefault("server.listen_addr", "127.0.0.1:8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.page_size", 50)

	// Dashboard client defaults
	v.SetDefault("dashboard.base_url", "")
	v.SetDefault("dashboard.csrf_token", "")
	v.SetDefault("dashboard.timeout", "30s")
	v.SetDefault("dashboard.max_retries", 3)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Detector config
	d := c.Detector
	if d.Threshold < 0.0 || d.Threshold > 1.0 {
		return fmt.Errorf("detector.threshold must be between 0.0 and 1.0")
	}
	if d.PatternWeight < 0 || d.ChildTermWeight < 0 {
		return fmt.Errorf("detector weights must not be negative")
	}
	if d.BaseProbability < 0.0 || d.MaxProbability > 1.0 || d.BaseProbability > d.MaxProbability {
		return fmt.Errorf("detector probabilities must satisfy 0 <= base_probability <= max_probability <= 1")
	}
	if d.TopUsers < 1 {
		return fmt.Errorf("detector.top_users must be at least 1")
	}
	if d.TopPosts < 1 {
		return fmt.Errorf("detector.top_posts must be at least 1")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxSessions < 1 {
		return fmt.Errorf("storage.max_sessions must be at least 1")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	if _, err := risk.ParseLevel(c.Telegram.MinLevel); err != nil {
		return fmt.Errorf("telegram.min_level must be one of: safe, low, medium, high")
	}

	// Validate Server config
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if c.Server.PageSize < 1 {
		return fmt.Errorf("server.page_size must be at least 1")
	}

	// Validate Dashboard config
	if c.Dashboard.MaxRetries < 1 {
		return fmt.Errorf("dashboard.max_retries must be at least 1")
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

package config

import (
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoadAndValidate(t *testing.T) {
	content := `
detector:
  threshold: 0.6
  pattern_weight: 0.4
  top_users: 20

storage:
  db_path: "./data/test.db"

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true
  min_level: medium

server:
  listen_addr: "0.0.0.0:9090"
  page_size: 25

dashboard:
  base_url: "http://dashboard.local"
  csrf_token: "abc"

logging:
  level: "debug"
  format: "json"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Detector.Threshold != 0.6 {
		t.Errorf("Unexpected threshold: %f", cfg.Detector.Threshold)
	}
	if cfg.Detector.PatternWeight != 0.4 {
		t.Errorf("Unexpected pattern weight: %f", cfg.Detector.PatternWeight)
	}
	// Not in file, falls back to default
	if cfg.Detector.ChildTermWeight != 0.15 {
		t.Errorf("Unexpected child term weight: %f", cfg.Detector.ChildTermWeight)
	}
	if cfg.Detector.TopUsers != 20 || cfg.Detector.TopPosts != 100 {
		t.Errorf("Unexpected top limits: users=%d posts=%d", cfg.Detector.TopUsers, cfg.Detector.TopPosts)
	}
	if cfg.Storage.DBPath != "./data/test.db" {
		t.Errorf("Unexpected db path: %s", cfg.Storage.DBPath)
	}
	if cfg.Telegram.RetryDelayBase != time.Second {
		t.Errorf("Unexpected retry delay: %v", cfg.Telegram.RetryDelayBase)
	}
	if cfg.Telegram.MinLevel != "medium" {
		t.Errorf("Unexpected min level: %s", cfg.Telegram.MinLevel)
	}
	if cfg.Server.ListenAddr != "0.0.0.0:9090" || cfg.Server.PageSize != 25 {
		t.Errorf("Unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Unexpected shutdown timeout: %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Dashboard.BaseURL != "http://dashboard.local" || cfg.Dashboard.CSRFToken != "abc" {
		t.Errorf("Unexpected dashboard config: %+v", cfg.Dashboard)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Storage.DBPath != "./data/argus.db" {
		t.Errorf("Unexpected default db path: %s", cfg.Storage.DBPath)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ARGUS_TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("ARGUS_STORAGE_DB_PATH", "/tmp/env.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Telegram.BotToken != "from-env" {
		t.Errorf("Expected bot token from env, got %q", cfg.Telegram.BotToken)
	}
	if cfg.Storage.DBPath != "/tmp/env.db" {
		t.Errorf("Expected db path from env, got %q", cfg.Storage.DBPath)
	}
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	example, err := Load("../../configs/config.example.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := example.Validate(); err != nil {
		t.Fatalf("example config should validate: %v", err)
	}
	defaults, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *example != *defaults {
		t.Errorf("example config drifted from defaults:\n%+v\n%+v", example, defaults)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/argus.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func validConfig() *Config {
	return &Config{
		Detector: DetectorConfig{
			Threshold:       0.5,
			PatternWeight:   0.5,
			ChildTermWeight: 0.15,
			BaseProbability: 0.05,
			MaxProbability:  0.95,
			TopUsers:        100,
			TopPosts:        100,
		},
		Storage:   StorageConfig{DBPath: "./data/test.db", MaxSessions: 10},
		Telegram:  TelegramConfig{MinLevel: "low"},
		Server:    ServerConfig{ListenAddr: "127.0.0.1:8080", PageSize: 50},
		Dashboard: DashboardConfig{MaxRetries: 3},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "missing telegram token when enabled",
			mutate: func(c *Config) {
				c.Telegram.Enabled = true
				c.Telegram.ChatID = "1"
			},
			wantErr: true,
		},
		{
			name:    "invalid threshold",
			mutate:  func(c *Config) { c.Detector.Threshold = 1.5 },
			wantErr: true,
		},
		{
			name:    "base above max probability",
			mutate:  func(c *Config) { c.Detector.BaseProbability = 0.99 },
			wantErr: true,
		},
		{
			name:    "zero top users",
			mutate:  func(c *Config) { c.Detector.TopUsers = 0 },
			wantErr: true,
		},
		{
			name:    "empty db path",
			mutate:  func(c *Config) { c.Storage.DBPath = "" },
			wantErr: true,
		},
		{
			name:    "zero max sessions",
			mutate:  func(c *Config) { c.Storage.MaxSessions = 0 },
			wantErr: true,
		},
		{
			name:    "unknown min level",
			mutate:  func(c *Config) { c.Telegram.MinLevel = "critical" },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

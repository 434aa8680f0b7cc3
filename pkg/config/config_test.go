package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Malformed(t *testing.T) {
	reader := strings.NewReader(`{ "api_base_url": `)
	_, err := LoadConfig(reader)
	if err == nil {
		t.Error("Expected error loading malformed config, got nil")
	}
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	cfg, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestSaveConfig(t *testing.T) {
	tmpPath := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.APIBaseURL = "http://node.local:9000/api"
	cfg.DefaultTab = "history"
	cfg.PrivacyMode = true

	if err := SaveConfig(cfg, tmpPath); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfigFromFile(tmpPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded != cfg {
		t.Errorf("round trip mismatch: got %+v want %+v", loaded, cfg)
	}
}

func TestLoadConfig_TableDriven(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		jsonContent string
		expectError bool
		validate    func(*testing.T, Config)
	}{
		{
			name: "Full Config",
			jsonContent: `{
				"api_base_url": "https://node.example/api",
				"stats_interval_seconds": 5,
				"balances_interval_seconds": 15,
				"notification_millis": 1500,
				"default_tab": "Keys",
				"desktop_alerts": true
			}`,
			validate: func(t *testing.T, c Config) {
				if c.APIBaseURL != "https://node.example/api" {
					t.Errorf("URL mismatch: %s", c.APIBaseURL)
				}
				if c.StatsInterval() != 5*time.Second || c.BalancesInterval() != 15*time.Second {
					t.Errorf("interval mismatch")
				}
				if c.NotificationDuration() != 1500*time.Millisecond {
					t.Errorf("notification duration mismatch")
				}
				if c.DefaultTab != "keys" {
					t.Errorf("expected normalized tab, got %s", c.DefaultTab)
				}
				if !c.DesktopAlerts {
					t.Errorf("desktop alerts not set")
				}
			},
		},
		{
			name:        "Partial Config (Defaults)",
			jsonContent: `{"log_level": "debug"}`,
			validate: func(t *testing.T, c Config) {
				if c.StatsIntervalSeconds != 30 {
					t.Errorf("Expected default stats interval 30, got %d", c.StatsIntervalSeconds)
				}
				if c.BalancesIntervalSeconds != 60 {
					t.Errorf("Expected default balances interval 60, got %d", c.BalancesIntervalSeconds)
				}
				if c.NotificationMillis != 3000 {
					t.Errorf("Expected default notification 3000ms, got %d", c.NotificationMillis)
				}
				if c.LogLevel != "debug" {
					t.Errorf("log level mismatch")
				}
			},
		},
		{
			name:        "Malformed JSON",
			jsonContent: `{ "default_tab": [ unclosed_array`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := LoadConfig(strings.NewReader(tt.jsonContent))

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"empty url", func(c *Config) { c.APIBaseURL = "" }, false},
		{"no scheme", func(c *Config) { c.APIBaseURL = "localhost:8080/api" }, false},
		{"zero stats interval", func(c *Config) { c.StatsIntervalSeconds = 0 }, false},
		{"negative balances interval", func(c *Config) { c.BalancesIntervalSeconds = -1 }, false},
		{"zero notification", func(c *Config) { c.NotificationMillis = 0 }, false},
		{"unknown tab", func(c *Config) { c.DefaultTab = "settings" }, false},
		{"bad level", func(c *Config) { c.LogLevel = "chatty" }, false},
		{"bad port", func(c *Config) { c.ServerPort = 70000 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "DUXWATCH_API_URL=http://from-file/api\nDUXWATCH_SERVER_PORT=9100\n"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvAPIURL, "http://from-env/api")

	cfg := Default()
	if err := ApplyEnv(&cfg, envFile); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.APIBaseURL != "http://from-env/api" {
		t.Errorf("environment should win over file, got %s", cfg.APIBaseURL)
	}
	if cfg.ServerPort != 9100 {
		t.Errorf("expected port from file, got %d", cfg.ServerPort)
	}

	if err := ApplyEnv(&cfg, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored: %v", err)
	}

	t.Setenv(EnvServerPort, "abc")
	if err := ApplyEnv(&cfg, ""); err == nil {
		t.Error("expected error for non-numeric port")
	}
}

func TestRestoreLastBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	first := Default()
	first.ServerPort = 9001
	if err := SaveConfig(first, path); err != nil {
		t.Fatal(err)
	}
	second := Default()
	second.ServerPort = 9002
	if err := SaveConfig(second, path); err != nil {
		t.Fatal(err)
	}

	backup, err := RestoreLastBackup(path)
	if err != nil {
		t.Fatalf("RestoreLastBackup failed: %v", err)
	}
	if !strings.HasSuffix(backup, ".bak") {
		t.Errorf("unexpected backup path %s", backup)
	}
	restored, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if restored.ServerPort != 9001 {
		t.Errorf("expected restored port 9001, got %d", restored.ServerPort)
	}

	if _, err := RestoreLastBackup(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Error("expected error when no backups exist")
	}
}

func TestSaveConfig_PermissionError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	tmpDir := t.TempDir()
	if err := os.Chmod(tmpDir, 0500); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chmod(tmpDir, 0700) }()

	err := SaveConfig(Default(), filepath.Join(tmpDir, "config.json"))
	if err == nil {
		t.Error("Expected permission error, got nil")
	}
}

func TestSaveConfig_RejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.StatsIntervalSeconds = 0
	if err := SaveConfig(cfg, filepath.Join(t.TempDir(), "c.json")); err == nil {
		t.Error("expected validation error")
	}
}

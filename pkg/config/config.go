package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"duxwatch/pkg/tabs"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

const ConfigFileName = ".duxwatch.json"

const (
	DefaultAPIBaseURL              = "http://localhost:8080/api"
	DefaultRequestTimeoutSeconds   = 10
	DefaultStatsIntervalSeconds    = 30
	DefaultBalancesIntervalSeconds = 60
	DefaultNotificationMillis      = 3000
	DefaultLogLevel                = "info"
	DefaultServerPort              = 8090
)

// Environment variables that override the file.
const (
	EnvAPIURL     = "DUXWATCH_API_URL"
	EnvLogLevel   = "DUXWATCH_LOG_LEVEL"
	EnvServerPort = "DUXWATCH_SERVER_PORT"
)

// Config holds application-wide settings.
type Config struct {
	APIBaseURL              string `json:"api_base_url"`
	RequestTimeoutSeconds   int    `json:"request_timeout_seconds"`
	StatsIntervalSeconds    int    `json:"stats_interval_seconds"`
	BalancesIntervalSeconds int    `json:"balances_interval_seconds"`
	NotificationMillis      int    `json:"notification_millis"`
	DefaultTab              string `json:"default_tab"`
	LogLevel                string `json:"log_level"`
	LogFile                 string `json:"log_file,omitempty"`
	ServerPort              int    `json:"server_port"`
	DesktopAlerts           bool   `json:"desktop_alerts"`
	PrivacyMode             bool   `json:"privacy_mode"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIBaseURL:              DefaultAPIBaseURL,
		RequestTimeoutSeconds:   DefaultRequestTimeoutSeconds,
		StatsIntervalSeconds:    DefaultStatsIntervalSeconds,
		BalancesIntervalSeconds: DefaultBalancesIntervalSeconds,
		NotificationMillis:      DefaultNotificationMillis,
		DefaultTab:              string(tabs.Balances),
		LogLevel:                DefaultLogLevel,
		ServerPort:              DefaultServerPort,
	}
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c Config) StatsInterval() time.Duration {
	return time.Duration(c.StatsIntervalSeconds) * time.Second
}

func (c Config) BalancesInterval() time.Duration {
	return time.Duration(c.BalancesIntervalSeconds) * time.Second
}

func (c Config) NotificationDuration() time.Duration {
	return time.Duration(c.NotificationMillis) * time.Millisecond
}

// Validate reports the first setting that would make the client misbehave.
func (c Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.APIBaseURL))
	if c.APIBaseURL == "" || err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("validation failed: api_base_url %q is not an http(s) URL", c.APIBaseURL)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("validation failed: request_timeout_seconds must be positive")
	}
	if c.StatsIntervalSeconds <= 0 {
		return fmt.Errorf("validation failed: stats_interval_seconds must be positive")
	}
	if c.BalancesIntervalSeconds <= 0 {
		return fmt.Errorf("validation failed: balances_interval_seconds must be positive")
	}
	if c.NotificationMillis <= 0 {
		return fmt.Errorf("validation failed: notification_millis must be positive")
	}
	if _, ok := tabs.ParseTab(c.DefaultTab); !ok {
		return fmt.Errorf("validation failed: unknown default_tab %q", c.DefaultTab)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("validation failed: log_level: %w", err)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("validation failed: server_port %d out of range", c.ServerPort)
	}
	return nil
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

func LoadConfig(r io.Reader) (Config, error) {
	var raw struct {
		APIBaseURL              *string `json:"api_base_url"`
		RequestTimeoutSeconds   *int    `json:"request_timeout_seconds"`
		StatsIntervalSeconds    *int    `json:"stats_interval_seconds"`
		BalancesIntervalSeconds *int    `json:"balances_interval_seconds"`
		NotificationMillis      *int    `json:"notification_millis"`
		DefaultTab              *string `json:"default_tab"`
		LogLevel                *string `json:"log_level"`
		LogFile                 *string `json:"log_file"`
		ServerPort              *int    `json:"server_port"`
		DesktopAlerts           *bool   `json:"desktop_alerts"`
		PrivacyMode             *bool   `json:"privacy_mode"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if raw.APIBaseURL != nil {
		cfg.APIBaseURL = *raw.APIBaseURL
	}
	if raw.RequestTimeoutSeconds != nil {
		cfg.RequestTimeoutSeconds = *raw.RequestTimeoutSeconds
	}
	if raw.StatsIntervalSeconds != nil {
		cfg.StatsIntervalSeconds = *raw.StatsIntervalSeconds
	}
	if raw.BalancesIntervalSeconds != nil {
		cfg.BalancesIntervalSeconds = *raw.BalancesIntervalSeconds
	}
	if raw.NotificationMillis != nil {
		cfg.NotificationMillis = *raw.NotificationMillis
	}
	if raw.DefaultTab != nil {
		cfg.DefaultTab = strings.ToLower(strings.TrimSpace(*raw.DefaultTab))
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = *raw.LogLevel
	}
	if raw.LogFile != nil {
		cfg.LogFile = *raw.LogFile
	}
	if raw.ServerPort != nil {
		cfg.ServerPort = *raw.ServerPort
	}
	if raw.DesktopAlerts != nil {
		cfg.DesktopAlerts = *raw.DesktopAlerts
	}
	if raw.PrivacyMode != nil {
		cfg.PrivacyMode = *raw.PrivacyMode
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from the process environment. Values in envFile
// (a dotenv file, ignored when missing) are used only for variables the
// environment does not set.
func ApplyEnv(cfg *Config, envFile string) error {
	vals := map[string]string{}
	if envFile != "" {
		fileVals, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read %s: %w", envFile, err)
		}
		for k, v := range fileVals {
			vals[k] = v
		}
	}
	for _, key := range []string{EnvAPIURL, EnvLogLevel, EnvServerPort} {
		if v, ok := os.LookupEnv(key); ok {
			vals[key] = v
		}
	}

	if v := vals[EnvAPIURL]; v != "" {
		cfg.APIBaseURL = v
	}
	if v := vals[EnvLogLevel]; v != "" {
		cfg.LogLevel = v
	}
	if v := vals[EnvServerPort]; v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvServerPort, err)
		}
		cfg.ServerPort = port
	}
	return nil
}

func SaveConfig(cfg Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return fmt.Errorf("validation failed: encoded configuration is empty")
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0644); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// RestoreLastBackup copies the newest timestamped backup over configPath
// and returns the backup's path.
func RestoreLastBackup(configPath string) (string, error) {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no backup files found for %s", configPath)
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return "", err
	}
	if _, err := LoadConfig(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("backup %s is not a valid config: %w", lastBackup, err)
	}
	return lastBackup, os.WriteFile(configPath, data, 0644)
}

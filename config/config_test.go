package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var configKeys = []string{
	"HR_API_URL", "HR_API_TIMEOUT", "TELEGRAM_BOT_TOKEN", "AUTHORIZED_CHAT_ID",
	"SESSION_DB_PATH", "LISTEN_ADDR", "SCANNER_TOKEN", "GEOCODER_URL",
	"GEOCODER_USER_AGENT", "QR_SCAN_ENABLED", "SCAN_REARM_DELAY", "LOCATION_MAX_AGE",
}

// clearEnv isolates a test from the developer's environment
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
}

func writeConfigFile(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.HRBaseURL != defaultHRBaseURL || cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("HR backend = %s (%v)", cfg.HRBaseURL, cfg.HTTPTimeout)
	}
	if !cfg.QRScanEnabled || cfg.ScanRearmDelay != 3*time.Second || cfg.LocationMaxAge != 10*time.Minute {
		t.Errorf("flow settings = %v %v %v", cfg.QRScanEnabled, cfg.ScanRearmDelay, cfg.LocationMaxAge)
	}
	if cfg.SessionDBPath != "hrbot.db" || cfg.ListenAddr != ":8081" {
		t.Errorf("storage = %s %s", cfg.SessionDBPath, cfg.ListenAddr)
	}
}

func TestLoadConfigRequiresBotToken(t *testing.T) {
	clearEnv(t)

	if _, err := LoadConfig(); !errors.Is(err, ErrMissingBotToken) {
		t.Errorf("LoadConfig() error = %v, want %v", err, ErrMissingBotToken)
	}
}

func TestLoadConfigEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("HR_API_URL", "https://hr.example.com/")
	t.Setenv("HR_API_TIMEOUT", "30s")
	t.Setenv("QR_SCAN_ENABLED", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.HRBaseURL != "https://hr.example.com" {
		t.Errorf("HRBaseURL = %q, want trailing slash trimmed", cfg.HRBaseURL)
	}
	if cfg.HTTPTimeout != 30*time.Second || cfg.QRScanEnabled {
		t.Errorf("HTTPTimeout = %v, QRScanEnabled = %v", cfg.HTTPTimeout, cfg.QRScanEnabled)
	}
}

func TestLoadConfigInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "Bad duration", key: "HR_API_TIMEOUT", value: "ten seconds"},
		{name: "Negative duration", key: "SCAN_REARM_DELAY", value: "-3s"},
		{name: "Bad bool", key: "QR_SCAN_ENABLED", value: "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
			t.Setenv(tt.key, tt.value)

			if _, err := LoadConfig(); err == nil {
				t.Errorf("LoadConfig() with %s=%q succeeded", tt.key, tt.value)
			}
		})
	}
}

func TestLoadConfigFileOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_SECRET", "from-env-placeholder")
	t.Setenv("LISTEN_ADDR", ":9000")
	writeConfigFile(t, `
telegram_bot_token: ${BOT_SECRET}
hr_api_url: http://hr.internal:8080
listen_addr: ":7000"
location_max_age: 5m
qr_scan_enabled: "false"
`)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.TelegramBotToken != "from-env-placeholder" {
		t.Errorf("TelegramBotToken = %q, want placeholder substituted", cfg.TelegramBotToken)
	}
	if cfg.HRBaseURL != "http://hr.internal:8080" || cfg.LocationMaxAge != 5*time.Minute || cfg.QRScanEnabled {
		t.Errorf("overlay not applied: %+v", cfg)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q, environment must win over file", cfg.ListenAddr)
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	writeConfigFile(t, "listen_addr: [unclosed")

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() with malformed YAML succeeded")
	}
}

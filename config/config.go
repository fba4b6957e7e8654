package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrMissingBotToken = errors.New("TELEGRAM_BOT_TOKEN is required")

type Config struct {
	// HR backend
	HRBaseURL   string // e.g. http://localhost:8080
	HTTPTimeout time.Duration

	// Telegram Bot
	TelegramBotToken string
	AuthorizedChatID string // receives operational notices

	// Local storage and HTTP server
	SessionDBPath string
	ListenAddr    string
	ScannerToken  string // shared secret for /api/scan

	// Reverse geocoding
	GeocoderURL       string
	GeocoderUserAgent string

	// Check-in flow
	QRScanEnabled  bool
	ScanRearmDelay time.Duration
	LocationMaxAge time.Duration
}

// fileConfig mirrors Config for the YAML overlay. Durations and booleans are
// strings so that unset keys can be told apart from zero values.
type fileConfig struct {
	HRBaseURL         string `yaml:"hr_api_url"`
	HTTPTimeout       string `yaml:"hr_api_timeout"`
	TelegramBotToken  string `yaml:"telegram_bot_token"`
	AuthorizedChatID  string `yaml:"authorized_chat_id"`
	SessionDBPath     string `yaml:"session_db_path"`
	ListenAddr        string `yaml:"listen_addr"`
	ScannerToken      string `yaml:"scanner_token"`
	GeocoderURL       string `yaml:"geocoder_url"`
	GeocoderUserAgent string `yaml:"geocoder_user_agent"`
	QRScanEnabled     string `yaml:"qr_scan_enabled"`
	ScanRearmDelay    string `yaml:"scan_rearm_delay"`
	LocationMaxAge    string `yaml:"location_max_age"`
}

const (
	defaultHRBaseURL      = "http://localhost:8080"
	defaultHTTPTimeout    = 10 * time.Second
	defaultSessionDBPath  = "hrbot.db"
	defaultListenAddr     = ":8081"
	defaultGeocoderURL    = "https://nominatim.openstreetmap.org"
	defaultUserAgent      = "hr-attendance-bot/1.0"
	defaultScanRearmDelay = 3 * time.Second
	defaultLocationMaxAge = 10 * time.Minute
)

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("godotenv.Load() error: %v", err)
	}

	overlay, err := loadFile(getEnv("CONFIG_FILE", "config.yaml"))
	if err != nil {
		return nil, err
	}

	pick := func(envKey, fileValue, def string) string {
		if v := os.Getenv(envKey); v != "" {
			return v
		}
		if fileValue != "" {
			return fileValue
		}
		return def
	}

	cfg := &Config{
		HRBaseURL:         pick("HR_API_URL", overlay.HRBaseURL, defaultHRBaseURL),
		TelegramBotToken:  pick("TELEGRAM_BOT_TOKEN", overlay.TelegramBotToken, ""),
		AuthorizedChatID:  pick("AUTHORIZED_CHAT_ID", overlay.AuthorizedChatID, ""),
		SessionDBPath:     pick("SESSION_DB_PATH", overlay.SessionDBPath, defaultSessionDBPath),
		ListenAddr:        pick("LISTEN_ADDR", overlay.ListenAddr, defaultListenAddr),
		ScannerToken:      pick("SCANNER_TOKEN", overlay.ScannerToken, ""),
		GeocoderURL:       pick("GEOCODER_URL", overlay.GeocoderURL, defaultGeocoderURL),
		GeocoderUserAgent: pick("GEOCODER_USER_AGENT", overlay.GeocoderUserAgent, defaultUserAgent),
	}

	if cfg.HTTPTimeout, err = parseDuration("HR_API_TIMEOUT", pick("HR_API_TIMEOUT", overlay.HTTPTimeout, ""), defaultHTTPTimeout); err != nil {
		return nil, err
	}
	if cfg.ScanRearmDelay, err = parseDuration("SCAN_REARM_DELAY", pick("SCAN_REARM_DELAY", overlay.ScanRearmDelay, ""), defaultScanRearmDelay); err != nil {
		return nil, err
	}
	if cfg.LocationMaxAge, err = parseDuration("LOCATION_MAX_AGE", pick("LOCATION_MAX_AGE", overlay.LocationMaxAge, ""), defaultLocationMaxAge); err != nil {
		return nil, err
	}

	cfg.QRScanEnabled = true
	if v := pick("QR_SCAN_ENABLED", overlay.QRScanEnabled, ""); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid QR_SCAN_ENABLED value: %w", err)
		}
		cfg.QRScanEnabled = enabled
	}

	cfg.HRBaseURL = strings.TrimRight(cfg.HRBaseURL, "/")
	if cfg.TelegramBotToken == "" {
		return nil, ErrMissingBotToken
	}

	return cfg, nil
}

// loadFile reads the YAML overlay at path, substituting ${VAR} placeholders
// from the environment. A missing file yields an empty overlay.
func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &fileConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	content := string(data)
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		placeholder := "${" + pair[0] + "}"
		content = strings.ReplaceAll(content, placeholder, pair[1])
	}

	var fc fileConfig
	if err := yaml.Unmarshal([]byte(content), &fc); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	log.Printf("Config overlay loaded from %s", path)
	return &fc, nil
}

func parseDuration(key, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s value: must be positive", key)
	}
	return d, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

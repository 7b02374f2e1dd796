// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	DBPath          string
	LogLevel        slog.Level
	ProjectIdleTTL  time.Duration
	HistoryRetain   time.Duration
	ConversationLog ConversationLogConfig
	Telemetry       TelemetryConfig
	RateLimit       RateLimitConfig
	Dialogue        DialogueConfig
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// TelemetryConfig controls where dialogue history is uploaded. An empty URL
// keeps history in the local database only.
type TelemetryConfig struct {
	URL       string
	Path      string
	Timeout   time.Duration
	UI        string
	QueueSize int
}

// RateLimitConfig bounds requests per user.
type RateLimitConfig struct {
	RequestsPerWindow  int
	WindowDuration     time.Duration
	MaxRequestBodySize int64
}

// DialogueConfig points the engine at its content and seeds its randomness.
type DialogueConfig struct {
	ContentPath string
	CatalogPath string
	Seed        uint64
	RecentCache int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/cadence.db"),
		LogLevel:       getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		ProjectIdleTTL: getEnvDuration("PROJECT_IDLE_TTL", 2*time.Hour),
		HistoryRetain:  getEnvDuration("HISTORY_RETAIN", 90*24*time.Hour),
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
		Telemetry: TelemetryConfig{
			URL:       getEnv("TELEMETRY_URL", ""),
			Path:      getEnv("TELEMETRY_PATH", "/studies/caihistory"),
			Timeout:   getEnvDuration("TELEMETRY_TIMEOUT", 5*time.Second),
			UI:        getEnv("TELEMETRY_UI", "CAI"),
			QueueSize: getEnvInt("TELEMETRY_QUEUE_SIZE", 1000),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow:  getEnvInt("RATE_LIMIT_REQUESTS", 60),
			WindowDuration:     getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 1<<20)),
		},
		Dialogue: DialogueConfig{
			ContentPath: getEnv("DIALOGUE_CONTENT", ""),
			CatalogPath: getEnv("SOUND_CATALOG", ""),
			Seed:        uint64(getEnvInt("RANDOM_SEED", 0)),
			RecentCache: getEnvInt("RECENT_SCRIPT_CACHE", 1024),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	if c.Telemetry.Timeout <= 0 {
		return fmt.Errorf("TELEMETRY_TIMEOUT must be > 0")
	}
	if c.Telemetry.QueueSize <= 0 {
		return fmt.Errorf("TELEMETRY_QUEUE_SIZE must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.RateLimit.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.Dialogue.RecentCache <= 0 {
		return fmt.Errorf("RECENT_SCRIPT_CACHE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// TelemetryEnabled reports whether history is uploaded to a collector.
func (c *Config) TelemetryEnabled() bool {
	return c.Telemetry.URL != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}

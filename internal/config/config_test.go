package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_PATH", "LOG_LEVEL", "RATE_LIMIT_WINDOW", "TELEMETRY_URL", "RANDOM_SEED"} {
		t.Setenv(key, "")
	}
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/cadence.db")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("RANDOM_SEED", "42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.RateLimit.WindowDuration != 30*time.Second {
		t.Errorf("WindowDuration = %v, want 30s", cfg.RateLimit.WindowDuration)
	}
	if cfg.Dialogue.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Dialogue.Seed)
	}
	if cfg.TelemetryEnabled() {
		t.Error("telemetry should be off without TELEMETRY_URL")
	}
	if cfg.Telemetry.UI != "CAI" {
		t.Errorf("Telemetry.UI = %q, want CAI", cfg.Telemetry.UI)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("LOG_LEVEL", "chatty")
	t.Setenv("RATE_LIMIT_WINDOW", "soon")
	t.Setenv("CONVERSATION_LOG_ENABLED", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.RateLimit.WindowDuration != time.Minute {
		t.Errorf("WindowDuration = %v, want 1m", cfg.RateLimit.WindowDuration)
	}
	if !cfg.ConversationLog.Enabled {
		t.Error("conversation log should keep its default")
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("RATE_LIMIT_REQUESTS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero rate limit")
	}

	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("PORT", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for empty port")
	}
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:3000", true},
		{"https://cadence.example.org", false},
	}
	for _, tt := range tests {
		cfg := &Config{FrontendURL: tt.url}
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.OpenAIRealtimeURL != defaultRealtimeURL {
		t.Fatalf("OpenAIRealtimeURL = %q", cfg.OpenAIRealtimeURL)
	}
	if cfg.MaxSessions != 100 {
		t.Fatalf("MaxSessions = %d, want 100", cfg.MaxSessions)
	}
	if cfg.SessionTimeout != 30*time.Minute {
		t.Fatalf("SessionTimeout = %v, want 30m", cfg.SessionTimeout)
	}
	if cfg.CleanupInterval != time.Minute {
		t.Fatalf("CleanupInterval = %v, want 1m", cfg.CleanupInterval)
	}
	if cfg.MaxAudioBytes != 5*1024*1024 {
		t.Fatalf("MaxAudioBytes = %d, want 5MiB", cfg.MaxAudioBytes)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("AllowedOrigins = %v, want [*]", cfg.AllowedOrigins)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v, want info", cfg.LogLevel)
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without OPENAI_API_KEY")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "9090")
	t.Setenv("OPENAI_REALTIME_URL", "ws://localhost:4000/v1/realtime")
	t.Setenv("MAX_SESSIONS", "5")
	t.Setenv("SESSION_TIMEOUT_SECONDS", "120")
	t.Setenv("CLEANUP_INTERVAL_SECONDS", "15")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.OpenAIRealtimeURL != "ws://localhost:4000/v1/realtime" {
		t.Fatalf("OpenAIRealtimeURL = %q", cfg.OpenAIRealtimeURL)
	}
	if cfg.MaxSessions != 5 {
		t.Fatalf("MaxSessions = %d, want 5", cfg.MaxSessions)
	}
	if cfg.SessionTimeout != 2*time.Minute {
		t.Fatalf("SessionTimeout = %v, want 2m", cfg.SessionTimeout)
	}
	if cfg.CleanupInterval != 15*time.Second {
		t.Fatalf("CleanupInterval = %v, want 15s", cfg.CleanupInterval)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v, want debug", cfg.LogLevel)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"bad port", "PORT", "http"},
		{"port out of range", "PORT", "70000"},
		{"bad realtime url scheme", "OPENAI_REALTIME_URL", "https://api.openai.com"},
		{"zero max sessions", "MAX_SESSIONS", "0"},
		{"negative timeout", "SESSION_TIMEOUT_SECONDS", "-1"},
		{"non-numeric interval", "CLEANUP_INTERVAL_SECONDS", "soon"},
		{"zero audio cap", "MAX_AUDIO_BYTES", "0"},
		{"bad log level", "LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "sk-test")
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() should reject %s=%q", tt.key, tt.value)
			}
		})
	}
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	Port              int
	OpenAIAPIKey      string
	OpenAIRealtimeURL string
	RedisURL          string
	RedisPassword     string
	MaxSessions       int
	SessionTimeout    time.Duration
	CleanupInterval   time.Duration
	HandshakeTimeout  time.Duration // upstream dial + handshake bound
	KeepAlivePeriod   time.Duration
	MaxAudioBytes     int // maximum decoded audio bytes per append
	AllowedOrigins    []string
	LogLevel          slog.Level
}

const defaultRealtimeURL = "wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview-2024-10-01"

// Load loads configuration from environment variables with defaults.
// Validation failures are returned as errors; callers are expected to
// treat them as fatal at startup.
func Load() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              8080,
		OpenAIRealtimeURL: defaultRealtimeURL,
		RedisURL:          "localhost:6379",
		MaxSessions:       100,
		SessionTimeout:    30 * time.Minute,
		CleanupInterval:   time.Minute,
		HandshakeTimeout:  10 * time.Second,
		KeepAlivePeriod:   30 * time.Second,
		MaxAudioBytes:     5 * 1024 * 1024,
		AllowedOrigins:    []string{"*"},
		LogLevel:          slog.LevelInfo,
	}

	// Required: OPENAI_API_KEY
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required")
	}

	if url := os.Getenv("OPENAI_REALTIME_URL"); url != "" {
		if !strings.HasPrefix(url, "wss://") && !strings.HasPrefix(url, "ws://") {
			return nil, fmt.Errorf("invalid OPENAI_REALTIME_URL: must be a ws:// or wss:// URL")
		}
		cfg.OpenAIRealtimeURL = url
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p < 1 || p > 65535 {
			return nil, fmt.Errorf("invalid PORT: %q", port)
		}
		cfg.Port = p
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if maxSessions := os.Getenv("MAX_SESSIONS"); maxSessions != "" {
		m, err := strconv.Atoi(maxSessions)
		if err != nil || m < 1 {
			return nil, fmt.Errorf("invalid MAX_SESSIONS: %q", maxSessions)
		}
		cfg.MaxSessions = m
	}

	var err error
	if cfg.SessionTimeout, err = durationEnv("SESSION_TIMEOUT_SECONDS", cfg.SessionTimeout); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval, err = durationEnv("CLEANUP_INTERVAL_SECONDS", cfg.CleanupInterval); err != nil {
		return nil, err
	}
	if cfg.HandshakeTimeout, err = durationEnv("HANDSHAKE_TIMEOUT_SECONDS", cfg.HandshakeTimeout); err != nil {
		return nil, err
	}
	if cfg.KeepAlivePeriod, err = durationEnv("KEEPALIVE_PERIOD_SECONDS", cfg.KeepAlivePeriod); err != nil {
		return nil, err
	}

	if maxAudio := os.Getenv("MAX_AUDIO_BYTES"); maxAudio != "" {
		b, err := strconv.Atoi(maxAudio)
		if err != nil || b < 1 {
			return nil, fmt.Errorf("invalid MAX_AUDIO_BYTES: %q", maxAudio)
		}
		cfg.MaxAudioBytes = b
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %q", level)
		}
		cfg.LogLevel = l
	}

	return cfg, nil
}

// durationEnv parses a positive whole-second duration from the environment.
func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 1 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return time.Duration(secs) * time.Second, nil
}

// Package config loads the chat server settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every runtime setting of the server.
type Config struct {
	Addr            string
	AllowedOrigins  []string
	StaticDir       string
	MaxMessageSize  int64
	RateLimit       RateLimit
	RedisAddr       string
	DatabaseDSN     string
	ShutdownTimeout time.Duration
	LogLevel        slog.Level
}

// RateLimit allows Burst inbound frames per Interval for each peer.
type RateLimit struct {
	Burst    int
	Interval time.Duration
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Addr:           ":5000",
		AllowedOrigins: []string{"http://localhost:3000"},
		MaxMessageSize: 4096,
		RateLimit: RateLimit{
			Burst:    10,
			Interval: time.Second,
		},
		ShutdownTimeout: 15 * time.Second,
		LogLevel:        slog.LevelInfo,
	}
}

// FromEnv overlays the environment on Default. Malformed values are errors.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if port, ok := get("PORT"); ok {
		if !strings.Contains(port, ":") {
			port = ":" + port
		}
		cfg.Addr = port
	}

	if origins, ok := get("ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = splitList(origins)
	}

	if dir, ok := get("STATIC_DIR"); ok {
		cfg.StaticDir = dir
	}

	if v, ok := get("MAX_MESSAGE_SIZE"); ok {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil || size <= 0 {
			return Config{}, fmt.Errorf("config: MAX_MESSAGE_SIZE must be a positive integer, got %q", v)
		}
		cfg.MaxMessageSize = size
	}

	if v, ok := get("RATE_LIMIT_BURST"); ok {
		burst, err := strconv.Atoi(v)
		if err != nil || burst <= 0 {
			return Config{}, fmt.Errorf("config: RATE_LIMIT_BURST must be a positive integer, got %q", v)
		}
		cfg.RateLimit.Burst = burst
	}

	if v, ok := get("RATE_LIMIT_INTERVAL"); ok {
		interval, err := time.ParseDuration(v)
		if err != nil || interval <= 0 {
			return Config{}, fmt.Errorf("config: RATE_LIMIT_INTERVAL must be a positive duration, got %q", v)
		}
		cfg.RateLimit.Interval = interval
	}

	if addr, ok := get("REDIS_ADDR"); ok {
		cfg.RedisAddr = addr
	}

	if dsn, ok := get("DB_DSN"); ok {
		cfg.DatabaseDSN = dsn
	}

	if v, ok := get("SHUTDOWN_TIMEOUT"); ok {
		timeout, err := time.ParseDuration(v)
		if err != nil || timeout <= 0 {
			return Config{}, fmt.Errorf("config: SHUTDOWN_TIMEOUT must be a positive duration, got %q", v)
		}
		cfg.ShutdownTimeout = timeout
	}

	if v, ok := get("LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("config: LOG_LEVEL: %w", err)
		}
	}

	return cfg, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

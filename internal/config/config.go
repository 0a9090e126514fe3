package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendFile = "file"
	BackendNATS = "nats"
)

type Config struct {
	HTTPAddr       string
	LogLevel       slog.Level
	DurableBackend string
	DurablePath    string
	NATSURL        string
	NATSBucket     string
	SessionTTL     time.Duration
	MatchDelay     time.Duration
	MismatchDelay  time.Duration
}

// Load reads the configuration from the environment. Variables from a .env
// file in the working directory are applied first without overriding ones
// already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	c := Config{
		HTTPAddr:       envOr("HTTP_ADDR", ":8080"),
		DurableBackend: strings.ToLower(envOr("DURABLE_BACKEND", BackendFile)),
		DurablePath:    envOr("DURABLE_PATH", "data/durable.json"),
		NATSURL:        envOr("NATS_URL", "nats://localhost:4222"),
		NATSBucket:     envOr("NATS_BUCKET", "memory_game"),
	}

	var err error
	if c.SessionTTL, err = parseDuration("SESSION_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if c.MatchDelay, err = parseDuration("MATCH_DELAY", 200*time.Millisecond); err != nil {
		return Config{}, err
	}
	if c.MismatchDelay, err = parseDuration("MISMATCH_DELAY", 650*time.Millisecond); err != nil {
		return Config{}, err
	}

	level, err := ParseLogLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}
	c.LogLevel = level

	switch c.DurableBackend {
	case BackendFile, BackendNATS:
	default:
		return Config{}, fmt.Errorf("invalid DURABLE_BACKEND %q: want %s or %s", c.DurableBackend, BackendFile, BackendNATS)
	}

	return c, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: negative duration", key, v)
	}
	return d, nil
}

// ParseLogLevel maps a level name to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
}

// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting.
type Config struct {
	// DBDriver is "sqlite" or "postgres".
	DBDriver string

	// DB is the SQLite path or PostgreSQL DSN. Empty means the default
	// SQLite location.
	DB string

	LogLevel  string
	LogFormat string // "text" or "json"

	QuizSize      int
	PassThreshold int

	RetryAttempts int
	RetryBackoff  time.Duration

	Redis RedisConfig

	AMQPURL      string
	ConceptQueue string

	// Workers bounds the background dispatcher.
	Workers int
}

// RedisConfig configures the ranking cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Default returns a Config with the standard quiz policy.
func Default() Config {
	return Config{
		DBDriver:      "sqlite",
		LogLevel:      "info",
		LogFormat:     "text",
		QuizSize:      5,
		PassThreshold: 80,
		RetryAttempts: 3,
		RetryBackoff:  500 * time.Millisecond,
		ConceptQueue:  "satquiz.concept-updates",
		Workers:       4,
	}
}

// Load reads an optional .env file and then overlays SATQUIZ_* variables
// on Default().
func Load() (Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, falling back to defaults for unset
// values.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	if v := getenv("SATQUIZ_DB_DRIVER"); v != "" {
		cfg.DBDriver = v
	}
	if v := getenv("SATQUIZ_DB"); v != "" {
		cfg.DB = v
	}
	if v := getenv("SATQUIZ_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("SATQUIZ_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := getenv("SATQUIZ_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := getenv("SATQUIZ_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := getenv("SATQUIZ_AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := getenv("SATQUIZ_CONCEPT_QUEUE"); v != "" {
		cfg.ConceptQueue = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SATQUIZ_QUIZ_SIZE", &cfg.QuizSize},
		{"SATQUIZ_PASS_THRESHOLD", &cfg.PassThreshold},
		{"SATQUIZ_RETRY_ATTEMPTS", &cfg.RetryAttempts},
		{"SATQUIZ_REDIS_DB", &cfg.Redis.DB},
		{"SATQUIZ_WORKERS", &cfg.Workers},
	}
	for _, e := range ints {
		v := getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s=%q is not an integer", e.key, v)
		}
		*e.dst = n
	}

	if v := getenv("SATQUIZ_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: SATQUIZ_RETRY_BACKOFF=%q is not a valid duration: %w", v, err)
		}
		cfg.RetryBackoff = d
	}

	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.DB == "" {
		return fmt.Errorf("config: SATQUIZ_DB is required for the postgres driver")
	}
	if c.QuizSize < 1 {
		return fmt.Errorf("config: quiz size must be positive, got %d", c.QuizSize)
	}
	if c.PassThreshold < 0 || c.PassThreshold > 100 {
		return fmt.Errorf("config: pass threshold must be 0-100, got %d", c.PassThreshold)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("config: retry attempts must be at least 1, got %d", c.RetryAttempts)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

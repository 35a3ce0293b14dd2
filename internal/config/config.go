package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"famfin/internal/log"
)

// Backends accepted by DATA_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

type Config struct {
	// HTTP Server
	Port string
	// RateLimitPerMinute caps API requests per client; 0 disables it.
	RateLimitPerMinute int

	// Backend selection
	DataBackend  string
	SQLiteDBPath string
	SeedFile     string

	// AMQP
	AMQPURL          string
	AMQPExchange     string
	AMQPAlertQueue   string
	AMQPRequestQueue string

	// Worker
	EvalInterval    time.Duration
	EvalConcurrency int
	AlertPolicy     string

	// Analytics
	BudgetWriteBack    bool
	ForecastMaxHorizon int

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		DataBackend:  getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/famfin.db"),
		SeedFile:     getEnv("SEED_FILE", ""),

		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "famfin"),
		AMQPAlertQueue:   getEnv("AMQP_ALERT_QUEUE", "budget_alerts"),
		AMQPRequestQueue: getEnv("AMQP_REQUEST_QUEUE", "budget_evaluations"),

		EvalInterval:    getEnvDuration("EVAL_INTERVAL", 15*time.Minute),
		EvalConcurrency: getEnvInt("EVAL_CONCURRENCY", 4),
		AlertPolicy:     getEnv("ALERT_POLICY", "period"),

		BudgetWriteBack:    getEnvBool("BUDGET_WRITEBACK", true),
		ForecastMaxHorizon: getEnvInt("FORECAST_MAX_HORIZON", 24),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be zero or positive", c.RateLimitPerMinute))
	}

	validBackends := []string{BackendMemory, BackendSQLite}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPAlertQueue == "" {
			errors = append(errors, "AMQP alert queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRequestQueue == "" {
			errors = append(errors, "AMQP request queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPAlertQueue != "" && c.AMQPAlertQueue == c.AMQPRequestQueue {
			errors = append(errors, fmt.Sprintf("AMQP alert and request queues must differ, both are '%s'", c.AMQPAlertQueue))
		}
	}

	if c.EvalConcurrency < 1 || c.EvalConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid eval concurrency %d: must be between 1 and 64", c.EvalConcurrency))
	}
	if c.EvalInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid eval interval %v: must be at least 1 second", c.EvalInterval))
	} else if c.EvalInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid eval interval %v: must be at most 24 hours", c.EvalInterval))
	}
	if c.AlertPolicy == "" {
		errors = append(errors, "alert policy cannot be empty")
	}

	if c.ForecastMaxHorizon < 1 || c.ForecastMaxHorizon > 120 {
		errors = append(errors, fmt.Sprintf("invalid forecast max horizon %d: must be between 1 and 120", c.ForecastMaxHorizon))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': %v", c.LogLevel, err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if c.Storage.Backend != "redis" && c.Storage.Backend != "postgres" {
		errs = append(errs, fmt.Sprintf("STORAGE_BACKEND must be redis or postgres, got %q", c.Storage.Backend))
	}

	if c.Storage.Backend == "postgres" && c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required with the postgres backend")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.Storage.Backend == "postgres" && (c.DB.Port < 1 || c.DB.Port > 65535) {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	if c.Aggregation.ProviderTimeout <= 0 {
		errs = append(errs, "AGGREGATION_PROVIDER_TIMEOUT must be positive")
	}
	if c.WriteBack.MaxContexts < 1 {
		errs = append(errs, fmt.Sprintf("WRITEBACK_MAX_CONTEXTS must be at least 1, got %d", c.WriteBack.MaxContexts))
	}
	if c.WriteBack.MaxBytes < 512 {
		errs = append(errs, fmt.Sprintf("WRITEBACK_MAX_BYTES must be at least 512, got %d", c.WriteBack.MaxBytes))
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxReqs < 1 {
			errs = append(errs, "RATELIMIT_MAX_REQS must be at least 1")
		}
		if c.RateLimit.WindowSec < 1 {
			errs = append(errs, "RATELIMIT_WINDOW_SEC must be at least 1")
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}

	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	if c.Generation.ProviderTimeout <= 0 {
		errs = append(errs, "GENERATION_PROVIDER_TIMEOUT must be positive")
	}

	for tier, row := range c.Quota.Limits {
		for _, limit := range row {
			if limit < -1 {
				errs = append(errs, fmt.Sprintf("quota limit for tier %q must be >= -1, got %d", tier, limit))
			}
		}
	}

	// No real backend and no mock path means every generation fails: warn only,
	// a deploy may intentionally run dark before credentials are provisioned.
	if !c.Providers.Aggregator.Configured() &&
		!c.Providers.OpenAI.Configured() &&
		!c.Providers.Avatar.Configured() &&
		!c.Providers.Video.Configured() &&
		!c.Generation.MockAllowed {
		slog.Warn("no generation providers configured and mock mode disabled")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

package middleware

import (
	"time"

	"github.com/lexhub-io/lexhub/internal/config"
)

// Config holds rate limiter configuration.
//
// Rate limits specify requests per second for two tiers:
//   - Global: applied to all requests
//   - Per-client: applied per remote address
//
// Burst capacity allows temporary bursts above the sustained rate.
// If burst fields are 0, they are computed automatically as 2 × rate.
type Config struct {
	GlobalRPS int // Default: 100
	ClientRPS int // Default: 10

	// Optional burst capacity overrides (0 = computed as 2 × rate)
	GlobalBurst int
	ClientBurst int

	// Memory cleanup configuration
	CleanupInterval time.Duration // Default: 5 minutes
	IdleTimeout     time.Duration // Default: 1 hour
	MaxClients      int           // Default: 10,000
}

// LoadConfig loads middleware config from environment variables with fallback
// to defaults.
func LoadConfig() *Config {
	return &Config{
		GlobalRPS: config.GetEnvInt("LEXHUB_GLOBAL_RPS", defaultGlobalRPS),
		ClientRPS: config.GetEnvInt("LEXHUB_CLIENT_RPS", defaultClientRPS),

		GlobalBurst: config.GetEnvInt("LEXHUB_GLOBAL_BURST", 0),
		ClientBurst: config.GetEnvInt("LEXHUB_CLIENT_BURST", 0),

		CleanupInterval: config.GetEnvDuration("LEXHUB_RATE_LIMIT_CLEANUP_INTERVAL", rateLimiterCleanupInterval),
		IdleTimeout:     config.GetEnvDuration("LEXHUB_RATE_LIMIT_IDLE_TIMEOUT", rateLimiterIdleTimeout),
		MaxClients:      config.GetEnvInt("LEXHUB_RATE_LIMIT_MAX_CLIENTS", maxClients),
	}
}

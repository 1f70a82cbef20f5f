// Package identity resolves NSID domain authorities to the DIDs allowed to
// publish under them.
//
// The authoritative source is a DNS TXT record at _lexicon.<domain> containing
// a did= value. This package provides configuration loading for static
// overrides and a caching DNS resolver.
package identity

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lexhub-io/lexhub/internal/config"
)

// Config holds static authority overrides loaded from .lexhub.yaml.
//
// Overrides exist for two reasons: pinning well-known authorities so their
// lexicons validate even during DNS outages, and local development against
// domains that have no public TXT record.
type Config struct {
	// AuthorityOverrides maps an authority domain to the DID allowed to
	// publish under it. Entries here are consulted before DNS.
	//nolint:tagliatelle // snake_case is intentional for YAML config files
	AuthorityOverrides map[string]string `yaml:"authority_overrides"`
}

// DefaultConfigPath is the default location for the lexhub configuration file.
const DefaultConfigPath = ".lexhub.yaml"

// ConfigPathEnvVar is the environment variable name for custom config path.
const ConfigPathEnvVar = "LEXHUB_CONFIG_PATH"

// Resolver tuning defaults.
const (
	defaultCacheTTL         = 10 * time.Minute
	defaultNegativeCacheTTL = 1 * time.Minute
	defaultLookupTimeout    = 5 * time.Second
)

// LoadConfig loads authority overrides from a YAML file at the given path.
//
// Behavior:
//   - Returns empty config (not error) if file doesn't exist - overrides are optional
//   - Returns empty config + logs warning if YAML is invalid (graceful degradation)
//   - Returns populated config on success
//
// This graceful degradation ensures the server can start even without
// overrides configured; DNS resolution works on its own.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		AuthorityOverrides: make(map[string]string),
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("Config file not found, continuing without authority overrides",
				slog.String("path", path))

			return cfg, nil
		}

		// Other read errors (permissions, etc.) - log warning and continue
		slog.Warn("Failed to read config file, continuing without authority overrides",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return cfg, nil
	}

	// Empty file is valid - just no overrides
	if len(data) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Warn("Failed to parse config file, continuing without authority overrides",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return &Config{AuthorityOverrides: make(map[string]string)}, nil
	}

	// Ensure map is initialized even if YAML had nil/empty section
	if cfg.AuthorityOverrides == nil {
		cfg.AuthorityOverrides = make(map[string]string)
	}

	return cfg, nil
}

// LoadConfigFromEnv loads config from the path specified in LEXHUB_CONFIG_PATH
// environment variable. Falls back to ".lexhub.yaml" in current directory if not set.
func LoadConfigFromEnv() (*Config, error) {
	path := config.GetEnvStr(ConfigPathEnvVar, DefaultConfigPath)

	return LoadConfig(path)
}

// ResolverConfig holds DNS resolution tuning, loaded from environment variables.
type ResolverConfig struct {
	// CacheTTL is how long a resolved authority binding stays cached.
	CacheTTL time.Duration

	// NegativeCacheTTL is how long the absence of a binding stays cached.
	// Kept shorter than CacheTTL so newly published TXT records take effect
	// without a restart.
	NegativeCacheTTL time.Duration

	// LookupTimeout bounds each individual DNS query.
	LookupTimeout time.Duration
}

// LoadResolverConfigFromEnv loads resolver tuning from environment variables,
// falling back to the package defaults.
func LoadResolverConfigFromEnv() *ResolverConfig {
	return &ResolverConfig{
		CacheTTL:         config.GetEnvDuration("LEXHUB_RESOLVER_CACHE_TTL", defaultCacheTTL),
		NegativeCacheTTL: config.GetEnvDuration("LEXHUB_RESOLVER_NEGATIVE_CACHE_TTL", defaultNegativeCacheTTL),
		LookupTimeout:    config.GetEnvDuration("LEXHUB_RESOLVER_LOOKUP_TIMEOUT", defaultLookupTimeout),
	}
}

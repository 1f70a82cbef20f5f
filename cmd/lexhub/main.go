// Package main provides the LexHub API service.
//
// LexHub ingests Lexicon schema records published to decentralized
// repositories, validates them against the NSID grammar, the DNS authority
// binding and the Lexicon meta-schema, and serves the accumulated corpus
// over a read API.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/lexhub-io/lexhub/internal/api"
	"github.com/lexhub-io/lexhub/internal/api/middleware"
	"github.com/lexhub-io/lexhub/internal/identity"
	"github.com/lexhub-io/lexhub/internal/ingestion"
	"github.com/lexhub-io/lexhub/internal/storage"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "lexhub"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	api.Version = version

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("Starting LexHub service",
		slog.String("service", name),
		slog.String("version", version),
	)

	logger.Info("Loaded server configuration",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.Duration("read_timeout", serverConfig.ReadTimeout),
		slog.Duration("write_timeout", serverConfig.WriteTimeout),
		slog.Duration("shutdown_timeout", serverConfig.ShutdownTimeout),
		slog.String("log_level", serverConfig.LogLevel.String()),
	)

	// Rate limiter (graceful shutdown handled by server.shutdown())
	middlewareConfig := middleware.LoadConfig()
	rateLimiter := middleware.NewInMemoryRateLimiter(middlewareConfig)

	logger.Info("Rate limiter initialized",
		slog.Int("global_rps", middlewareConfig.GlobalRPS),
		slog.Int("global_burst", middlewareConfig.GlobalBurst),
		slog.Int("client_rps", middlewareConfig.ClientRPS),
		slog.Int("client_burst", middlewareConfig.ClientBurst),
	)

	// Storage
	storageConfig := storage.LoadConfig()

	dbConn, err := storage.NewConnection(storageConfig)
	if err != nil {
		logger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		_ = dbConn.Close() // Ensure connection closes on normal shutdown
	}()

	lexiconStore, err := storage.NewLexiconStore(dbConn)
	if err != nil {
		logger.Error("Failed to create lexicon store", slog.String("error", err.Error()))

		_ = dbConn.Close()
		//nolint:gocritic // Explicit cleanup before os.Exit is intentional (defer won't run)
		os.Exit(1)
	}

	logger.Info("Lexicon store initialized",
		slog.String("database_url", storageConfig.MaskDatabaseURL()),
		slog.Int("database_max_open_conns", storageConfig.MaxOpenConns),
		slog.Int("database_max_idle_conns", storageConfig.MaxIdleConns),
		slog.Duration("database_conn_max_lifetime", storageConfig.ConnMaxLifetime),
		slog.Duration("database_conn_max_idle_time", storageConfig.ConnMaxIdleTime),
	)

	// Authority resolution: DNS TXT lookups with configured overrides
	identityConfig, err := identity.LoadConfigFromEnv()
	if err != nil {
		logger.Error("Failed to load identity configuration", slog.String("error", err.Error()))

		_ = dbConn.Close()
		os.Exit(1)
	}

	resolver := identity.NewResolver(identityConfig, identity.LoadResolverConfigFromEnv())

	logger.Info("Authority resolver initialized",
		slog.Int("override_count", resolver.OverrideCount()),
	)

	validator := ingestion.NewValidator(resolver)

	server := api.NewServer(serverConfig, lexiconStore, validator, rateLimiter)

	if err := server.Start(); err != nil {
		logger.Error("Server failed to start",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger.Info("LexHub service stopped")
}

// Package main provides the LexHub firehose consumer.
//
// The consumer reads commit-event envelopes from a Kafka topic and drives
// them through the same classification and validation pipeline as the HTTP
// ingestion endpoint, for deployments that ingest from an event bus instead
// of webhooks.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/lexhub-io/lexhub/internal/config"
	"github.com/lexhub-io/lexhub/internal/firehose"
	"github.com/lexhub-io/lexhub/internal/identity"
	"github.com/lexhub-io/lexhub/internal/ingestion"
	"github.com/lexhub-io/lexhub/internal/storage"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "lexhub-firehose"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}))

	logger.Info("Starting LexHub firehose consumer",
		slog.String("service", name),
		slog.String("version", version),
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
	)

	// Authority resolution: DNS TXT lookups with configured overrides
	identityConfig, err := identity.LoadConfigFromEnv()
	if err != nil {
		logger.Error("Failed to load identity configuration", slog.String("error", err.Error()))

		_ = dbConn.Close()
		os.Exit(1)
	}

	resolver := identity.NewResolver(identityConfig, identity.LoadResolverConfigFromEnv())
	validator := ingestion.NewValidator(resolver)

	// Kafka consumer
	consumerConfig := firehose.LoadConfig()

	consumer, err := firehose.NewConsumer(consumerConfig, validator, lexiconStore)
	if err != nil {
		logger.Error("Failed to create firehose consumer", slog.String("error", err.Error()))

		_ = dbConn.Close()
		os.Exit(1)
	}

	logger.Info("Firehose consumer initialized",
		slog.String("brokers", strings.Join(consumerConfig.Brokers, ",")),
		slog.String("topic", consumerConfig.Topic),
		slog.String("group_id", consumerConfig.GroupID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.Run(ctx); err != nil {
		logger.Error("Consumer stopped with error", slog.String("error", err.Error()))

		_ = dbConn.Close()
		os.Exit(1)
	}

	logger.Info("LexHub firehose consumer stopped")
}

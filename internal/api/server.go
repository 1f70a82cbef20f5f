package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexhub-io/lexhub/internal/api/middleware"
	"github.com/lexhub-io/lexhub/internal/ingestion"
	"github.com/lexhub-io/lexhub/internal/storage"
)

// Store is the full persistence surface the server depends on: the write
// side of the ingestion pipeline plus the read side serving the lexicon
// endpoints. Satisfied by storage.LexiconStore and, in tests, by
// storage.InMemoryLexiconStore.
type Store interface {
	ingestion.Store

	HealthCheck(ctx context.Context) error
	GetLexiconHistory(ctx context.Context, nsid string, limit, offset int) ([]storage.LexiconRecord, int64, error)
	ListRepoLexicons(ctx context.Context, repoDid string, limit, offset int) ([]storage.LexiconRecord, int64, error)
	ListLexicons(ctx context.Context, limit, offset int) ([]storage.LexiconSummary, int64, error)
	SuggestNsids(ctx context.Context, query string, limit int) ([]string, error)
	GetStats(ctx context.Context) (*storage.Stats, error)
}

// Server represents the HTTP API server.
type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	config      *ServerConfig
	startTime   time.Time
	store       Store
	validator   *ingestion.Validator
	rateLimiter middleware.RateLimiter
}

// NewServer creates a new HTTP server instance with structured logging and
// the full middleware stack.
//
// Dependencies are injected explicitly rather than being part of
// ServerConfig: configuration (what) is separated from dependencies (how).
//
// Parameters:
//   - cfg: Pure server configuration (ports, timeouts, secret, CORS settings)
//   - store: Lexicon persistence (write and read side)
//   - validator: The validation pipeline applied to classified commits
//   - rateLimiter: Rate limiter implementation (nil disables rate limiting)
func NewServer(cfg *ServerConfig, store Store, validator *ingestion.Validator, rateLimiter middleware.RateLimiter) *Server {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	mux := http.NewServeMux()

	server := &Server{
		logger:      logger,
		config:      cfg,
		store:       store,
		validator:   validator,
		rateLimiter: rateLimiter,
	}

	server.setupRoutes(mux)

	if cfg.IngestSecret != "" {
		logger.Info("Shared-secret authentication middleware enabled")
	} else {
		logger.Warn("LEXHUB_INGEST_SECRET not configured - authentication middleware disabled")
	}

	if rateLimiter != nil {
		logger.Info("Rate limiting middleware enabled")
	} else {
		logger.Warn("RateLimiter not configured - rate limiting middleware disabled")
	}

	// Middleware executes in the order listed (top-to-bottom):
	//   1. CorrelationID - tag every response and log line
	//   2. Recovery - catch panics in all downstream middleware
	//   3. SharedSecretAuth - reject unauthenticated requests (optional)
	//   4. RateLimit - block requests before expensive operations (optional)
	//   5. RequestLogger - log only legitimate requests (not rate-limited spam)
	//   6. CORS - lightweight header manipulation
	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithSharedSecretAuth(cfg.IngestSecret, logger),
		middleware.WithRateLimit(rateLimiter, logger),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig()),
	)

	server.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// Start starts the HTTP server and blocks until shutdown.
// It handles graceful shutdown on SIGINT and SIGTERM signals.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	// Record server start time for uptime calculation
	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("Starting LexHub API server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("Received shutdown signal",
			slog.String("signal", sig.String()),
		)

		return s.shutdown()
	}
}

// shutdown gracefully shuts down the server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Initiating server shutdown",
		slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
	)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown failed",
			slog.String("error", err.Error()),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Close rate limiter to stop (InMemoryRateLimiter) background cleanup goroutines
	if s.rateLimiter != nil {
		s.logger.Info("Closing rate limiter")

		if limiter, ok := s.rateLimiter.(io.Closer); ok {
			if err := limiter.Close(); err != nil {
				s.logger.Error("Failed to close rate limiter", slog.String("error", err.Error()))
			} else {
				s.logger.Info("Rate limiter closed successfully")
			}
		}
	}

	s.logger.Info("Server shutdown completed successfully")

	return nil
}

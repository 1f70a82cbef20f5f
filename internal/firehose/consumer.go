package firehose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/lexhub-io/lexhub/internal/config"
	"github.com/lexhub-io/lexhub/internal/ingestion"
)

// retryBackoff is the pause before re-fetching after a store deadline, so a
// struggling database is not hammered with immediate redeliveries.
const retryBackoff = time.Second

// MessageReader is the subset of kafka.Reader the consumer depends on.
// Tests inject a fake; production wiring uses kafka.NewReader.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads commit-event envelopes off a Kafka topic and drives each
// one through the classification and validation pipeline.
//
// Offsets are committed only after an event is fully handled, so an
// unhandled event is redelivered after a restart. The same acknowledgement
// policy as the HTTP endpoint applies: undecodable and not-applicable events
// are committed without processing (retrying them cannot succeed), and the
// only failure that withholds the commit is a store deadline.
type Consumer struct {
	reader    MessageReader
	validator *ingestion.Validator
	store     ingestion.Store
	logger    *slog.Logger
	backoff   time.Duration
}

// NewConsumer creates a Consumer reading from the configured topic as part
// of the configured consumer group.
func NewConsumer(cfg *Config, validator *ingestion.Validator, store ingestion.Store) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid consumer configuration: %w", err)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})

	return newConsumer(reader, validator, store), nil
}

func newConsumer(reader MessageReader, validator *ingestion.Validator, store ingestion.Store) *Consumer {
	return &Consumer{
		reader:    reader,
		validator: validator,
		store:     store,
		backoff:   retryBackoff,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
	}
}

// Run consumes messages until ctx is cancelled, then closes the reader.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Error("Failed to close kafka reader", slog.String("error", err.Error()))
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}

			return fmt.Errorf("fetch message: %w", err)
		}

		if c.handle(ctx, msg) {
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}

				return fmt.Errorf("commit offset: %w", err)
			}

			continue
		}

		// Store deadline: leave the offset uncommitted so the event is
		// redelivered, and back off before fetching it again.
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.backoff):
		}
	}
}

// handle processes one message and reports whether its offset should be
// committed.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	event := ingestion.DecodeEvent(msg.Value)
	if event.Type == ingestion.EventUndecodable {
		c.logger.Warn("Discarding undecodable event envelope",
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Int("value_bytes", len(msg.Value)),
		)

		return true
	}

	commit, ok := ingestion.Classify(event)
	if !ok {
		return true
	}

	outcome := c.validator.Validate(ctx, commit)

	var storeErr error
	if outcome.Valid() {
		storeErr = c.store.RecordValid(ctx, commit, outcome.Doc)
	} else {
		storeErr = c.store.RecordInvalid(ctx, commit, outcome.Reasons)
	}

	if storeErr != nil {
		if errors.Is(storeErr, context.DeadlineExceeded) {
			c.logger.Error("Store deadline exceeded, withholding offset commit",
				slog.String("nsid", commit.RecordID()),
				slog.String("repo_did", commit.Did),
				slog.Int64("offset", msg.Offset),
				slog.String("error", storeErr.Error()),
			)

			return false
		}

		// Same policy as the HTTP endpoint: anything else is acknowledged,
		// since redelivery would hit the identical failure.
		c.logger.Error("Failed to persist validation outcome",
			slog.String("nsid", commit.RecordID()),
			slog.String("repo_did", commit.Did),
			slog.Bool("valid", outcome.Valid()),
			slog.String("error", storeErr.Error()),
		)
	}

	return true
}

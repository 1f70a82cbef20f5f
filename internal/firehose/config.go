// Package firehose consumes commit-event envelopes from a Kafka topic and
// drives them through the same classification and validation pipeline as the
// HTTP ingestion endpoint, for deployments that ingest from an event bus
// instead of webhooks.
package firehose

import (
	"errors"

	"github.com/lexhub-io/lexhub/internal/config"
)

const (
	defaultTopic    = "repo.commits"
	defaultGroupID  = "lexhub-firehose"
	defaultMinBytes = 1
	defaultMaxBytes = 10485760 // 10 MB
)

// ErrNoBrokers is returned when no Kafka broker addresses are configured.
var ErrNoBrokers = errors.New("no kafka brokers configured")

// Config holds Kafka consumer configuration.
type Config struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
}

// LoadConfig loads Kafka consumer configuration from environment variables
// with fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		Brokers:  config.ParseCommaSeparatedList(config.GetEnvStr("LEXHUB_KAFKA_BROKERS", "")),
		Topic:    config.GetEnvStr("LEXHUB_KAFKA_TOPIC", defaultTopic),
		GroupID:  config.GetEnvStr("LEXHUB_KAFKA_GROUP_ID", defaultGroupID),
		MinBytes: config.GetEnvInt("LEXHUB_KAFKA_MIN_BYTES", defaultMinBytes),
		MaxBytes: config.GetEnvInt("LEXHUB_KAFKA_MAX_BYTES", defaultMaxBytes),
	}
}

// Validate checks if the consumer configuration is valid.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}

	return nil
}

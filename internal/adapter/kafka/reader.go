package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/flood-mesh-etl/internal/config"
	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
)

// Reader consumes ingest requests from a Kafka topic.
// It implements pipeline.RequestExtractor.
type Reader struct {
	reader  *kafkago.Reader
	brokers []string
	dialer  *kafkago.Dialer
	logger  *slog.Logger
}

// NewReader creates a consumer-group reader for the configured request topic.
// Offsets are committed explicitly through IngestMessage.Commit.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaRequestTopic,
		GroupID:     cfg.KafkaGroupID,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		StartOffset: kafkago.FirstOffset,
	})
	return &Reader{
		reader:  r,
		brokers: cfg.KafkaBrokers,
		dialer:  &kafkago.Dialer{Timeout: 2 * time.Second},
		logger:  logger,
	}
}

// CheckReadiness succeeds when at least one configured broker accepts a
// connection. It does not wait for a request to arrive.
func (r *Reader) CheckReadiness(ctx context.Context) error {
	if len(r.brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	var lastErr error
	for _, broker := range r.brokers {
		conn, err := r.dialer.DialContext(ctx, "tcp", broker)
		if err == nil {
			return conn.Close()
		}
		lastErr = err
	}
	return fmt.Errorf("kafka brokers unreachable: %w", lastErr)
}

// Extract blocks until the next request message is available.
func (r *Reader) Extract(ctx context.Context) (domain.IngestMessage, error) {
	msg, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return domain.IngestMessage{}, fmt.Errorf("fetch ingest request: %w", err)
	}
	r.logger.Debug("ingest request fetched",
		"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

	out := mapMessageToIngestMessage(msg)
	out.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return out, nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

func mapMessageToIngestMessage(msg kafkago.Message) domain.IngestMessage {
	return domain.IngestMessage{
		Key:       msg.Key,
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}

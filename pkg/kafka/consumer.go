// Package kafka provides the Kafka consumer and producer used to feed bulk
// ingest batches and search requests into a node and to publish their
// results. Both sides exchange JSON payloads via segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

// MessageHandler is a callback invoked for each Kafka message. A non-nil
// error is retried with backoff; if the handler still fails, the consumer
// stops without committing the message, so the group resumes at it on the
// next start.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// messageReader is the part of *kafka.Reader the consume loop uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader  messageReader
	handler MessageHandler
	retry   resilience.RetryPolicy
	logger  *slog.Logger
}

type ConsumerOption func(*Consumer)

// WithRetry sets the backoff used after fetch errors and the retries of a
// failing handler.
func WithRetry(policy resilience.RetryPolicy) ConsumerOption {
	return func(c *Consumer) { c.retry = policy }
}

// NewConsumer creates a Consumer for the given topic and handler. Bulk
// ingest must not skip batches published before the node started, so new
// consumer groups begin at the first offset.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, topic, handler, opts...)
}

func newConsumer(r messageReader, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:  r,
		handler: handler,
		retry:   resilience.DefaultRetryPolicy(),
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start enters the consume loop, fetching and processing messages until ctx
// is cancelled. Fetch errors back off and retry indefinitely. It returns an
// error only when a message cannot be handled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	fetchFailures := 0
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			fetchFailures++
			delay := c.retry.Delay(fetchFailures)
			c.logger.Error("failed to fetch message", "error", err, "failures", fetchFailures, "next_delay", delay)
			if !sleep(ctx, delay) {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			continue
		}
		fetchFailures = 0
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		err = resilience.Retry(ctx, "handle-message", c.retry, func(ctx context.Context) error {
			return c.handler(ctx, msg.Key, msg.Value)
		})
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to process message, stopping",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			return fmt.Errorf("processing partition %d offset %d: %w", msg.Partition, msg.Offset, err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}

// Package consumer turns Kafka messages into node operations: bulk ingest
// requests are fed to the ingest pipeline and search requests to the query
// executor, with their outcomes published back to Kafka.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/kafka"
)

// BulkIngester ingests one batch. *pipeline.Pipeline implements it.
type BulkIngester interface {
	BulkAdd(ctx context.Context, index string, docs []ingestion.Document) (*ingestion.BatchResult, error)
}

// BulkFunc adapts a function to BulkIngester.
type BulkFunc func(ctx context.Context, index string, docs []ingestion.Document) (*ingestion.BatchResult, error)

func (f BulkFunc) BulkAdd(ctx context.Context, index string, docs []ingestion.Document) (*ingestion.BatchResult, error) {
	return f(ctx, index, docs)
}

// FailureRecorder reports requests that failed as a whole.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, index string, cause error) error
}

// IndexConsumer wraps a Kafka consumer to drive bulk ingestion.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleBulk returns a MessageHandler ingesting ingestion.BulkEvent
// messages. Undecodable or invalid requests and requests naming an unknown
// index are reported through failures and committed; any other failure is
// returned, so the consumer retries it and then stops without committing.
func HandleBulk(ingester BulkIngester, failures FailureRecorder) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.BulkEvent](value)
		if err != nil {
			logger.Error("failed to decode bulk event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		ctx = publisher.WithRequestID(ctx, event.RequestID)
		if err := validator.ValidateBulkEvent(&event); err != nil {
			logger.Warn("invalid bulk event", "request_id", event.RequestID, "error", err)
			return reportFailure(ctx, failures, event.Index, err)
		}

		logger.Debug("processing bulk event",
			"request_id", event.RequestID,
			"index", event.Index,
			"documents", len(event.Documents),
		)
		batch, err := ingester.BulkAdd(ctx, event.Index, event.Documents)
		if errors.Is(err, apperrors.ErrIndexNotFound) {
			logger.Warn("bulk event for unknown index", "request_id", event.RequestID, "index", event.Index)
			return reportFailure(ctx, failures, event.Index, err)
		}
		if err != nil {
			return fmt.Errorf("ingesting request %s: %w", event.RequestID, err)
		}

		logger.Info("bulk event ingested",
			"request_id", event.RequestID,
			"batch_id", batch.BatchID,
			"index", event.Index,
			"accepted", batch.Accepted,
			"rejected", batch.Rejected,
		)
		return nil
	}
}

func reportFailure(ctx context.Context, failures FailureRecorder, index string, cause error) error {
	if failures == nil {
		return nil
	}
	if err := failures.RecordFailure(ctx, index, cause); err != nil {
		return fmt.Errorf("reporting failed request: %w", err)
	}
	return nil
}

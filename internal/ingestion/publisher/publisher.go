// Package publisher records the outcome of ingested batches: one status row
// per document in PostgreSQL and one result event per batch on Kafka.
package publisher

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/resilience"
)

// ResultStore persists per-document outcomes.
type ResultStore interface {
	SaveResults(ctx context.Context, batch *ingestion.BatchResult) error
}

// EventPublisher sends events to a topic. *kafka.Producer implements it.
type EventPublisher interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// Publisher fans a batch outcome out to the configured sinks. Either sink may
// be nil.
type Publisher struct {
	store    ResultStore
	producer EventPublisher
	retry    resilience.RetryPolicy
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Publisher)

// WithRetry retries failed result writes. Rows are keyed by
// (index, doc, batch) so a retried write does not duplicate them.
func WithRetry(policy resilience.RetryPolicy) Option {
	return func(p *Publisher) { p.retry = policy }
}

func New(store ResultStore, producer EventPublisher, opts ...Option) *Publisher {
	p := &Publisher{
		store:    store,
		producer: producer,
		retry:    resilience.RetryPolicy{MaxAttempts: 1},
		now:      time.Now,
		logger:   slog.Default().With("component", "publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type requestIDKey struct{}

// WithRequestID attaches the id of the request a batch originates from. It
// is echoed in the result event.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Record stores the batch results and publishes a ResultEvent keyed by the
// index name. It implements pipeline.Recorder.
func (p *Publisher) Record(ctx context.Context, batch *ingestion.BatchResult) error {
	if p.store != nil {
		save := func(ctx context.Context) error { return p.store.SaveResults(ctx, batch) }
		if err := resilience.Retry(ctx, "save-results", p.retry, save); err != nil {
			return fmt.Errorf("saving results of batch %s: %w", batch.BatchID, err)
		}
	}
	if p.producer == nil {
		return nil
	}
	event := kafka.Event{
		Key: batch.Index,
		Value: ingestion.ResultEvent{
			RequestID:  requestID(ctx),
			BatchID:    batch.BatchID,
			Index:      batch.Index,
			Accepted:   batch.Accepted,
			Rejected:   batch.Rejected,
			Results:    batch.Results,
			IngestedAt: p.now().UTC(),
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish batch result",
			"batch_id", batch.BatchID,
			"index", batch.Index,
			"error", err,
		)
		return fmt.Errorf("publishing result of batch %s: %w", batch.BatchID, err)
	}
	return nil
}

// RecordFailure publishes a ResultEvent for a request that failed as a
// whole, such as a bulk request naming an unknown index.
func (p *Publisher) RecordFailure(ctx context.Context, index string, cause error) error {
	if p.producer == nil {
		return nil
	}
	event := kafka.Event{
		Key: index,
		Value: ingestion.ResultEvent{
			RequestID:  requestID(ctx),
			Index:      index,
			Error:      cause.Error(),
			IngestedAt: p.now().UTC(),
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		return fmt.Errorf("publishing failure of request %s: %w", requestID(ctx), err)
	}
	return nil
}

// PostgresStore writes results into the ingest_results table.
type PostgresStore struct {
	db *postgres.Client
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveResults(ctx context.Context, batch *ingestion.BatchResult) error {
	if len(batch.Results) == 0 {
		return nil
	}
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO ingest_results (index_name, doc_id, batch_id, status, code, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (index_name, doc_id, batch_id) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range batch.Results {
			if _, err := stmt.ExecContext(ctx,
				batch.Index, r.DocID, batch.BatchID, string(r.Status), r.Code, r.Reason,
			); err != nil {
				return fmt.Errorf("inserting result for %q: %w", r.DocID, err)
			}
		}
		return nil
	})
}

// Package pipeline implements bulk ingestion: documents of a batch are
// validated and indexed one by one in input order, and every document gets
// its own accepted or rejected result. A batch only fails as a whole when the
// target index does not exist.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/metrics"
	"github.com/google/uuid"
)

// DocumentIndexer is the part of the index engine the pipeline writes to.
type DocumentIndexer interface {
	IndexDocument(index, id string, fields map[string]string) error
	Count(index string) (int, error)
}

// Invalidator drops cached query results of an index.
type Invalidator interface {
	Invalidate(ctx context.Context, index string) error
}

// Recorder persists or forwards the outcome of a batch.
type Recorder interface {
	Record(ctx context.Context, batch *ingestion.BatchResult) error
}

type Option func(*Pipeline)

// WithMetrics records ingestion counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithInvalidator invalidates cached searches after a batch that changed the
// index.
func WithInvalidator(inv Invalidator) Option {
	return func(p *Pipeline) { p.invalidator = inv }
}

// WithRecorder records every batch outcome.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorders = append(p.recorders, r) }
}

type Pipeline struct {
	indexer     DocumentIndexer
	metrics     *metrics.Metrics
	invalidator Invalidator
	recorders   []Recorder
	logger      *slog.Logger
}

func New(indexer DocumentIndexer, opts ...Option) *Pipeline {
	p := &Pipeline{
		indexer: indexer,
		logger:  slog.Default().With("component", "ingest-pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BulkAdd ingests docs into index sequentially. The returned results are in
// input order, one per document. A document that is rejected leaves the
// index untouched; a later document with the same id as an earlier accepted
// one in the same batch is rejected as a duplicate. Accepted documents are
// searchable as soon as BulkAdd returns.
func (p *Pipeline) BulkAdd(ctx context.Context, index string, docs []ingestion.Document) (*ingestion.BatchResult, error) {
	if _, err := p.indexer.Count(index); err != nil {
		p.observeBatch(index, "failed")
		return nil, fmt.Errorf("bulk add to %q: %w", index, err)
	}

	batch := &ingestion.BatchResult{
		BatchID: uuid.NewString(),
		Index:   index,
		Results: make([]ingestion.Result, 0, len(docs)),
	}
	ctx = logger.WithBatchID(ctx, batch.BatchID)
	log := logger.FromContext(ctx).With("component", "ingest-pipeline", "index", index)

	for i := range docs {
		doc := &docs[i]
		err := validator.ValidateDocument(doc)
		if err == nil {
			err = p.indexer.IndexDocument(index, doc.ID, doc.Fields)
		}
		if err != nil && apperrors.IsFatal(err) {
			p.observeBatch(index, "failed")
			log.Error("bulk add aborted", "doc_id", doc.ID, "position", i, "error", err)
			return nil, fmt.Errorf("bulk add to %q at document %d: %w", index, i, err)
		}
		batch.Results = append(batch.Results, resultFor(doc.ID, err))
		if err != nil {
			batch.Rejected++
			log.Debug("document rejected", "doc_id", doc.ID, "code", apperrors.Code(err), "reason", err)
			p.observeDoc(index, "rejected")
			continue
		}
		batch.Accepted++
		p.observeDoc(index, "accepted")
	}

	status := "ok"
	if batch.Rejected > 0 {
		status = "partial"
	}
	p.observeBatch(index, status)
	if p.metrics != nil {
		if n, err := p.indexer.Count(index); err == nil {
			p.metrics.IndexDocCount.WithLabelValues(index).Set(float64(n))
		}
	}

	if batch.Accepted > 0 && p.invalidator != nil {
		if err := p.invalidator.Invalidate(ctx, index); err != nil {
			log.Warn("query cache invalidation failed", "error", err)
		}
	}
	for _, r := range p.recorders {
		if err := r.Record(ctx, batch); err != nil {
			log.Warn("recording batch outcome failed", "error", err)
		}
	}

	log.Info("bulk batch ingested",
		"documents", len(docs),
		"accepted", batch.Accepted,
		"rejected", batch.Rejected,
	)
	return batch, nil
}

func resultFor(id string, err error) ingestion.Result {
	if err == nil {
		return ingestion.Result{DocID: id, Status: ingestion.StatusAccepted}
	}
	return ingestion.Result{
		DocID:  id,
		Status: ingestion.StatusRejected,
		Reason: err.Error(),
		Code:   apperrors.Code(err),
	}
}

func (p *Pipeline) observeDoc(index, outcome string) {
	if p.metrics != nil {
		p.metrics.DocsIngestedTotal.WithLabelValues(index, outcome).Inc()
	}
}

func (p *Pipeline) observeBatch(index, status string) {
	if p.metrics != nil {
		p.metrics.BulkBatchesTotal.WithLabelValues(index, status).Inc()
	}
}

// Package node is the entry point of the search core: a Node is an explicit,
// self-contained instance owning its indices, ingest pipeline and query
// executor. Callers open a Node, pass it to whatever needs it and close it
// when done; there is no process-wide instance.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/ingestion/pipeline"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/metrics"
)

type options struct {
	registry  *analysis.Registry
	metrics   *metrics.Metrics
	cache     *cache.QueryCache
	recorders []pipeline.Recorder
	trackers  []analytics.Tracker
}

type Option func(*options)

// WithRegistry replaces the default analyzer registry.
func WithRegistry(r *analysis.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithMetrics records ingestion and search metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCache serves searches through a query cache, invalidated per index
// after every batch that accepted a document.
func WithCache(c *cache.QueryCache) Option {
	return func(o *options) { o.cache = c }
}

// WithRecorder records every bulk batch outcome.
func WithRecorder(r pipeline.Recorder) Option {
	return func(o *options) { o.recorders = append(o.recorders, r) }
}

// WithTracker reports every search and bulk batch to t.
func WithTracker(t analytics.Tracker) Option {
	return func(o *options) { o.trackers = append(o.trackers, t) }
}

type Node struct {
	name     string
	engine   *indexer.Engine
	pipeline *pipeline.Pipeline
	executor *executor.Executor
	cache    *cache.QueryCache
	metrics  *metrics.Metrics
	trackers []analytics.Tracker
	closed   atomic.Bool
	logger   *slog.Logger
}

// Open creates a node and the indices listed in cfg. A nil cfg uses
// config.Default().
func Open(cfg *config.Config, opts ...Option) (*Node, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	engine := indexer.NewEngine(o.registry)

	pipeOpts := []pipeline.Option{pipeline.WithMetrics(o.metrics)}
	if o.cache != nil {
		pipeOpts = append(pipeOpts, pipeline.WithInvalidator(o.cache))
	}
	for _, r := range o.recorders {
		pipeOpts = append(pipeOpts, pipeline.WithRecorder(r))
	}

	n := &Node{
		name:     cfg.Node.Name,
		engine:   engine,
		pipeline: pipeline.New(engine, pipeOpts...),
		executor: executor.New(engine,
			executor.WithMetrics(o.metrics),
			executor.WithMaxResults(cfg.Search.MaxResults),
		),
		cache:    o.cache,
		metrics:  o.metrics,
		trackers: o.trackers,
		logger:   slog.Default().With("component", "node", "node", cfg.Node.Name),
	}
	for _, idx := range cfg.Indices {
		if err := n.CreateIndex(idx.Name, schema.FromConfig(idx.Fields)); err != nil {
			return nil, fmt.Errorf("creating configured index %q: %w", idx.Name, err)
		}
	}
	n.logger.Info("node opened", "indices", len(cfg.Indices))
	return n, nil
}

// Close releases the node. Every later call fails with ErrNodeClosed.
// Closing twice is a no-op.
func (n *Node) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	n.logger.Info("node closing")
	return n.engine.Close()
}

func (n *Node) check() error {
	if n.closed.Load() {
		return apperrors.New(apperrors.ErrNodeClosed, n.name)
	}
	return nil
}

// CreateIndex defines a new index. Analyzer names are resolved immediately.
func (n *Node) CreateIndex(name string, mappings []schema.FieldMapping) error {
	if err := n.check(); err != nil {
		return err
	}
	if err := n.engine.CreateIndex(name, mappings); err != nil {
		return err
	}
	if n.metrics != nil {
		n.metrics.IndexDocCount.WithLabelValues(name).Set(0)
	}
	return nil
}

// DeleteIndex drops an index with its documents and cached results.
func (n *Node) DeleteIndex(ctx context.Context, name string) error {
	if err := n.check(); err != nil {
		return err
	}
	if err := n.engine.DeleteIndex(name); err != nil {
		return err
	}
	if n.metrics != nil {
		n.metrics.IndexDocCount.DeleteLabelValues(name)
	}
	if n.cache != nil {
		if err := n.cache.Invalidate(ctx, name); err != nil {
			n.logger.Warn("cache invalidation after delete failed", "index", name, "error", err)
		}
	}
	return nil
}

// Indices lists the index names.
func (n *Node) Indices() []string {
	if n.check() != nil {
		return nil
	}
	return n.engine.Indices()
}

// Mappings returns the resolved field mappings of an index.
func (n *Node) Mappings(name string) ([]schema.FieldMapping, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	s, err := n.engine.Schema(name)
	if err != nil {
		return nil, err
	}
	return s.Mappings(), nil
}

// BulkAdd ingests docs and returns one result per document in input order.
func (n *Node) BulkAdd(ctx context.Context, name string, docs []ingestion.Document) ([]ingestion.Result, error) {
	batch, err := n.BulkAddBatch(ctx, name, docs)
	if err != nil {
		return nil, err
	}
	return batch.Results, nil
}

// BulkAddBatch is BulkAdd returning the full batch summary.
func (n *Node) BulkAddBatch(ctx context.Context, name string, docs []ingestion.Document) (*ingestion.BatchResult, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	start := time.Now()
	batch, err := n.pipeline.BulkAdd(ctx, name, docs)
	if err != nil {
		return nil, err
	}
	n.observeTerms(name)
	n.track(analytics.BatchEvent{
		Type:      analytics.EventBatch,
		Index:     name,
		BatchID:   batch.BatchID,
		Accepted:  batch.Accepted,
		Rejected:  batch.Rejected,
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: start.UTC(),
	})
	return batch, nil
}

// Refresh is a synchronisation point. Ingested documents are visible as soon
// as BulkAdd returns; Refresh only waits for concurrent writers.
func (n *Node) Refresh(name string) error {
	if err := n.check(); err != nil {
		return err
	}
	return n.engine.Refresh(name)
}

// Count returns the number of documents in an index.
func (n *Node) Count(name string) (int, error) {
	if err := n.check(); err != nil {
		return 0, err
	}
	return n.executor.Count(name)
}

// Get returns the stored fields of a document.
func (n *Node) Get(name, id string) (map[string]string, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	return n.engine.Get(name, id)
}

// Analyze runs the named analyzer over text.
func (n *Node) Analyze(text, analyzer string) ([]analysis.Token, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	return n.engine.Registry().Analyze(analyzer, text)
}

// AnalyzeField runs the analyzer mapped to field of index over text.
func (n *Node) AnalyzeField(name, field, text string) ([]analysis.Token, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	return n.engine.AnalyzeField(name, field, text)
}

// Terms lists the dictionary of a field starting with prefix.
func (n *Node) Terms(name, field, prefix string) ([]index.TermEntry, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	return n.engine.Terms(name, field, prefix)
}

// Search runs q against field of index. Hits are sorted by score, then id
// ascending; limit <= 0 returns every hit.
func (n *Node) Search(ctx context.Context, name, field string, q parser.Query, limit int) (*executor.SearchResult, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	start := time.Now()
	var (
		result *executor.SearchResult
		hit    bool
		err    error
	)
	if n.cache == nil {
		result, err = n.executor.Search(ctx, name, field, q, limit)
	} else {
		req := cache.Request{Index: name, Field: field, Query: q, Limit: limit}
		result, hit, err = n.cache.GetOrCompute(ctx, req, func() (*executor.SearchResult, error) {
			return n.executor.Search(ctx, name, field, q, limit)
		})
	}
	n.trackQuery(name, field, q, result, hit, err, start)
	return result, err
}

// SearchWildcard matches pattern against the tokens of field.
func (n *Node) SearchWildcard(ctx context.Context, name, field, pattern string, analyzeWildcard bool) (*executor.SearchResult, error) {
	return n.Search(ctx, name, field, parser.Query{
		Type:            parser.QueryWildcard,
		Value:           pattern,
		AnalyzeWildcard: analyzeWildcard,
	}, 0)
}

// SearchExact looks token up in field without analysis.
func (n *Node) SearchExact(ctx context.Context, name, field, token string) (*executor.SearchResult, error) {
	return n.Search(ctx, name, field, parser.Query{Type: parser.QueryExact, Value: token}, 0)
}

// QueryString parses raw ("field:value" or "value") and runs it.
func (n *Node) QueryString(ctx context.Context, name, defaultField, raw string, analyzeWildcard bool, limit int) (*executor.SearchResult, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	plan, err := parser.Parse(raw, defaultField, analyzeWildcard)
	if err != nil {
		return nil, err
	}
	return n.Search(ctx, name, plan.Field, plan.Query, limit)
}

func (n *Node) track(event any) {
	for _, t := range n.trackers {
		t.Track(event)
	}
}

func (n *Node) trackQuery(name, field string, q parser.Query, result *executor.SearchResult, hit bool, err error, start time.Time) {
	if len(n.trackers) == 0 {
		return
	}
	event := analytics.QueryEvent{
		Type:      analytics.EventSearch,
		Index:     name,
		Field:     field,
		QueryType: string(q.Type),
		Query:     q.Value,
		LatencyMs: time.Since(start).Milliseconds(),
		CacheHit:  hit,
		Timestamp: start.UTC(),
	}
	if err != nil {
		event.Error = err.Error()
	} else {
		event.Pattern = result.Pattern
		event.TotalHits = result.TotalHits
		event.Returned = len(result.Hits)
		event.MatchedTerms = result.MatchedTerms
	}
	n.track(event)
}

func (n *Node) observeTerms(name string) {
	if n.metrics == nil {
		return
	}
	s, err := n.engine.Schema(name)
	if err != nil {
		return
	}
	for _, field := range s.Fields() {
		if c, err := n.engine.TermCount(name, field); err == nil {
			n.metrics.IndexTermCount.WithLabelValues(name, field).Set(float64(c))
		}
	}
}

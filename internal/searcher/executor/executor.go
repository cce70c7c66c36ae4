// Package executor evaluates single-field queries against an index. A
// wildcard query runs in two steps: the literal parts of the pattern are
// normalised (folded like indexed text, or passed through the field analyzer
// when AnalyzeWildcard is set), then the pattern is matched against the stored
// tokens of the field.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/indexer/wildcard"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/tracing"
	"github.com/RoaringBitmap/roaring"
)

// Hit is one matched document with its stored fields.
type Hit struct {
	ID     string            `json:"id"`
	Score  float64           `json:"score"`
	Fields map[string]string `json:"fields"`
}

// SearchResult holds the hits of one query. TotalHits counts every match,
// Hits at most the requested limit.
type SearchResult struct {
	Index        string       `json:"index"`
	Field        string       `json:"field"`
	Query        parser.Query `json:"query"`
	Pattern      string       `json:"pattern,omitempty"`
	TotalHits    int          `json:"total_hits"`
	MatchedTerms int          `json:"matched_terms"`
	Hits         []Hit        `json:"hits"`
}

// IDs returns the ids of the hits in order.
func (r *SearchResult) IDs() []string {
	ids := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		ids[i] = h.ID
	}
	return ids
}

// Reader is the read side of the index engine.
type Reader interface {
	Read(index string, fn func(v *indexer.View) error) error
	Count(index string) (int, error)
}

type Option func(*Executor)

// WithMetrics records query counters and latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithMaxResults caps positive limits.
func WithMaxResults(n int) Option {
	return func(e *Executor) { e.maxResults = n }
}

type Executor struct {
	reader     Reader
	metrics    *metrics.Metrics
	maxResults int
	logger     *slog.Logger
}

func New(reader Reader, opts ...Option) *Executor {
	e := &Executor{
		reader: reader,
		logger: slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Count returns the number of documents in index.
func (e *Executor) Count(index string) (int, error) {
	return e.reader.Count(index)
}

// Search runs q against field of index. Hits are ordered by score, then id
// ascending; limit <= 0 returns every hit.
func (e *Executor) Search(ctx context.Context, index, field string, q parser.Query, limit int) (*SearchResult, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "search")
	span.SetAttr("index", index)
	span.SetAttr("field", field)
	span.SetAttr("type", string(q.Type))

	result, err := e.search(ctx, index, field, q, e.clampLimit(limit))
	span.End()
	e.observe(q.Type, result, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	span.Log(e.logger)
	e.logger.Debug("query executed",
		"index", index,
		"field", field,
		"type", q.Type,
		"value", q.Value,
		"total_hits", result.TotalHits,
		"returned", len(result.Hits),
	)
	return result, nil
}

func (e *Executor) search(ctx context.Context, index, field string, q parser.Query, limit int) (*SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	result := &SearchResult{Index: index, Field: field, Query: q, Hits: []Hit{}}
	err := e.reader.Read(index, func(v *indexer.View) error {
		f, err := v.Schema().Field(field)
		if err != nil {
			return err
		}
		var matches *roaring.Bitmap
		switch q.Type {
		case parser.QueryExact:
			matches = v.LookupExact(field, q.Value)
			result.MatchedTerms = boolToInt(!matches.IsEmpty())
		case parser.QueryMatch:
			matches, result.MatchedTerms = matchTerms(v, f, q.Value)
		case parser.QueryWildcard:
			_, span := tracing.StartSpan(ctx, "normalize-pattern")
			p, err := NormalizePattern(f, q.Value, q.AnalyzeWildcard)
			if err != nil {
				span.End()
				return err
			}
			result.Pattern = p.String()
			span.SetAttr("pattern", result.Pattern)
			span.End()

			_, span = tracing.StartSpan(ctx, "match-terms")
			matches, result.MatchedTerms = v.LookupWildcard(field, p)
			span.SetAttr("terms", result.MatchedTerms)
			span.End()
		}

		_, span := tracing.StartSpan(ctx, "hydrate")
		defer span.End()
		ranked := ranker.Rank(ranker.Scores(matches, v.ID), limit)
		result.TotalHits = int(matches.GetCardinality())
		for _, d := range ranked {
			result.Hits = append(result.Hits, Hit{ID: d.DocID, Score: d.Score, Fields: v.Fields(d.Ordinal)})
		}
		span.SetAttr("hits", len(result.Hits))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// NormalizePattern parses raw and rewrites its literal runs for field. A
// literal is folded with the field analyzer's normalisation (NFC plus its
// lowercasing; keyword fields keep case), or with analyze replaced by the
// single token the field analyzer produces for it. Literals analyzing to
// zero or several tokens are only folded.
func NormalizePattern(f *schema.Field, raw string, analyze bool) (*wildcard.Pattern, error) {
	p, err := wildcard.Parse(raw)
	if err != nil {
		return nil, err
	}
	return p.MapLiterals(func(lit string) string {
		if analyze {
			if tokens := f.Analyzer.Analyze(lit); len(tokens) == 1 {
				return tokens[0].Term
			}
		}
		return analysis.Normalize(f.Analyzer, lit)
	}), nil
}

func matchTerms(v *indexer.View, f *schema.Field, text string) (*roaring.Bitmap, int) {
	tokens := f.Analyzer.Analyze(text)
	seen := make(map[string]struct{}, len(tokens))
	postings := make([]*roaring.Bitmap, 0, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok.Term]; dup {
			continue
		}
		seen[tok.Term] = struct{}{}
		if bm := v.LookupExact(f.Mapping.Name, tok.Term); !bm.IsEmpty() {
			postings = append(postings, bm)
		}
	}
	if len(postings) == 0 {
		return roaring.New(), 0
	}
	return roaring.FastOr(postings...), len(postings)
}

func (e *Executor) clampLimit(limit int) int {
	if limit > 0 && e.maxResults > 0 && limit > e.maxResults {
		return e.maxResults
	}
	return limit
}

func (e *Executor) observe(t parser.QueryType, result *SearchResult, err error, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	label := string(t)
	outcome := "hit"
	switch {
	case err != nil:
		outcome = "error"
	case result.TotalHits == 0:
		outcome = "zero_result"
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(label, outcome).Inc()
	e.metrics.SearchLatency.WithLabelValues(label).Observe(elapsed.Seconds())
	if err == nil {
		e.metrics.SearchResultsCount.WithLabelValues(label).Observe(float64(result.TotalHits))
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

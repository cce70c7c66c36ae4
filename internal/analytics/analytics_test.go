package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.Track(QueryEvent{Type: EventSearch, Index: "test_nx", Field: "f2", QueryType: "wildcard", Query: "*обак*", TotalHits: 2, LatencyMs: 4})
	agg.Track(QueryEvent{Type: EventSearch, Index: "test_nx", Field: "f2", QueryType: "wildcard", Query: "*обак*", TotalHits: 2, LatencyMs: 1, CacheHit: true})
	agg.Track(QueryEvent{Type: EventSearch, Index: "test_nx", Field: "f1", QueryType: "exact", Query: "nothing", LatencyMs: 2})
	agg.Track(QueryEvent{Type: EventSearch, Index: "test_nx", Field: "f9", QueryType: "exact", Query: "x", Error: "unmapped field"})
	agg.Track(BatchEvent{Type: EventBatch, Index: "test_nx", Accepted: 10, Rejected: 1})
	agg.Track("ignored")

	stats := agg.Stats()
	assert.Equal(t, int64(4), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.FailedSearches)
	assert.Equal(t, int64(2), stats.SearchesByType["exact"])
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(1), stats.TotalBatches)
	assert.Equal(t, int64(10), stats.DocsAccepted)
	assert.Equal(t, int64(1), stats.DocsRejected)
	assert.Equal(t, IndexStat{Searches: 4, Accepted: 10, Rejected: 1}, stats.Indices["test_nx"])
	assert.InDelta(t, 7.0/3.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(2), stats.P50LatencyMs)
	require.NotEmpty(t, stats.TopQueries)
	assert.Equal(t, QueryCount{Query: "f2:*обак*", Count: 2}, stats.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: "f1:nothing", Count: 1}}, stats.ZeroResultQueries)
}

func TestAggregatorBoundsLatencySamples(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+10; i++ {
		agg.Track(QueryEvent{Type: EventSearch, Query: "q", LatencyMs: int64(i)})
	}
	assert.Len(t, agg.latencies, maxLatencySamples)
	assert.Equal(t, int64(maxLatencySamples+10), agg.Stats().TotalSearches)
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator()
	handler := HandleEvent(agg)

	q, err := json.Marshal(QueryEvent{Type: EventSearch, Index: "test_nx", QueryType: "wildcard", Query: "*est5*", TotalHits: 1})
	require.NoError(t, err)
	b, err := json.Marshal(BatchEvent{Type: EventBatch, Index: "test_nx", Accepted: 3})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), nil, q))
	require.NoError(t, handler(context.Background(), nil, b))
	require.NoError(t, handler(context.Background(), nil, []byte("{bad")))
	require.NoError(t, handler(context.Background(), nil, []byte(`{"type":"other"}`)))

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.TotalSearches)
	assert.Equal(t, int64(3), stats.DocsAccepted)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (c *capturePublisher) Publish(_ context.Context, events ...kafka.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, events...)
	return nil
}

func TestCollectorPublishesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	c := NewCollector(pub, 16)
	c.Start(context.Background())

	c.Track(QueryEvent{Type: EventSearch, Index: "test_nx", Query: "a"})
	c.Track(BatchEvent{Type: EventBatch, Index: "other"})
	c.Close()

	require.Len(t, pub.events, 2)
	assert.Equal(t, "test_nx", pub.events[0].Key)
	assert.Equal(t, "other", pub.events[1].Key)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	c := NewCollector(pub, 1)
	c.Track(QueryEvent{Query: "kept"})
	c.Track(QueryEvent{Query: "dropped"})
	assert.Len(t, c.eventCh, 1)

	c.Start(context.Background())
	c.Close()
	assert.Empty(t, pub.events)
}

func TestHandlerServesStats(t *testing.T) {
	agg := NewAggregator()
	agg.Track(QueryEvent{Type: EventSearch, Index: "test_nx", QueryType: "exact", Query: "x", TotalHits: 1})
	h := NewHandler(agg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalSearches)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stats", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/kafka"
)

const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches     int64                `json:"total_searches"`
	FailedSearches    int64                `json:"failed_searches"`
	SearchesByType    map[string]int64     `json:"searches_by_type"`
	TotalBatches      int64                `json:"total_batches"`
	DocsAccepted      int64                `json:"docs_accepted"`
	DocsRejected      int64                `json:"docs_rejected"`
	CacheHits         int64                `json:"cache_hits"`
	CacheMisses       int64                `json:"cache_misses"`
	ZeroResultCount   int64                `json:"zero_result_count"`
	AvgLatencyMs      float64              `json:"avg_latency_ms"`
	P50LatencyMs      int64                `json:"p50_latency_ms"`
	P95LatencyMs      int64                `json:"p95_latency_ms"`
	P99LatencyMs      int64                `json:"p99_latency_ms"`
	TopQueries        []QueryCount         `json:"top_queries"`
	ZeroResultQueries []QueryCount         `json:"zero_result_queries"`
	Indices           map[string]IndexStat `json:"indices"`
	QueriesPerMinute  float64              `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type IndexStat struct {
	Searches int64 `json:"searches"`
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
}

// Aggregator keeps running statistics over tracked events. Latency
// percentiles cover the most recent samples only.
type Aggregator struct {
	mu                sync.Mutex
	stats             AggregatedStats
	latencies         []int64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	indices           map[string]IndexStat
	startTime         time.Time
	now               func() time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		stats:             AggregatedStats{SearchesByType: make(map[string]int64)},
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		indices:           make(map[string]IndexStat),
		startTime:         time.Now(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Track records a QueryEvent or BatchEvent; other values are ignored.
func (a *Aggregator) Track(event any) {
	switch e := event.(type) {
	case QueryEvent:
		a.recordQuery(e)
	case BatchEvent:
		a.recordBatch(e)
	default:
		a.logger.Debug("ignoring unknown analytics event", "type", e)
	}
}

// HandleEvent returns a MessageHandler feeding events published by a
// Collector into agg. Undecodable messages are skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var head struct {
			Type EventType `json:"type"`
		}
		if err := json.Unmarshal(value, &head); err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err, "key", string(key))
			return nil
		}
		switch head.Type {
		case EventSearch:
			if e, err := kafka.DecodeJSON[QueryEvent](value); err == nil {
				agg.Track(e)
			}
		case EventBatch:
			if e, err := kafka.DecodeJSON[BatchEvent](value); err == nil {
				agg.Track(e)
			}
		default:
			agg.logger.Warn("unknown analytics event type", "type", head.Type)
		}
		return nil
	}
}

func (a *Aggregator) recordQuery(e QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.TotalSearches++
	a.stats.SearchesByType[e.QueryType]++
	is := a.indices[e.Index]
	is.Searches++
	a.indices[e.Index] = is
	if e.Error != "" {
		a.stats.FailedSearches++
		return
	}
	if e.CacheHit {
		a.stats.CacheHits++
	} else {
		a.stats.CacheMisses++
	}

	key := e.Field + ":" + e.Query
	a.queryCounts[key]++
	if e.TotalHits == 0 {
		a.stats.ZeroResultCount++
		a.zeroResultQueries[key]++
	}

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, e.LatencyMs)
	} else {
		a.latencies[a.next] = e.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
}

func (a *Aggregator) recordBatch(e BatchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.TotalBatches++
	a.stats.DocsAccepted += int64(e.Accepted)
	a.stats.DocsRejected += int64(e.Rejected)
	is := a.indices[e.Index]
	is.Accepted += int64(e.Accepted)
	is.Rejected += int64(e.Rejected)
	a.indices[e.Index] = is
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := a.stats
	stats.SearchesByType = make(map[string]int64, len(a.stats.SearchesByType))
	for k, v := range a.stats.SearchesByType {
		stats.SearchesByType[k] = v
	}
	stats.Indices = make(map[string]IndexStat, len(a.indices))
	for k, v := range a.indices {
		stats.Indices[k] = v
	}

	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n highest counts, ties broken by query.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

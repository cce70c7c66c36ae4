// Package analytics records what a node is asked to do: every search and
// every bulk batch becomes an event that is aggregated in process and,
// optionally, shipped to Kafka for offline analysis.
package analytics

import "time"

type EventType string

const (
	EventSearch EventType = "search"
	EventBatch  EventType = "batch"
)

// QueryEvent describes one executed search.
type QueryEvent struct {
	Type         EventType `json:"type"`
	Index        string    `json:"index"`
	Field        string    `json:"field"`
	QueryType    string    `json:"query_type"`
	Query        string    `json:"query"`
	Pattern      string    `json:"pattern,omitempty"`
	TotalHits    int       `json:"total_hits"`
	Returned     int       `json:"returned"`
	MatchedTerms int       `json:"matched_terms"`
	LatencyMs    int64     `json:"latency_ms"`
	CacheHit     bool      `json:"cache_hit"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// BatchEvent describes one bulk batch.
type BatchEvent struct {
	Type      EventType `json:"type"`
	Index     string    `json:"index"`
	BatchID   string    `json:"batch_id"`
	Accepted  int       `json:"accepted"`
	Rejected  int       `json:"rejected"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker receives events. Implementations must not block.
type Tracker interface {
	Track(event any)
}

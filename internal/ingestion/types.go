// Package ingestion defines the document and result types of bulk ingestion
// and the Kafka event schemas carrying them.
package ingestion

import "time"

// Status is the outcome of ingesting one document.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Document is a unit of ingestion. ID must be unique within its index.
type Document struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Result reports the outcome for one document of a batch. Reason and Code
// are set for rejected documents only.
type Result struct {
	DocID  string `json:"id"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Code   string `json:"code,omitempty"`
}

// BatchResult collects the results of one BulkAdd call, in input order.
type BatchResult struct {
	BatchID  string   `json:"batch_id"`
	Index    string   `json:"index"`
	Results  []Result `json:"results"`
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
}

// BulkEvent is the Kafka payload requesting a bulk ingestion.
type BulkEvent struct {
	RequestID string     `json:"request_id"`
	Index     string     `json:"index"`
	Documents []Document `json:"documents"`
}

// ResultEvent is the Kafka payload published after a batch was ingested.
type ResultEvent struct {
	RequestID  string    `json:"request_id,omitempty"`
	BatchID    string    `json:"batch_id"`
	Index      string    `json:"index"`
	Accepted   int       `json:"accepted"`
	Rejected   int       `json:"rejected"`
	Results    []Result  `json:"results"`
	Error      string    `json:"error,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
}

//go:build e2e

// Package e2e contains end-to-end tests against a running `searchcore serve`
// node with Kafka enabled and configs/searchcore.yaml loaded.
//
// Prerequisites:
//   - Kafka running, topics auto-created
//   - searchcore serve --config configs/searchcore.yaml with kafka.enabled
//
// Run with:
//
//	go test -v -tags=e2e -timeout=120s ./test/e2e/...
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/searcher/parser"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type e2eConfig struct {
	OpsURL  string
	Brokers []string
}

func loadE2EConfig() e2eConfig {
	return e2eConfig{
		OpsURL:  envOrDefault("E2E_OPS_URL", "http://localhost:9090"),
		Brokers: strings.Split(envOrDefault("E2E_KAFKA_BROKERS", "localhost:9092"), ","),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// TestNodeHealth verifies the ops endpoints respond.
func TestNodeHealth(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	for _, path := range []string{"/health/live", "/health/ready", "/metrics", "/stats"} {
		t.Run(path, func(t *testing.T) {
			resp, err := client.Get(cfg.OpsURL + path)
			if err != nil {
				t.Skipf("node unavailable: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

// TestBulkIngestAndSearchOverKafka sends a unique batch, waits for its
// result event, then searches it and waits for the response.
func TestBulkIngestAndSearchOverKafka(t *testing.T) {
	cfg := loadE2EConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		t.Skipf("kafka unavailable: %v", err)
	}
	conn.Close()

	run := uuid.NewString()[:8]
	words := []string{"У", "ПОПА", "БЫЛА", "СОБАКА", "организация"}
	docs := make([]ingestion.Document, 10)
	for i := range docs {
		docs[i] = ingestion.Document{
			ID: fmt.Sprintf("%s-%d", run, i),
			Fields: map[string]string{
				"f1": fmt.Sprintf("test%s%dv", run, i),
				"f2": words[i%5],
			},
		}
	}

	ingestResults := reader(cfg, "ingest-results", run)
	defer ingestResults.Close()
	searchResults := reader(cfg, "search-results", run)
	defer searchResults.Close()

	bulkID := "bulk-" + run
	publish(ctx, t, cfg, "bulk-ingest", bulkID, ingestion.BulkEvent{RequestID: bulkID, Index: "test_nx", Documents: docs})

	result := waitFor[ingestion.ResultEvent](ctx, t, ingestResults, func(e ingestion.ResultEvent) bool {
		return e.RequestID == bulkID
	})
	assert.Equal(t, 10, result.Accepted)
	assert.Equal(t, 0, result.Rejected)

	searchID := "search-" + run
	publish(ctx, t, cfg, "search-requests", searchID, consumer.SearchEvent{
		RequestID: searchID,
		Index:     "test_nx",
		Field:     "f1",
		Query:     &parser.Query{Type: parser.QueryWildcard, Value: "*" + run + "5*", AnalyzeWildcard: true},
	})
	resp := waitFor[consumer.SearchResponseEvent](ctx, t, searchResults, func(e consumer.SearchResponseEvent) bool {
		return e.RequestID == searchID
	})
	require.Empty(t, resp.Error)
	assert.Equal(t, []string{run + "-5"}, resp.Result.IDs())
}

func reader(cfg e2eConfig, topic, run string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     "e2e-" + run + "-" + topic,
		StartOffset: kafka.FirstOffset,
		MaxWait:     500 * time.Millisecond,
	})
}

func publish(ctx context.Context, t *testing.T, cfg e2eConfig, topic, key string, value any) {
	t.Helper()
	data, err := json.Marshal(value)
	require.NoError(t, err)
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		AllowAutoTopicCreation: true,
	}
	defer w.Close()
	require.NoError(t, w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data}))
}

func waitFor[T any](ctx context.Context, t *testing.T, r *kafka.Reader, match func(T) bool) T {
	t.Helper()
	for {
		msg, err := r.ReadMessage(ctx)
		require.NoError(t, err, "waiting on %s", r.Config().Topic)
		var v T
		if json.Unmarshal(msg.Value, &v) == nil && match(v) {
			return v
		}
	}
}

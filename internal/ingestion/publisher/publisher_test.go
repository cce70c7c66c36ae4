package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	saved    []*ingestion.BatchResult
	err      error
	failures int
	calls    int
}

func (f *fakeStore) SaveResults(_ context.Context, b *ingestion.BatchResult) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.calls <= f.failures {
		return errors.New("connection reset")
	}
	f.saved = append(f.saved, b)
	return nil
}

type fakeProducer struct {
	events []kafka.Event
	err    error
}

func (f *fakeProducer) Publish(_ context.Context, events ...kafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, events...)
	return nil
}

func sampleBatch() *ingestion.BatchResult {
	return &ingestion.BatchResult{
		BatchID: "b-1",
		Index:   "test_nx",
		Results: []ingestion.Result{
			{DocID: "1", Status: ingestion.StatusAccepted},
			{DocID: "1", Status: ingestion.StatusRejected, Code: "duplicate_id", Reason: "document id already exists"},
		},
		Accepted: 1,
		Rejected: 1,
	}
}

func TestRecordSavesAndPublishes(t *testing.T) {
	store := &fakeStore{}
	prod := &fakeProducer{}
	p := New(store, prod)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	batch := sampleBatch()
	require.NoError(t, p.Record(WithRequestID(context.Background(), "req-7"), batch))

	require.Len(t, store.saved, 1)
	require.Len(t, prod.events, 1)
	assert.Equal(t, "test_nx", prod.events[0].Key)
	ev, ok := prod.events[0].Value.(ingestion.ResultEvent)
	require.True(t, ok)
	assert.Equal(t, "req-7", ev.RequestID)
	assert.Equal(t, "b-1", ev.BatchID)
	assert.Equal(t, 1, ev.Accepted)
	assert.Equal(t, 1, ev.Rejected)
	assert.Equal(t, batch.Results, ev.Results)
	assert.Equal(t, fixed, ev.IngestedAt)
}

func TestRecordStoreFailureSkipsPublish(t *testing.T) {
	prod := &fakeProducer{}
	p := New(&fakeStore{err: errors.New("db down")}, prod)
	err := p.Record(context.Background(), sampleBatch())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b-1")
	assert.Contains(t, err.Error(), "db down")
	assert.Empty(t, prod.events)
}

func TestRecordRetriesStore(t *testing.T) {
	store := &fakeStore{failures: 2}
	prod := &fakeProducer{}
	p := New(store, prod, WithRetry(resilience.RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	}))
	require.NoError(t, p.Record(context.Background(), sampleBatch()))
	assert.Equal(t, 3, store.calls)
	assert.Len(t, store.saved, 1)
	assert.Len(t, prod.events, 1)
}

func TestRecordPublishFailure(t *testing.T) {
	p := New(nil, &fakeProducer{err: errors.New("broker down")})
	err := p.Record(context.Background(), sampleBatch())
	assert.ErrorContains(t, err, "broker down")
}

func TestRecordWithoutSinks(t *testing.T) {
	p := New(nil, nil)
	assert.NoError(t, p.Record(context.Background(), sampleBatch()))
	assert.NoError(t, p.RecordFailure(context.Background(), "i", errors.New("x")))
}

func TestRecordFailure(t *testing.T) {
	prod := &fakeProducer{}
	p := New(nil, prod)
	require.NoError(t, p.RecordFailure(WithRequestID(context.Background(), "req-1"), "missing", errors.New("index not found")))
	require.Len(t, prod.events, 1)
	ev := prod.events[0].Value.(ingestion.ResultEvent)
	assert.Equal(t, "index not found", ev.Error)
	assert.Equal(t, "missing", ev.Index)
	assert.Equal(t, "req-1", ev.RequestID)
	assert.Empty(t, ev.Results)
}

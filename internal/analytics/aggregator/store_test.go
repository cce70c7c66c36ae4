package aggregator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodicSaveWritesFinalSnapshot(t *testing.T) {
	agg := analytics.NewAggregator()
	agg.Track(analytics.BatchEvent{Type: analytics.EventBatch, Index: "test_nx", Accepted: 10})

	var (
		mu    sync.Mutex
		saved []analytics.AggregatedStats
	)
	s := NewStore(nil, "searchcore-test")
	s.save = func(_ context.Context, stats analytics.AggregatedStats) error {
		mu.Lock()
		defer mu.Unlock()
		saved = append(saved, stats)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.StartPeriodicSave(ctx, agg, time.Hour)
	cancel()
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, saved, 1)
	assert.Equal(t, int64(10), saved[0].DocsAccepted)
}

func TestPeriodicSaveTicks(t *testing.T) {
	agg := analytics.NewAggregator()
	calls := make(chan struct{}, 16)
	s := NewStore(nil, "searchcore-test")
	s.save = func(context.Context, analytics.AggregatedStats) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.StartPeriodicSave(ctx, agg, 5*time.Millisecond)
	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatal("no periodic snapshot")
		}
	}
	cancel()
	s.Wait()
}

package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu    sync.Mutex
	data  map[string][]byte
	err   error
	calls atomic.Int64
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.data[key]
	if !ok {
		return nil, pkgredis.ErrMiss
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.data[key] = value
	return nil
}

func (s *memStore) DeleteByPattern(_ context.Context, pattern string) (int64, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func request(index, value string) Request {
	return Request{Index: index, Field: "f2", Query: parser.Query{Type: parser.QueryWildcard, Value: value}}
}

func result(ids ...string) *executor.SearchResult {
	r := &executor.SearchResult{TotalHits: len(ids), Hits: []executor.Hit{}}
	for _, id := range ids {
		r.Hits = append(r.Hits, executor.Hit{ID: id, Score: 1, Fields: map[string]string{"f2": "СОБАКА"}})
	}
	return r
}

func TestGetOrCompute(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := New(newMemStore(), time.Minute, nil, m)
	ctx := context.Background()
	computed := 0
	compute := func() (*executor.SearchResult, error) {
		computed++
		return result("3", "8"), nil
	}

	got, hit, err := c.GetOrCompute(ctx, request("test_nx", "*обак*"), compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"3", "8"}, got.IDs())

	got, hit, err = c.GetOrCompute(ctx, request("test_nx", "*обак*"), compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"3", "8"}, got.IDs())
	assert.Equal(t, "СОБАКА", got.Hits[0].Fields["f2"])
	assert.Equal(t, 1, computed)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMissesTotal))
}

func TestComputeErrorIsNotCached(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), request("i", "x*"), func() (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestKeysDistinguishRequests(t *testing.T) {
	base := request("test_nx", "*est5*")
	other := base
	other.Query.AnalyzeWildcard = true
	limited := base
	limited.Limit = 5

	keys := map[string]struct{}{
		buildKey(base, "e", 0):                       {},
		buildKey(other, "e", 0):                      {},
		buildKey(limited, "e", 0):                    {},
		buildKey(request("other", "*est5*"), "e", 0): {},
		buildKey(base, "e", 1):                       {},
		buildKey(base, "f", 0):                       {},
	}
	assert.Len(t, keys, 6)
	assert.Equal(t, buildKey(base, "e", 0), buildKey(request("test_nx", "*est5*"), "e", 0))
	assert.True(t, strings.HasPrefix(buildKey(base, "e", 3), "search:test_nx:"))
}

func TestResultComputedBeforeInvalidateIsNotServed(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil, nil)
	ctx := context.Background()
	req := request("test_nx", "*обак*")

	computing := make(chan struct{})
	release := make(chan struct{})
	first := make(chan *executor.SearchResult, 1)
	go func() {
		got, _, _ := c.GetOrCompute(ctx, req, func() (*executor.SearchResult, error) {
			close(computing)
			<-release
			return result("3", "8"), nil
		})
		first <- got
	}()
	<-computing
	require.NoError(t, c.Invalidate(ctx, "test_nx"))
	close(release)
	assert.Equal(t, []string{"3", "8"}, (<-first).IDs())

	got, hit, err := c.GetOrCompute(ctx, req, func() (*executor.SearchResult, error) {
		return result("10", "3", "8"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"10", "3", "8"}, got.IDs())
}

func TestInvalidateTakesEffectWhenBackendFails(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil, nil)
	ctx := context.Background()
	c.Set(ctx, request("a", "x*"), result("1"))

	store.err = errors.New("connection refused")
	assert.Error(t, c.Invalidate(ctx, "a"))
	store.err = nil

	_, ok := c.Get(ctx, request("a", "x*"))
	assert.False(t, ok)
}

func TestInvalidateIsPerIndex(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil, nil)
	ctx := context.Background()
	c.Set(ctx, request("a", "x*"), result("1"))
	c.Set(ctx, request("b", "x*"), result("2"))

	require.NoError(t, c.Invalidate(ctx, "a"))
	_, ok := c.Get(ctx, request("a", "x*"))
	assert.False(t, ok)
	_, ok = c.Get(ctx, request("b", "x*"))
	assert.True(t, ok)
}

func TestBackendFailureDegradesToCompute(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	breaker := resilience.NewBreaker("query-cache", resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	c := New(store, time.Minute, breaker, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, hit, err := c.GetOrCompute(ctx, request("i", "x*"), func() (*executor.SearchResult, error) {
			return result("1"), nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, []string{"1"}, got.IDs())
	}
	assert.Equal(t, resilience.StateOpen, breaker.State())
	// once open the backend is no longer called
	assert.Equal(t, int64(2), store.calls.Load())

	err := c.Invalidate(ctx, "i")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "plain", escapeGlob("plain"))
	assert.Equal(t, `a\*b\?\[c\]`, escapeGlob("a*b?[c]"))
}

// Package cache stores search results in Redis. Keys are scoped per index so
// a bulk batch that changed an index drops only that index's entries.
// Concurrent identical queries are collapsed with singleflight, and a
// circuit breaker stops calling an unhealthy backend: on any cache failure
// the query is simply computed.
//
// Every key carries the index generation, which Invalidate bumps before
// deleting. A result computed against an older generation can still be
// written, but no later lookup reads its key.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/resilience"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// Store is the key-value backend. *pkgredis.Client implements it; Get must
// return pkgredis.ErrMiss for absent keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
}

// Request identifies a cacheable search.
type Request struct {
	Index string
	Field string
	Query parser.Query
	Limit int
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.Breaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64

	// epoch keeps entries written by an earlier process out of reach.
	epoch string
	mu    sync.Mutex
	gens  map[string]uint64
}

// New creates a cache. breaker and m may be nil.
func New(store Store, ttl time.Duration, breaker *resilience.Breaker, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		breaker: breaker,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
		epoch:   uuid.NewString()[:8],
		gens:    make(map[string]uint64),
	}
}

func (c *QueryCache) generation(index string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[index]
}

func (c *QueryCache) bump(index string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[index]++
}

func (c *QueryCache) key(req Request) string {
	return buildKey(req, c.epoch, c.generation(req.Index))
}

// Get returns a cached result.
func (c *QueryCache) Get(ctx context.Context, req Request) (*executor.SearchResult, bool) {
	return c.get(ctx, req.Index, c.key(req))
}

func (c *QueryCache) get(ctx context.Context, index, key string) (*executor.SearchResult, bool) {
	var data []byte
	err := c.guard(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if errors.Is(err, pkgredis.ErrMiss) {
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if data == nil {
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "index", index, "key", key)
	return &result, true
}

// Set stores a result. Failures are logged and otherwise ignored.
func (c *QueryCache) Set(ctx context.Context, req Request, result *executor.SearchResult) {
	c.set(ctx, c.key(req), result)
}

func (c *QueryCache) set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.guard(func() error { return c.store.Set(ctx, key, data, c.ttl) }); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for req or computes, stores and
// returns it. The boolean reports a cache hit. Errors of compute are
// returned as is and never cached. The key is fixed before compute runs,
// so a result racing an Invalidate is stored under the old generation.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	req Request,
	compute func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	key := c.key(req)
	if result, ok := c.get(ctx, req.Index, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate moves index to a new generation and drops its cached results.
// Lookups miss from the moment it is called, even when the backend delete
// fails.
func (c *QueryCache) Invalidate(ctx context.Context, index string) error {
	c.bump(index)
	pattern := keyPrefix + escapeGlob(index) + ":*"
	var deleted int64
	err := c.guard(func() error {
		var err error
		deleted, err = c.store.DeleteByPattern(ctx, pattern)
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating cache of %q: %w", index, err)
	}
	c.logger.Info("cache invalidated", "index", index, "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counts since creation.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) guard(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(fn)
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// buildKey hashes everything that changes the result of a search.
func buildKey(req Request, epoch string, gen uint64) string {
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%t\x00%d",
		req.Index, req.Field, req.Query.Type, req.Query.Value, req.Query.AnalyzeWildcard, req.Limit)
	return fmt.Sprintf("%s%s:%s.%d:%016x", keyPrefix, req.Index, epoch, gen, h.Sum64())
}

func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

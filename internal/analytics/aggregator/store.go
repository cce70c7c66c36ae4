// Package aggregator persists snapshots of a node's aggregated analytics to
// PostgreSQL so statistics survive restarts of the in-memory node.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/postgres"
)

// StatsSource is implemented by *analytics.Aggregator.
type StatsSource interface {
	Stats() analytics.AggregatedStats
}

// Store writes snapshots into the analytics_snapshots table.
type Store struct {
	db     *postgres.Client
	node   string
	save   func(ctx context.Context, stats analytics.AggregatedStats) error
	done   chan struct{}
	logger *slog.Logger
}

func NewStore(db *postgres.Client, nodeName string) *Store {
	s := &Store{
		db:     db,
		node:   nodeName,
		done:   make(chan struct{}),
		logger: slog.Default().With("component", "analytics-store"),
	}
	s.save = s.SaveSnapshot
	return s
}

func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO analytics_snapshots (node_name, data, captured_at) VALUES ($1, $2, $3)`,
		s.node, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Debug("analytics snapshot saved",
		"total_searches", stats.TotalSearches,
		"docs_accepted", stats.DocsAccepted,
	)
	return nil
}

// LatestSnapshot loads the most recent snapshot of this node, or nil when
// none was saved yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM analytics_snapshots WHERE node_name = $1 ORDER BY captured_at DESC LIMIT 1`,
		s.node,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// StartPeriodicSave snapshots src every interval and once more when ctx is
// cancelled. Wait blocks until that final snapshot is written.
func (s *Store) StartPeriodicSave(ctx context.Context, src StatsSource, interval time.Duration) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.save(ctx, src.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.save(shutdownCtx, src.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}

func (s *Store) Wait() {
	<-s.done
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	_ "github.com/lib/pq"
)

// Migrations create the tables used by the search core, in order.
var Migrations = []string{ingestResultsTable, analyticsSnapshotsTable}

const ingestResultsTable = `CREATE TABLE IF NOT EXISTS ingest_results (
	index_name  TEXT        NOT NULL,
	doc_id      TEXT        NOT NULL,
	batch_id    TEXT        NOT NULL,
	status      TEXT        NOT NULL,
	code        TEXT        NOT NULL DEFAULT '',
	reason      TEXT        NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (index_name, doc_id, batch_id)
)`

const analyticsSnapshotsTable = `CREATE TABLE IF NOT EXISTS analytics_snapshots (
	id          BIGSERIAL   PRIMARY KEY,
	node_name   TEXT        NOT NULL,
	data        JSONB       NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

type Client struct {
	DB  *sql.DB
	cfg config.PostgresConfig
}

func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, cfg: cfg}, nil
}

// Migrate creates the tables used by the search core if they are missing.
func (c *Client) Migrate(ctx context.Context) error {
	for i, stmt := range Migrations {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("running migration %d: %w", i, err)
		}
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// InTx runs fn inside a transaction, rolling back when fn fails.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements the job, document, and schedule stores on one shared
// pool.
type Store struct {
	db dbConn
}

// New creates a Store backed by a pgx pool using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{db: pool}, nil
}

// NewWithDB constructs a Store from an existing connection (primarily for
// testing).
func NewWithDB(db dbConn) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}

// Migrate creates the tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range []string{createJobsTable, createDocumentsTable, createSchedulesTable} {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const createJobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	manufacturer TEXT NOT NULL,
	domain TEXT NOT NULL,
	product_lines TEXT[] NOT NULL DEFAULT '{}',
	folder_path TEXT NOT NULL DEFAULT '',
	weekly_recrawl BOOLEAN NOT NULL DEFAULT FALSE,
	status TEXT NOT NULL,
	found INTEGER NOT NULL DEFAULT 0,
	accepted INTEGER NOT NULL DEFAULT 0,
	uploaded INTEGER NOT NULL DEFAULT 0,
	submitted_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	finished_at TIMESTAMPTZ,
	error_text TEXT NOT NULL DEFAULT ''
)`

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	source_url TEXT NOT NULL,
	file_size BIGINT NOT NULL DEFAULT 0,
	accepted BOOLEAN NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	document_type TEXT NOT NULL DEFAULT '',
	uploaded BOOLEAN NOT NULL DEFAULT FALSE,
	remote_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`

const createSchedulesTable = `
CREATE TABLE IF NOT EXISTS schedules (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	manufacturer TEXT NOT NULL,
	domain TEXT NOT NULL,
	product_lines TEXT[] NOT NULL DEFAULT '{}',
	folder_path TEXT NOT NULL DEFAULT '',
	cron_expr TEXT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	last_run TIMESTAMPTZ,
	next_run TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
)`

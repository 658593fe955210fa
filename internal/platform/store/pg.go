package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/winniio/dashboard/internal/platform/record"
)

// The content column is JSON rather than JSONB so object key order, and
// with it the order of entity-ID keyed stores, survives a round trip.
const pgSchema = `
CREATE TABLE IF NOT EXISTS dashboard_source (
    name       TEXT PRIMARY KEY,
    content    JSON NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const pgUpsert = `
INSERT INTO dashboard_source (name, content, updated_at)
VALUES ($1, $2::json, NOW())
ON CONFLICT (name) DO UPDATE SET content = EXCLUDED.content, updated_at = NOW()`

type queryable interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PGStore keeps each source as one row of the dashboard_source table.
type PGStore struct {
	pool *pgxpool.Pool
	mu   sync.Mutex
}

// NewPGStore returns a store backed by pool. Call EnsureSchema before first use.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// EnsureSchema creates the dashboard_source table if it does not exist.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("create dashboard_source table: %w", err)
	}
	return nil
}

func (s *PGStore) Load(ctx context.Context, source string) (record.Collection, error) {
	if err := validateSource(source); err != nil {
		return nil, err
	}
	return pgLoad(ctx, s.pool, source, "")
}

func (s *PGStore) Save(ctx context.Context, source string, c record.Collection) error {
	if err := validateSource(source); err != nil {
		return &WriteError{Source: source, Err: err}
	}
	return pgSave(ctx, s.pool, source, c)
}

// Append runs load, append and save inside one transaction holding a row lock
// on the source.
func (s *PGStore) Append(ctx context.Context, source string, r record.Record) error {
	if err := validateSource(source); err != nil {
		return &WriteError{Source: source, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &WriteError{Source: source, Err: fmt.Errorf("begin: %w", err)}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, err := pgLoad(ctx, tx, source, " FOR UPDATE")
	if err != nil && !IsNotFound(err) {
		return err
	}
	if err := pgSave(ctx, tx, source, appendTo(existing, r)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &WriteError{Source: source, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func pgLoad(ctx context.Context, q queryable, source, lock string) (record.Collection, error) {
	var content string
	err := q.QueryRow(ctx, `SELECT content::text FROM dashboard_source WHERE name = $1`+lock, source).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Source: source}
	}
	if err != nil {
		return nil, fmt.Errorf("query source %q: %w", source, err)
	}
	return Decode(source, []byte(content))
}

func pgSave(ctx context.Context, q queryable, source string, c record.Collection) error {
	data, err := Encode(c)
	if err != nil {
		return &WriteError{Source: source, Err: err}
	}
	if _, err := q.Exec(ctx, pgUpsert, source, string(data)); err != nil {
		return &WriteError{Source: source, Err: err}
	}
	return nil
}

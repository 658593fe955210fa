package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/winniio/dashboard/internal/platform/record"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS dashboard_source (
    name       TEXT PRIMARY KEY,
    content    TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`

const sqliteUpsert = `
INSERT INTO dashboard_source (name, content, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`

type sqlQueryable interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLiteStore keeps each source as one row of a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the dashboard_source table if it does not exist.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create dashboard_source table: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Load(ctx context.Context, source string) (record.Collection, error) {
	if err := validateSource(source); err != nil {
		return nil, err
	}
	return sqliteLoad(ctx, s.db, source)
}

func (s *SQLiteStore) Save(ctx context.Context, source string, c record.Collection) error {
	if err := validateSource(source); err != nil {
		return &WriteError{Source: source, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return sqliteSave(ctx, s.db, source, c)
}

func (s *SQLiteStore) Append(ctx context.Context, source string, r record.Record) error {
	if err := validateSource(source); err != nil {
		return &WriteError{Source: source, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &WriteError{Source: source, Err: fmt.Errorf("begin: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := sqliteLoad(ctx, tx, source)
	if err != nil && !IsNotFound(err) {
		return err
	}
	if err := sqliteSave(ctx, tx, source, appendTo(existing, r)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &WriteError{Source: source, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func sqliteLoad(ctx context.Context, q sqlQueryable, source string) (record.Collection, error) {
	var content string
	err := q.QueryRowContext(ctx, `SELECT content FROM dashboard_source WHERE name = ?`, source).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Source: source}
	}
	if err != nil {
		return nil, fmt.Errorf("query source %q: %w", source, err)
	}
	return Decode(source, []byte(content))
}

func sqliteSave(ctx context.Context, q sqlQueryable, source string, c record.Collection) error {
	data, err := Encode(c)
	if err != nil {
		return &WriteError{Source: source, Err: err}
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := q.ExecContext(ctx, sqliteUpsert, source, string(data), now); err != nil {
		return &WriteError{Source: source, Err: err}
	}
	return nil
}

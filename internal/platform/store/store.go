// Package store loads and persists named record collections. A source is a
// logical name such as "agents.json"; each backend maps it to a file, a
// PostgreSQL row, or a SQLite row holding the JSON document.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/winniio/dashboard/internal/platform/record"
)

// Supported backend drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store is the contract every backend satisfies.
type Store interface {
	// Load returns the collection held by source, in source order.
	Load(ctx context.Context, source string) (record.Collection, error)
	// Save fully overwrites source with c.
	Save(ctx context.Context, source string, c record.Collection) error
	// Append adds r to the end of source, creating it when missing.
	Append(ctx context.Context, source string, r record.Record) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// LoadOptional is Load for feeds that may legitimately be absent: a missing
// source yields an empty collection and no error.
func LoadOptional(ctx context.Context, s Store, source string) (record.Collection, error) {
	c, err := s.Load(ctx, source)
	if IsNotFound(err) {
		return record.Collection{}, nil
	}
	return c, err
}

func validateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("empty source name")
	}
	return nil
}

// appendTo returns existing with r added, tolerating a nil existing slice.
func appendTo(existing record.Collection, r record.Record) record.Collection {
	out := make(record.Collection, 0, len(existing)+1)
	out = append(out, existing...)
	return append(out, r)
}

package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/winniio/dashboard/internal/platform/record"
)

// FileStore keeps each source as a JSON file under a root directory.
// Writes go to a temp file that is renamed into place. All writers in the
// process share one mutex; other processes are not coordinated with.
type FileStore struct {
	root string
	mu   sync.Mutex
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "./shared_data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{root: dir}, nil
}

// Root returns the data directory.
func (s *FileStore) Root() string { return s.root }

// pathFor maps a source name to a file path, refusing names that escape root.
func (s *FileStore) pathFor(source string) (string, error) {
	if err := validateSource(source); err != nil {
		return "", err
	}
	if filepath.IsAbs(source) || strings.HasPrefix(source, "/") {
		return "", fmt.Errorf("invalid absolute source %q", source)
	}
	clean := filepath.Clean(filepath.FromSlash(source))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid source %q escapes data dir", source)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FileStore) Load(ctx context.Context, source string) (record.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.pathFor(source)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Source: source}
		}
		return nil, fmt.Errorf("read source %q: %w", source, err)
	}
	return Decode(source, data)
}

func (s *FileStore) Save(ctx context.Context, source string, c record.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(source, c)
}

func (s *FileStore) Append(ctx context.Context, source string, r record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := LoadOptional(ctx, s, source)
	if err != nil {
		return err
	}
	return s.save(source, appendTo(existing, r))
}

// Ping checks that the data directory is still a readable directory.
func (s *FileStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", s.root)
	}
	return nil
}

func (s *FileStore) save(source string, c record.Collection) error {
	path, err := s.pathFor(source)
	if err != nil {
		return &WriteError{Source: source, Err: err}
	}
	data, err := Encode(c)
	if err != nil {
		return &WriteError{Source: source, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &WriteError{Source: source, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return &WriteError{Source: source, Err: err}
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return &WriteError{Source: source, Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &WriteError{Source: source, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return &WriteError{Source: source, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Source: source, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &WriteError{Source: source, Err: err}
	}
	return nil
}

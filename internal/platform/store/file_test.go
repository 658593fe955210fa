package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/winniio/dashboard/internal/platform/record"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func sampleCollection() record.Collection {
	return record.Collection{
		{"patient_id": "P1", "event": "Admitted", "location": "ICU", "timestamp": "2025-01-01T10:00:00Z", "status": "Active", "score": json.Number("7")},
		{"patient_id": "P2", "event": "Discharged", "location": "Ward A", "timestamp": "2025-01-01T11:00:00Z", "status": "Completed", "flag": true},
		{"patient_id": "P3", "event": "Waiting", "location": "Reception", "timestamp": "2025-01-01T12:00:00Z", "status": "Idle", "note": nil},
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()
	want := sampleCollection()

	if err := s.Save(ctx, "patient.json", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "patient.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch\n got: %#v\nwant: %#v", got, want)
	}
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, "agents.json", sampleCollection())

	if err := s.Save(ctx, "agents.json", record.Collection{{"agent_id": "A1"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := s.Load(ctx, "agents.json")
	if len(got) != 1 || got[0]["agent_id"] != "A1" {
		t.Fatalf("expected overwrite, got %v", got)
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	s := newTestFileStore(t)
	_, err := s.Load(context.Background(), "nope.json")
	if !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestLoadOptional_MissingIsEmpty(t *testing.T) {
	s := newTestFileStore(t)
	c, err := LoadOptional(context.Background(), s, "event_log.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil || len(c) != 0 {
		t.Fatalf("expected empty collection, got %#v", c)
	}
}

func TestFileStore_LoadMalformed(t *testing.T) {
	s := newTestFileStore(t)
	if err := os.WriteFile(filepath.Join(s.Root(), "agents.json"), []byte(`[{"agent_id":`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.Load(context.Background(), "agents.json")
	if !IsFormat(err) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestFileStore_LoadKeyedStore(t *testing.T) {
	s := newTestFileStore(t)
	data := `{"A7":{"name":"Nia","role":"Nurse"},"A2":{"name":"Omar","role":"Doctor"}}`
	if err := os.WriteFile(filepath.Join(s.Root(), "agents.json"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := s.Load(context.Background(), "agents.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c) != 2 || c[0]["name"] != "Nia" || c[1]["name"] != "Omar" {
		t.Fatalf("unexpected collection: %v", c)
	}
}

func TestFileStore_AppendCreatesSource(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()
	if err := s.Append(ctx, "event_log.json", record.Record{"agent_id": "A1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, "event_log.json", record.Record{"agent_id": "A2"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	c, err := s.Load(ctx, "event_log.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c) != 2 || c[0]["agent_id"] != "A1" || c[1]["agent_id"] != "A2" {
		t.Fatalf("unexpected log: %v", c)
	}
}

func TestFileStore_AppendNormalizesBareObject(t *testing.T) {
	s := newTestFileStore(t)
	path := filepath.Join(s.Root(), "event_log.json")
	if err := os.WriteFile(path, []byte(`{"agent_id":"A0","description":"first"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(context.Background(), "event_log.json", record.Record{"agent_id": "A1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	raw, _ := os.ReadFile(path)
	var got []map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("stored content is not an array: %s", raw)
	}
	if len(got) != 2 || got[0]["agent_id"] != "A0" || got[1]["agent_id"] != "A1" {
		t.Fatalf("unexpected stored content: %s", raw)
	}
}

func TestFileStore_AppendRefusesMalformed(t *testing.T) {
	s := newTestFileStore(t)
	path := filepath.Join(s.Root(), "event_log.json")
	if err := os.WriteFile(path, []byte(`[{`), 0o644); err != nil {
		t.Fatal(err)
	}
	err := s.Append(context.Background(), "event_log.json", record.Record{"agent_id": "A1"})
	if !IsFormat(err) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != `[{` {
		t.Errorf("malformed source was overwritten: %s", raw)
	}
}

func TestFileStore_SaveWriteError(t *testing.T) {
	s := newTestFileStore(t)
	if err := os.Mkdir(filepath.Join(s.Root(), "agents.json"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Root(), "agents.json", "keep"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := s.Save(context.Background(), "agents.json", sampleCollection())
	if !IsWrite(err) {
		t.Fatalf("expected WriteError, got %v", err)
	}
}

func TestFileStore_RejectsEscapingSource(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()
	for _, src := range []string{"../etc/passwd", "/abs.json", "", "  "} {
		if _, err := s.Load(ctx, src); err == nil || IsNotFound(err) {
			t.Errorf("Load(%q) expected validation error, got %v", src, err)
		}
		if err := s.Save(ctx, src, nil); !IsWrite(err) {
			t.Errorf("Save(%q) expected WriteError, got %v", src, err)
		}
	}
}

func TestFileStore_Ping(t *testing.T) {
	s := newTestFileStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	_ = os.RemoveAll(s.Root())
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected Ping to fail after data dir removal")
	}
}

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/winniio/dashboard/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:                "0",
		Env:                 "test",
		LogLevel:            "error",
		StoreDriver:         "file",
		DataDir:             t.TempDir(),
		SQLitePath:          filepath.Join(t.TempDir(), "dashboard.db"),
		AgentsSource:        "agents.json",
		PatientsSource:      "patient.json",
		EventLogSource:      "event_log.json",
		RefreshSeconds:      2,
		MutationProbability: 0,
		RateLimitRPS:        0,
		BodyLimit:           "64K",
	}
}

func writeAgents(t *testing.T, dir string) {
	t.Helper()
	data := `[
  {"agent_id": "A1", "name": "Ana", "current_room": "ER-1", "role": "Nurse", "status": "On Duty"},
  {"agent_id": "A2", "name": "Ben", "current_room": "ICU-2", "role": "Doctor", "status": "Off Duty"}
]`
	if err := os.WriteFile(filepath.Join(dir, "agents.json"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNewLogger_Level(t *testing.T) {
	cfg := &config.Config{Env: "production", LogLevel: "warn"}
	var buf bytes.Buffer
	logger := newLogger(cfg, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"message":"shown"`) {
		t.Errorf("log output = %s", out)
	}
}

func TestOpenStore_Drivers(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.StoreDriver = driver
			b, err := openStore(ctx, cfg, zerolog.Nop())
			if err != nil {
				t.Fatalf("openStore: %v", err)
			}
			defer b.Close()
			if err := b.store.Ping(ctx); err != nil {
				t.Errorf("Ping: %v", err)
			}
		})
	}
}

func TestOpenStore_PostgresUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = "postgres"
	cfg.DatabaseURL = "not a url"
	cfg.DBMaxConns, cfg.DBMinConns = 1, 0
	if _, err := openStore(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected error for invalid DATABASE_URL")
	}
}

func TestRunCheck(t *testing.T) {
	cfg := testConfig(t)
	writeAgents(t, cfg.DataDir)
	b, err := openStore(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runCheck(context.Background(), &out, newPipeline(cfg, b.store, zerolog.Nop())); err != nil {
		t.Fatalf("runCheck: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"cycle 1 published at",
		"agents: 2 records, 0 mutated, current_room options [ER-1 ICU-2]",
		"patients: 0 records",
		"warning: Source 'patient.json' not found; showing no patients.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunCheck_CorruptSourceFails(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.DataDir, "agents.json"), []byte(`[{"agent_id":`), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := openStore(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := runCheck(context.Background(), &out, newPipeline(cfg, b.store, zerolog.Nop())); err == nil {
		t.Fatal("expected corrupt agents source to fail the check")
	}
}

func TestServer_Routes(t *testing.T) {
	cfg := testConfig(t)
	writeAgents(t, cfg.DataDir)
	b, err := openStore(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	p := newPipeline(cfg, b.store, zerolog.Nop())
	e := newServer(cfg, zerolog.Nop(), p, b)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	if rec := get("/health"); rec.Code != http.StatusOK {
		t.Errorf("/health = %d", rec.Code)
	}
	if rec := get("/health/store"); rec.Code != http.StatusOK {
		t.Errorf("/health/store = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := get("/api/v1/dashboard"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("dashboard before first cycle = %d, want 503", rec.Code)
	}

	if err := p.scheduler.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	rec := get("/api/v1/panels/agents?room=ICU-2")
	if rec.Code != http.StatusOK {
		t.Fatalf("panel = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"agent_id":"A2"`) || strings.Contains(rec.Body.String(), `"agent_id":"A1"`) {
		t.Errorf("room filter not applied: %s", rec.Body.String())
	}
	if rec := get("/api/v1/events"); rec.Code != http.StatusOK {
		t.Errorf("/api/v1/events = %d", rec.Code)
	}
	if rec := get("/metrics"); !strings.Contains(rec.Body.String(), `dashboard_cycles_total{result="published"} 1`) {
		t.Errorf("metrics missing cycle counter:\n%s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"serve", "check", "migrate", "seed"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}

func TestSeedCmd(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("STORE_DRIVER", "file")
	t.Setenv("DATA_DIR", dir)

	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"seed", "--agents", "3", "--patients", "4", "--seed", "9",
		"--env-file", filepath.Join(dir, "missing.env")})
	if err := root.Execute(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out.String(), "seeded 3 agents, 4 patients") {
		t.Errorf("output = %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "agents.json")); err != nil {
		t.Errorf("agents.json not written: %v", err)
	}
}

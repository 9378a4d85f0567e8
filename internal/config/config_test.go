package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Solver.Pool != 300 || cfg.Solver.TimeLimitSec != 300 || cfg.Solver.Days != 6 {
		t.Fatalf("solver defaults: %+v", cfg.Solver)
	}
	if cfg.Solver.Backend != "greedy" {
		t.Fatalf("default backend: %s", cfg.Solver.Backend)
	}
	if got := cfg.Solver.TimeLimit(); got != 300*time.Second {
		t.Fatalf("time limit: %v", got)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
httpAddr: ":9999"
solver:
  backend: remote
  url: http://mip:9090/solve
  pool: 50
rateLimit:
  rps: 10
  burst: 20
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SOLVER_BACKEND", "stub")
	t.Setenv("TRUCK_POOL", "75")
	t.Setenv("DATABASE_URL", "postgres://localhost/plans")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("file value lost: %s", cfg.HTTPAddr)
	}
	// Env wins over the file.
	if cfg.Solver.Backend != "stub" || cfg.Solver.Pool != 75 {
		t.Fatalf("env override: %+v", cfg.Solver)
	}
	if cfg.Solver.URL != "http://mip:9090/solve" {
		t.Fatalf("solver url: %s", cfg.Solver.URL)
	}
	if cfg.DatabaseURL != "postgres://localhost/plans" {
		t.Fatalf("database url: %s", cfg.DatabaseURL)
	}
	// Untouched sections keep defaults.
	if cfg.Webhooks.MaxAttempts != 5 {
		t.Fatalf("webhook defaults: %+v", cfg.Webhooks)
	}
	if cfg.RateLimit.RPS != 10 || cfg.RateLimit.Burst != 20 {
		t.Fatalf("rate limit: %+v", cfg.RateLimit)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("missing file should error")
	}
	// Empty path is the no-file case.
	if _, err := Load(""); err != nil {
		t.Fatalf("empty path: %v", err)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("JWT_SECRET", "correct-horse-battery-staple")
}

func TestLoadEnvConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AssetsPath != "assets" {
		t.Fatalf("expected default assets path, got %q", cfg.AssetsPath)
	}
	if cfg.ProbeWorkers != 2 {
		t.Fatalf("expected 2 probe workers, got %d", cfg.ProbeWorkers)
	}
	if cfg.ProbeRetries != 3 {
		t.Fatalf("expected 3 retries, got %d", cfg.ProbeRetries)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("expected 10s shutdown timeout, got %s", cfg.ShutdownTimeout)
	}
	if !strings.HasSuffix(cfg.DatabasePath(), "/stamon.db") {
		t.Fatalf("unexpected db path %q", cfg.DatabasePath())
	}
}

func TestLoadEnvConfigMissingRequired(t *testing.T) {
	os.Unsetenv("DATA_PATH")
	os.Unsetenv("JWT_SECRET")
	t.Setenv("DATA_PATH", "")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for missing DATA_PATH and JWT_SECRET")
	}
	if !strings.Contains(err.Error(), "DATA_PATH") || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("error must name both missing vars, got: %v", err)
	}
}

func TestLoadEnvConfigInvalidValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STAMON_PROBE_WORKERS", "zero")
	t.Setenv("STAMON_QUEUE_LEASE", "-5s")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "STAMON_PROBE_WORKERS") {
		t.Fatalf("expected STAMON_PROBE_WORKERS in error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "STAMON_QUEUE_LEASE") {
		t.Fatalf("expected STAMON_QUEUE_LEASE in error, got: %v", err)
	}
}

func TestApplyFileOverrides(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	yml := "probe_workers: 4\nprobe_grace: 500ms\nqueue_backlog_max: 50\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ApplyFile(cfg, dir); err != nil {
		t.Fatal(err)
	}
	if cfg.ProbeWorkers != 4 {
		t.Fatalf("expected 4 probe workers, got %d", cfg.ProbeWorkers)
	}
	if cfg.ProbeGrace != 500*time.Millisecond {
		t.Fatalf("expected 500ms grace, got %s", cfg.ProbeGrace)
	}
	if cfg.QueueBacklogMax != 50 {
		t.Fatalf("expected backlog max 50, got %d", cfg.QueueBacklogMax)
	}
	// Untouched fields keep env defaults.
	if cfg.ProbeRetries != 3 {
		t.Fatalf("expected retries untouched, got %d", cfg.ProbeRetries)
	}
}

func TestApplyFileMissingIsNoop(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatal(err)
	}
	if err := ApplyFile(cfg, t.TempDir()); err != nil {
		t.Fatal(err)
	}
}

func TestIsWeakSecret(t *testing.T) {
	if !IsWeakSecret("") {
		t.Fatal("empty secret must be weak")
	}
	if !IsWeakSecret("abc123") {
		t.Fatal("trivial secret must be weak")
	}
	if IsWeakSecret("tr0ub4dor-horse-staple-9X!") {
		t.Fatal("long random secret must not be weak")
	}
}

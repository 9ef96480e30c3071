package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "env: prod\nhttp:\n  address: \":9090\"\n  shutdown_timeout: 5s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := MustLoadPath(path)
	if cfg.Env != "prod" {
		t.Errorf("env = %q, want prod", cfg.Env)
	}
	if cfg.HTTP.Address != ":9090" {
		t.Errorf("address = %q, want :9090", cfg.HTTP.Address)
	}
	if cfg.HTTP.ShutdownTimeout != 5*time.Second {
		t.Errorf("shutdown timeout = %v, want 5s", cfg.HTTP.ShutdownTimeout)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg := MustLoadPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.Env != "local" {
		t.Errorf("env = %q, want local", cfg.Env)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Errorf("address = %q, want :8080", cfg.HTTP.Address)
	}
	if cfg.HTTP.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want 10s", cfg.HTTP.ShutdownTimeout)
	}
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("PEERLINK_ADDRESS", ":7070")
	cfg := MustLoadPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.HTTP.Address != ":7070" {
		t.Errorf("address = %q, want :7070", cfg.HTTP.Address)
	}
}

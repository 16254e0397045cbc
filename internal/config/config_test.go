package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesEnvFileThenProcessEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "kumirc.env")
	if err := os.WriteFile(envFile, []byte("KUMIRC_VERBOSITY=3\nKUMIRC_CACHE_DSN=file::memory:\n"), 0o644); err != nil {
		t.Fatalf("writing env file: %v", err)
	}

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Verbosity != 3 {
		t.Fatalf("Verbosity = %d, want 3 from the env file", cfg.Verbosity)
	}
	if cfg.CacheDSN != "file::memory:" {
		t.Fatalf("CacheDSN = %q", cfg.CacheDSN)
	}

	os.Setenv("KUMIRC_VERBOSITY", "5")
	defer os.Unsetenv("KUMIRC_VERBOSITY")

	cfg, err = Load(envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Verbosity != 5 {
		t.Fatalf("Verbosity = %d, want process env to override the .env file's 3", cfg.Verbosity)
	}
}

func TestLoadToleratesMissingEnvFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	if err != nil {
		t.Fatalf("Load with a missing optional file should not error: %v", err)
	}
	if cfg.Verbosity != Default().Verbosity {
		t.Fatalf("expected defaults when no env file is present")
	}
}

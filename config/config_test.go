package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.DataDir == "" {
		t.Error("data dir empty")
	}
	if !cfg.PersistVectors {
		t.Error("persistence off by default")
	}
	if time.Duration(cfg.PolicyCacheTTL) != 30*time.Second {
		t.Errorf("policy cache ttl = %v", cfg.PolicyCacheTTL)
	}
	if time.Duration(cfg.SweepInterval) != time.Hour {
		t.Errorf("sweep interval = %v", cfg.SweepInterval)
	}
	if cfg.Embedding.Provider != "mock" {
		t.Errorf("provider = %q", cfg.Embedding.Provider)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedding.Provider != "mock" {
		t.Errorf("provider = %q", cfg.Embedding.Provider)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
data_dir: /var/lib/memguild
persist_vectors: false
sweep_interval: 15m
embedding:
  provider: openai
  model: text-embedding-3-small
  dimensions: 1536
  api_key_env: MY_KEY
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/var/lib/memguild" {
		t.Errorf("data dir = %q", cfg.DataDir)
	}
	if cfg.PersistVectors {
		t.Error("persist_vectors not overridden")
	}
	if time.Duration(cfg.SweepInterval) != 15*time.Minute {
		t.Errorf("sweep interval = %v", cfg.SweepInterval)
	}
	// Unset fields keep their defaults.
	if time.Duration(cfg.PolicyCacheTTL) != 30*time.Second {
		t.Errorf("policy cache ttl = %v", cfg.PolicyCacheTTL)
	}

	opts := cfg.EmbedderOptions()
	if opts.Provider != "openai" || opts.Model != "text-embedding-3-small" ||
		opts.Dimensions != 1536 || opts.APIKeyEnv != "MY_KEY" {
		t.Errorf("embedder options = %+v", opts)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

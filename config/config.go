// Package config loads the runtime configuration for the memory
// subsystem binary.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/memguild/memguild/embedder"
)

// Config is the YAML runtime configuration.
type Config struct {
	// DataDir holds the policy database and, when long-term
	// persistence is enabled, the vector files.
	DataDir string `yaml:"data_dir"`

	// PersistVectors enables on-disk long-term storage under DataDir.
	PersistVectors bool `yaml:"persist_vectors"`

	// ShortTermMaxBytes bounds the short-term cache size.
	ShortTermMaxBytes int64 `yaml:"short_term_max_bytes"`

	PolicyCacheTTL Duration `yaml:"policy_cache_ttl"`
	SweepInterval  Duration `yaml:"sweep_interval"`

	Embedding Embedding `yaml:"embedding"`
}

// Duration is a time.Duration that decodes YAML scalars in
// time.ParseDuration syntax ("30s", "15m", "1h").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Embedding configures the external embedding provider. The API key is
// read from the environment, never from the file.
type Embedding struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	APIKeyEnv  string `yaml:"api_key_env"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir:        filepath.Join(home, ".memguild"),
		PersistVectors: true,
		PolicyCacheTTL: Duration(30 * time.Second),
		SweepInterval:  Duration(time.Hour),
		Embedding: Embedding{
			Provider:  "mock",
			APIKeyEnv: "OPENAI_API_KEY",
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// EmbedderOptions maps the embedding section onto provider options.
func (c *Config) EmbedderOptions() embedder.Options {
	return embedder.Options{
		Provider:   c.Embedding.Provider,
		BaseURL:    c.Embedding.BaseURL,
		Model:      c.Embedding.Model,
		Dimensions: c.Embedding.Dimensions,
		APIKeyEnv:  c.Embedding.APIKeyEnv,
	}
}

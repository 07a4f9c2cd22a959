// Package cli implements the memguild operator commands.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/memguild/memguild/config"
	"github.com/memguild/memguild/coordinator"
	"github.com/memguild/memguild/embedder"
	"github.com/memguild/memguild/ingest"
	"github.com/memguild/memguild/longterm"
	"github.com/memguild/memguild/policy"
	"github.com/memguild/memguild/shortterm"
)

var (
	configPath string
	tenantFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memguild",
	Short: "Multi-tenant memory for agent workloads",
	Long:  "Short-term recall with expiry, long-term recall with similarity search,\nand per-tenant policy. Text in, JSON out.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: built-in defaults, data in ~/.memguild)")
	RootCmd.PersistentFlags().StringVarP(&tenantFlag, "tenant", "t", "default", "Tenant id scoping the operation")
}

// Execute runs the CLI.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// stack is the fully wired subsystem a command operates on.
type stack struct {
	cfg      *config.Config
	policies policy.Store
	short    shortterm.Store
	long     longterm.Store
	coord    *coordinator.Coordinator
	scribe   *ingest.Scribe
	embedder embedder.Embedder
}

// openStack wires policy store, backends (with one-time fallback
// selection), coordinator and scribe from the config file.
func openStack() (*stack, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.Default()

	sqlStore, err := policy.NewSQLiteStore(filepath.Join(cfg.DataDir, "policy.db"))
	if err != nil {
		return nil, fmt.Errorf("open policy store: %w", err)
	}
	policies, err := policy.NewCachedStore(sqlStore, time.Duration(cfg.PolicyCacheTTL))
	if err != nil {
		sqlStore.Close()
		return nil, err
	}

	st, stErr := shortterm.NewRistretto(cfg.ShortTermMaxBytes)
	short := shortterm.Select(st, stErr, logger)

	vectorDir := ""
	if cfg.PersistVectors {
		vectorDir = filepath.Join(cfg.DataDir, "longterm")
	}
	lt, ltErr := longterm.NewChromem(vectorDir, cfg.Embedding.Dimensions, logger)
	long := longterm.Select(lt, ltErr, logger)

	emb, err := embedder.New(cfg.EmbedderOptions())
	if err != nil {
		policies.Close()
		return nil, err
	}

	coord := coordinator.New(policies, short, long, coordinator.WithLogger(logger))
	return &stack{
		cfg:      cfg,
		policies: policies,
		short:    short,
		long:     long,
		coord:    coord,
		scribe:   ingest.New(coord, long, emb, logger),
		embedder: emb,
	}, nil
}

func (s *stack) Close() {
	s.short.Close()
	s.long.Close()
	s.policies.Close()
}

// ensureTenant creates a default policy row on first contact so ad-hoc
// CLI use does not require a prior `policy set`.
func (s *stack) ensureTenant(cmd *cobra.Command, tenantID string) error {
	ctx := cmd.Context()
	if _, err := s.policies.Get(ctx, tenantID); err == nil {
		return nil
	}
	return s.policies.Put(ctx, policy.Default(tenantID))
}

func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

// parseMeta turns repeated key=value flags into a metadata map.
func parseMeta(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q (use key=value)", pair)
		}
		meta[k] = v
	}
	return meta, nil
}

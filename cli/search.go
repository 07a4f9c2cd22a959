package cli

import (
	"github.com/spf13/cobra"

	"github.com/memguild/memguild/core"
	"github.com/memguild/memguild/ingest"
)

var (
	searchLimit     int
	searchThreshold float64
	searchFilter    []string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search long-term memory by semantic similarity",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		filter, err := parseMeta(searchFilter)
		if err != nil {
			exitErr("filter", err)
		}

		s, err := openStack()
		if err != nil {
			exitErr("open", err)
		}
		defer s.Close()
		if err := s.ensureTenant(cmd, tenantFlag); err != nil {
			exitErr("ensure tenant", err)
		}

		// Queries embed the same way ingested content does.
		vector, err := s.embedder.Embed(cmd.Context(), ingest.Normalize(args[0]))
		if err != nil {
			exitErr("embed query", err)
		}

		resp, err := s.coord.Handle(cmd.Context(), &core.MemoryRequest{
			Operation:  core.OpSearch,
			MemoryType: core.LongTerm,
			TenantID:   tenantFlag,
			Embedding:  vector,
			Limit:      searchLimit,
			Threshold:  searchThreshold,
			Filter:     filter,
		})
		if err != nil {
			exitErr("search", err)
		}
		printJSON(resp)
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum results")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "Minimum similarity [0.0-1.0]")
	searchCmd.Flags().StringArrayVar(&searchFilter, "filter", nil, "Metadata filter key=value (repeatable)")
	RootCmd.AddCommand(searchCmd)
}

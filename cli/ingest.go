package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	ingestSource string
	ingestMeta   []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [content]",
	Short: "Ingest content into long-term memory (deduplicated, embedded)",
	Long:  "Ingests content for the tenant. Reads from stdin when no argument is given.\nIdentical normalized content is stored once; re-ingesting returns the existing id.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		content := ""
		if len(args) == 1 {
			content = args[0]
		} else {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}

		meta, err := parseMeta(ingestMeta)
		if err != nil {
			exitErr("metadata", err)
		}

		s, err := openStack()
		if err != nil {
			exitErr("open", err)
		}
		defer s.Close()
		if err := s.ensureTenant(cmd, tenantFlag); err != nil {
			exitErr("ensure tenant", err)
		}

		resp, err := s.scribe.Ingest(cmd.Context(), content, tenantFlag, ingestSource, meta)
		if err != nil {
			exitErr("ingest", err)
		}
		printJSON(resp)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "cli", "Origin recorded in record metadata")
	ingestCmd.Flags().StringArrayVarP(&ingestMeta, "meta", "m", nil, "Metadata tag key=value (repeatable)")
	RootCmd.AddCommand(ingestCmd)
}

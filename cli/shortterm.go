package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/memguild/memguild/core"
)

var rememberTTL time.Duration

var rememberCmd = &cobra.Command{
	Use:   "remember <key> <value>",
	Short: "Store a short-term value with expiry",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openStack()
		if err != nil {
			exitErr("open", err)
		}
		defer s.Close()
		if err := s.ensureTenant(cmd, tenantFlag); err != nil {
			exitErr("ensure tenant", err)
		}

		resp, err := s.coord.Handle(cmd.Context(), &core.MemoryRequest{
			Operation:  core.OpStore,
			MemoryType: core.ShortTerm,
			TenantID:   tenantFlag,
			Key:        args[0],
			Content:    args[1],
			TTL:        rememberTTL,
		})
		if err != nil {
			exitErr("remember", err)
		}
		printJSON(resp)
	},
}

var recallCmd = &cobra.Command{
	Use:   "recall <key>",
	Short: "Retrieve a short-term value if it has not expired",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openStack()
		if err != nil {
			exitErr("open", err)
		}
		defer s.Close()
		if err := s.ensureTenant(cmd, tenantFlag); err != nil {
			exitErr("ensure tenant", err)
		}

		resp, err := s.coord.Handle(cmd.Context(), &core.MemoryRequest{
			Operation:  core.OpRetrieve,
			MemoryType: core.ShortTerm,
			TenantID:   tenantFlag,
			Key:        args[0],
		})
		if err != nil {
			exitErr("recall", err)
		}
		printJSON(resp)
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <key>",
	Short: "Remove a short-term value before it expires",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openStack()
		if err != nil {
			exitErr("open", err)
		}
		defer s.Close()

		if err := s.short.Delete(cmd.Context(), tenantFlag, args[0]); err != nil {
			exitErr("forget", err)
		}
	},
}

func init() {
	rememberCmd.Flags().DurationVar(&rememberTTL, "ttl", 0, "Expiry override (default: tenant policy default)")
	RootCmd.AddCommand(rememberCmd)
	RootCmd.AddCommand(recallCmd)
	RootCmd.AddCommand(forgetCmd)
}

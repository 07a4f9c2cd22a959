package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/memguild/memguild/core"
	"github.com/memguild/memguild/policy"
)

var (
	polTTL       time.Duration
	polLongTerm  bool
	polMaxSize   int
	polRetention int
	polRules     []string
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage per-tenant memory policies",
}

var policyGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the tenant's policy",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openStack()
		if err != nil {
			exitErr("open", err)
		}
		defer s.Close()

		p, err := s.policies.Get(cmd.Context(), tenantFlag)
		if err != nil {
			exitErr("get policy", err)
		}
		printJSON(p)
	},
}

var policySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or update the tenant's policy",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openStack()
		if err != nil {
			exitErr("open", err)
		}
		defer s.Close()

		p := &core.MemoryPolicy{
			TenantID:        tenantFlag,
			ShortTermTTL:    polTTL,
			LongTermEnabled: polLongTerm,
			MaxMemorySize:   polMaxSize,
			RetentionDays:   polRetention,
			AccessRules:     polRules,
		}
		if err := s.policies.Put(cmd.Context(), p); err != nil {
			exitErr("set policy", err)
		}
		printJSON(p)
	},
}

var policyRmCmd = &cobra.Command{
	Use:   "rm",
	Short: "Delete the tenant's policy",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openStack()
		if err != nil {
			exitErr("open", err)
		}
		defer s.Close()

		if err := s.policies.Delete(cmd.Context(), tenantFlag); err != nil {
			exitErr("delete policy", err)
		}
	},
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tenant policies",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openStack()
		if err != nil {
			exitErr("open", err)
		}
		defer s.Close()

		policies, err := s.policies.List(cmd.Context())
		if err != nil {
			exitErr("list policies", err)
		}
		printJSON(policies)
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one retention sweep over all tenants",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openStack()
		if err != nil {
			exitErr("open", err)
		}
		defer s.Close()

		sweeper := policy.NewSweeper(s.policies, s.long, time.Duration(s.cfg.SweepInterval), nil)
		sweeper.SweepOnce(cmd.Context())
	},
}

func init() {
	policySetCmd.Flags().DurationVar(&polTTL, "short-term-ttl", 5*time.Minute, "Default short-term TTL")
	policySetCmd.Flags().BoolVar(&polLongTerm, "long-term", true, "Allow long-term storage")
	policySetCmd.Flags().IntVar(&polMaxSize, "max-size", 0, "Max long-term records (0 = unlimited)")
	policySetCmd.Flags().IntVar(&polRetention, "retention-days", 90, "Purge long-term records older than this")
	policySetCmd.Flags().StringArrayVar(&polRules, "allow", nil, "Permitted operation: store, retrieve or search (repeatable; none = all)")

	policyCmd.AddCommand(policyGetCmd, policySetCmd, policyRmCmd, policyListCmd)
	RootCmd.AddCommand(policyCmd)
	RootCmd.AddCommand(sweepCmd)
}

package cli

import (
	"github.com/spf13/cobra"
)

var retainOff bool

var retainCmd = &cobra.Command{
	Use:   "retain <memory-id>",
	Short: "Exempt a long-term record from the retention sweep",
	Long:  "Marks a long-term record as retained so the retention sweep skips it.\nUse --off to clear the flag and let retention apply again.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openStack()
		if err != nil {
			exitErr("open", err)
		}
		defer s.Close()

		if err := s.long.SetRetained(cmd.Context(), tenantFlag, args[0], !retainOff); err != nil {
			exitErr("retain", err)
		}
		rec, err := s.long.Get(cmd.Context(), tenantFlag, args[0])
		if err != nil {
			exitErr("get record", err)
		}
		printJSON(rec)
	},
}

func init() {
	retainCmd.Flags().BoolVar(&retainOff, "off", false, "Clear the retained flag")
	RootCmd.AddCommand(retainCmd)
}

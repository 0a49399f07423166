package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "verikit",
		Short:         "Verikit orchestrates hardware verification runs",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	persistent := cmd.PersistentFlags()
	persistent.IntP("parallel", "j", 0, "worker count for case execution")
	persistent.String("format", "", "output format (pretty|json)")
	persistent.BoolP("verbose", "v", false, "enable debug logging")
	persistent.String("workspace-dir", "", "workspace root directory")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newCleanCmd())

	return cmd
}

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/verikit/verikit/internal/config"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show scheduling capacity and live sessions",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	snap := a.admit.Snapshot()
	switch strings.ToLower(cfg.Format) {
	case config.FormatJSON:
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case config.FormatPretty:
		fmt.Fprintf(cmd.OutOrStdout(), "capacity: %d\nin use: %d\navailable: %d\n",
			snap.Capacity, snap.InUse, snap.Available)
		if len(snap.Tasks) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "tasks: %s\n", strings.Join(snap.Tasks, ", "))
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/verikit/verikit/internal/config"
	"github.com/verikit/verikit/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past run records",
		RunE:  runHistory,
	}
	cmd.Flags().String("suite", "", "only records of this suite")
	cmd.Flags().IntP("limit", "n", 10, "maximum records to show")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	suiteName, err := cmd.Flags().GetString("suite")
	if err != nil {
		return fmt.Errorf("parse --suite: %w", err)
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("parse --limit: %w", err)
	}

	var records []history.Record
	if suiteName != "" {
		records, err = a.history.BySuite(suiteName, limit)
	} else {
		records, err = a.history.Recent(limit)
	}
	if err != nil {
		return err
	}

	switch strings.ToLower(cfg.Format) {
	case config.FormatJSON:
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case config.FormatPretty:
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
			return nil
		}
		for _, rec := range records {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %-20s  %d passed, %d failed, %d errors\n",
				rec.RunID, rec.Timestamp.Format(time.RFC3339), rec.Suite,
				rec.Passed, rec.Failed, rec.Errors)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean (repo|build) <name>",
		Short: "Remove a repo's workspaces or a build's artifacts and cache entries",
		Args:  cobra.ExactArgs(2),
		RunE:  runClean,
	}
	cmd.Flags().String("ref", "", "only the build cache entry at this ref")
	return cmd
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	kind, name := args[0], args[1]
	switch kind {
	case "repo":
		n, err := a.checkout.CleanWorkspaces(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d workspaces of %s\n", n, name)
		return nil
	case "build":
		ref, err := cmd.Flags().GetString("ref")
		if err != nil {
			return fmt.Errorf("parse --ref: %w", err)
		}
		if err := a.buildSvc.Clean(cmd.Context(), name, ref); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleaned build %s\n", name)
		return nil
	default:
		return fmt.Errorf("unknown clean target %q, want repo or build", kind)
	}
}

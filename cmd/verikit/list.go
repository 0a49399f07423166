package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "list [suites|repos|builds|envs|stimuli|workspaces]",
		Short:     "List registered entities",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"suites", "repos", "builds", "envs", "stimuli", "workspaces"},
		RunE:      runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	kind := "suites"
	if len(args) > 0 {
		kind = args[0]
	}

	var names []string
	switch kind {
	case "suites":
		names, err = a.suites.Discover()
		if err != nil {
			return err
		}
	case "repos":
		names = a.repos.Names()
	case "builds":
		names = a.builds.Names()
	case "envs":
		for _, name := range a.buildEnvs.Names() {
			names = append(names, name+" (build)")
		}
		for _, name := range a.exeEnvs.Names() {
			names = append(names, name+" (exe)")
		}
	case "stimuli":
		names = a.stimuli.Names()
	case "workspaces":
		workspaces, err := a.checkout.ListWorkspaces(cmd.Context())
		if err != nil {
			return err
		}
		for _, ws := range workspaces {
			line := fmt.Sprintf("%s@%s  %s", ws.Repo, ws.Ref, ws.Path)
			if ws.Revision != "" {
				line += "  " + ws.Revision
			}
			names = append(names, line)
		}
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}

	if len(names) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No %s registered\n", kind)
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

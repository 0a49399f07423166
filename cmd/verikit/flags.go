package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/verikit/verikit/internal/config"
)

func gatherFlags(cmd *cobra.Command) (config.FlagValues, error) {
	flags := cmd.Flags()
	var values config.FlagValues

	if flags.Changed("parallel") {
		v, err := flags.GetInt("parallel")
		if err != nil {
			return values, fmt.Errorf("parse --parallel: %w", err)
		}
		values.Parallel = config.IntFlag{Value: v, Set: true}
	}

	if flags.Changed("format") {
		v, err := flags.GetString("format")
		if err != nil {
			return values, fmt.Errorf("parse --format: %w", err)
		}
		values.Format = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("verbose") {
		v, err := flags.GetBool("verbose")
		if err != nil {
			return values, fmt.Errorf("parse --verbose: %w", err)
		}
		values.Verbose = config.BoolFlag{Value: v, Set: true}
	}

	if flags.Changed("workspace-dir") {
		v, err := flags.GetString("workspace-dir")
		if err != nil {
			return values, fmt.Errorf("parse --workspace-dir: %w", err)
		}
		values.WorkspaceDir = config.StringFlag{Value: v, Set: true}
	}

	return values, nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	root, err := os.Getwd()
	if err != nil {
		return config.Config{}, fmt.Errorf("determine working directory: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return config.Config{}, err
	}

	flags, err := gatherFlags(cmd)
	if err != nil {
		return config.Config{}, err
	}
	config.ApplyFlags(&cfg, flags)

	return cfg, nil
}

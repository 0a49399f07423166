package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/verikit/verikit/internal/config"
	"github.com/verikit/verikit/internal/fault"
	"github.com/verikit/verikit/internal/orchestrator"
	"github.com/verikit/verikit/internal/output"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <suite>",
		Short: "Execute a test suite through the full pipeline",
		Args:  cobra.ExactArgs(1),
		RunE:  runExecute,
	}

	flags := cmd.Flags()
	flags.StringArray("filter", nil, "case name filter (repeatable, /re/ for regex)")
	flags.StringArray("tag", nil, "case tag filter (repeatable)")
	flags.String("build-env", "", "build environment to apply")
	flags.String("exe-env", "", "execution environment to apply")
	flags.StringArray("repo", nil, "repo to check out (repeatable)")
	flags.StringArray("build", nil, "build target (repeatable)")
	flags.StringArray("stimulus", nil, "stimulus to acquire (repeatable)")
	flags.StringArray("param", nil, "run parameter key=value (repeatable)")
	flags.String("ref", "", "ref override for checkouts and builds")

	return cmd
}

func runExecute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	plan, err := buildPlan(cmd, cfg, args[0])
	if err != nil {
		return err
	}

	report := a.orchestrator().Run(cmd.Context(), plan)

	if err := renderReport(cmd, cfg, report); err != nil {
		return err
	}
	if !report.Success() {
		return fmt.Errorf("run %s did not succeed", report.RunID)
	}
	return nil
}

func buildPlan(cmd *cobra.Command, cfg config.Config, suiteName string) (orchestrator.Plan, error) {
	flags := cmd.Flags()
	plan := orchestrator.Plan{
		Suite:   suiteName,
		Workers: cfg.Parallel,
	}

	var err error
	if plan.Filters, err = flags.GetStringArray("filter"); err != nil {
		return plan, fmt.Errorf("parse --filter: %w", err)
	}
	if plan.Tags, err = flags.GetStringArray("tag"); err != nil {
		return plan, fmt.Errorf("parse --tag: %w", err)
	}
	if plan.BuildEnv, err = flags.GetString("build-env"); err != nil {
		return plan, fmt.Errorf("parse --build-env: %w", err)
	}
	if plan.ExeEnv, err = flags.GetString("exe-env"); err != nil {
		return plan, fmt.Errorf("parse --exe-env: %w", err)
	}
	if plan.Repos, err = flags.GetStringArray("repo"); err != nil {
		return plan, fmt.Errorf("parse --repo: %w", err)
	}
	if plan.Builds, err = flags.GetStringArray("build"); err != nil {
		return plan, fmt.Errorf("parse --build: %w", err)
	}
	if plan.Stimuli, err = flags.GetStringArray("stimulus"); err != nil {
		return plan, fmt.Errorf("parse --stimulus: %w", err)
	}
	if plan.Ref, err = flags.GetString("ref"); err != nil {
		return plan, fmt.Errorf("parse --ref: %w", err)
	}

	raw, err := flags.GetStringArray("param")
	if err != nil {
		return plan, fmt.Errorf("parse --param: %w", err)
	}
	if len(raw) > 0 {
		plan.Params = map[string]string{}
		for _, pair := range raw {
			key, value, found := strings.Cut(pair, "=")
			if !found || key == "" {
				return plan, fault.Validation("malformed --param %q, want key=value", pair)
			}
			plan.Params[key] = value
		}
	}
	return plan, nil
}

func renderReport(cmd *cobra.Command, cfg config.Config, report orchestrator.Report) error {
	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty:
		return output.NewPretty(cmd.OutOrStdout()).Render(report)
	case config.FormatJSON:
		return output.NewJSON(cmd.OutOrStdout()).Render(report)
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}
}

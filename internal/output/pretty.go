// Package output renders run reports for terminals and machines.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/verikit/verikit/internal/orchestrator"
	"github.com/verikit/verikit/internal/suite"
)

// PrettyRenderer renders run reports in a human-friendly format.
type PrettyRenderer struct {
	out io.Writer
}

// NewPretty creates a PrettyRenderer writing to the provided writer.
func NewPretty(out io.Writer) *PrettyRenderer {
	return &PrettyRenderer{out: out}
}

// Render writes the pipeline steps, per-case results, and the summary.
func (p *PrettyRenderer) Render(report orchestrator.Report) error {
	if _, err := fmt.Fprintf(p.out, "Run %s  suite %s\n\n", report.RunID, report.Suite); err != nil {
		return err
	}
	for _, step := range report.Steps {
		line := fmt.Sprintf("  %s %-16s", stepGlyph(step.Status), step.Step)
		if step.Detail != "" {
			line += "  " + step.Detail
		}
		if _, err := fmt.Fprintln(p.out, line); err != nil {
			return err
		}
	}
	if report.Result != nil && len(report.Result.Results) > 0 {
		if _, err := fmt.Fprintln(p.out); err != nil {
			return err
		}
		for _, task := range report.Result.Results {
			if err := p.renderTask(task); err != nil {
				return err
			}
		}
	}
	return p.renderSummary(report)
}

func (p *PrettyRenderer) renderTask(task suite.TaskResult) error {
	line := fmt.Sprintf("  %s %s (%.1fs)", taskGlyph(task.Status), task.Name, task.Seconds)
	if task.Message != "" {
		line += "  " + firstLine(task.Message)
	}
	_, err := fmt.Fprintln(p.out, line)
	return err
}

func (p *PrettyRenderer) renderSummary(report orchestrator.Report) error {
	var res suite.Result
	if report.Result != nil {
		res = *report.Result
	}
	verdict := "PASS"
	if !report.Success() {
		verdict = "FAIL"
	}
	_, err := fmt.Fprintf(p.out, "\n%s  %d total, %d passed, %d failed, %d errors\n",
		verdict, res.Total, res.Passed, res.Failed, res.Errors)
	return err
}

// RenderHistory lists stored run records one per line.
func (p *PrettyRenderer) RenderHistory(lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(p.out, line); err != nil {
			return err
		}
	}
	return nil
}

func stepGlyph(status string) string {
	switch status {
	case orchestrator.StepDone:
		return "✓"
	case orchestrator.StepError:
		return "✗"
	default:
		return "-"
	}
}

func taskGlyph(status string) string {
	switch status {
	case suite.StatusPassed:
		return "✓"
	case suite.StatusFailed, suite.StatusError:
		return "✗"
	default:
		return "-"
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		return s[:idx]
	}
	return s
}

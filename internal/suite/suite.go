// Package suite defines test cases and their results, and loads suite
// definitions from YAML files.
package suite

import (
	"strings"
	"time"
)

// Task statuses produced by the scheduler.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Case is a single test case definition. Cases are immutable during
// execution; parameter injection happens before scheduling.
type Case struct {
	Name        string            `yaml:"name"`
	Args        map[string]string `yaml:"args"`
	Timeout     int               `yaml:"timeout"` // seconds
	Tags        []string          `yaml:"tags"`
	Environment string            `yaml:"environment"`
	Params      map[string]string `yaml:"params"`
	Repo        string            `yaml:"repo"`
	RepoRef     string            `yaml:"repo_ref"`
}

// Command returns the case's command template.
func (c Case) Command() string { return c.Args["cmd"] }

// TaskResult is the outcome of exactly one case execution.
type TaskResult struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"-"`
	Seconds  float64       `json:"duration_s"`
	Message  string        `json:"message,omitempty"`
	LogPath  string        `json:"log_path,omitempty"`
}

// Result aggregates one suite run.
type Result struct {
	SuiteName   string       `json:"suite"`
	Environment string       `json:"environment,omitempty"`
	SnapshotID  string       `json:"snapshot_id,omitempty"`
	Total       int          `json:"total"`
	Passed      int          `json:"passed"`
	Failed      int          `json:"failed"`
	Errors      int          `json:"errors"`
	Results     []TaskResult `json:"results"`
}

// Success reports whether the run had no failed and no errored cases.
func (r Result) Success() bool { return r.Failed == 0 && r.Errors == 0 }

// Summarize builds a Result from task results, counting statuses.
func Summarize(tasks []TaskResult, suiteName, environment, snapshotID string) Result {
	res := Result{
		SuiteName:   suiteName,
		Environment: environment,
		SnapshotID:  snapshotID,
		Total:       len(tasks),
		Results:     tasks,
	}
	for _, t := range tasks {
		switch t.Status {
		case StatusPassed:
			res.Passed++
		case StatusFailed:
			res.Failed++
		case StatusError:
			res.Errors++
		}
	}
	return res
}

// InjectParams overlays plan parameters onto each case and expands {key}
// placeholders in the command template. The input slice is not mutated.
func InjectParams(cases []Case, params map[string]string) []Case {
	if len(params) == 0 {
		return cases
	}
	out := make([]Case, len(cases))
	for i, c := range cases {
		merged := make(map[string]string, len(c.Params)+len(params))
		for k, v := range c.Params {
			merged[k] = v
		}
		for k, v := range params {
			merged[k] = v
		}
		c.Params = merged

		if cmd := c.Args["cmd"]; cmd != "" {
			args := make(map[string]string, len(c.Args))
			for k, v := range c.Args {
				args[k] = v
			}
			args["cmd"] = expand(cmd, merged)
			c.Args = args
		}
		out[i] = c
	}
	return out
}

func expand(template string, params map[string]string) string {
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

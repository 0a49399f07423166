// Package scheduler executes a batch of test cases under a parallelism
// bound with optional admission gating.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/verikit/verikit/internal/admission"
	"github.com/verikit/verikit/internal/shell"
	"github.com/verikit/verikit/internal/suite"
)

// Options configure a Scheduler.
type Options struct {
	// Workers bounds parallel case execution. Values below one run
	// sequentially in input order.
	Workers int
	// Admission optionally gates each case on a capacity slot.
	Admission admission.Controller
	// Executor runs case processes. Defaults to shell.Local.
	Executor shell.Executor
	// WorkDir is the working directory cases run in. Empty inherits.
	WorkDir string
	// Env is an environment overlay applied to every case process.
	Env map[string]string
	// Log defaults to slog.Default().
	Log *slog.Logger
}

// Scheduler runs cases and produces one TaskResult per case.
//
// A Scheduler instance serves one orchestration run at a time; concurrent
// runs need separate instances.
type Scheduler struct {
	opts Options
}

// New creates a scheduler with the supplied options.
func New(opts Options) *Scheduler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Executor == nil {
		opts.Executor = shell.Local{}
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Scheduler{opts: opts}
}

// RunAll executes every case and returns one result per input case. With a
// single worker, results follow input order; in parallel mode the order of
// completion decides.
func (s *Scheduler) RunAll(ctx context.Context, cases []suite.Case) []suite.TaskResult {
	if len(cases) == 0 {
		return nil
	}
	if s.opts.Workers == 1 {
		results := make([]suite.TaskResult, 0, len(cases))
		for _, c := range cases {
			results = append(results, s.runOne(ctx, c))
		}
		return results
	}

	jobs := make(chan suite.Case)
	out := make(chan suite.TaskResult, len(cases))
	var wg sync.WaitGroup
	for i := 0; i < s.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				out <- s.runOne(ctx, c)
			}
		}()
	}
	for _, c := range cases {
		jobs <- c
	}
	close(jobs)
	wg.Wait()
	close(out)

	results := make([]suite.TaskResult, 0, len(cases))
	for r := range out {
		results = append(results, r)
	}
	return results
}

func (s *Scheduler) runOne(ctx context.Context, c suite.Case) suite.TaskResult {
	if s.opts.Admission != nil {
		if !s.opts.Admission.Acquire(c.Name) {
			s.opts.Log.Warn("case skipped, no admission slot", "case", c.Name)
			return suite.TaskResult{
				Name:    c.Name,
				Status:  suite.StatusSkipped,
				Message: "resource exhausted, no admission slot available",
			}
		}
		defer s.opts.Admission.Release(c.Name)
	}

	cmd := c.Command()
	if cmd == "" {
		return suite.TaskResult{
			Name:    c.Name,
			Status:  suite.StatusSkipped,
			Message: "case defines no cmd argument",
		}
	}

	s.opts.Log.Info("case start", "case", c.Name, "timeout_s", c.Timeout)
	res, err := s.opts.Executor.Execute(ctx, shell.Command{
		Line:    cmd,
		Dir:     s.opts.WorkDir,
		Env:     s.opts.Env,
		Timeout: time.Duration(c.Timeout) * time.Second,
	})
	task := suite.TaskResult{
		Name:     c.Name,
		Duration: res.Duration,
		Seconds:  res.Duration.Seconds(),
	}
	switch {
	case err != nil:
		task.Status = suite.StatusError
		task.Message = err.Error()
	case res.TimedOut:
		task.Status = suite.StatusError
		task.Message = fmt.Sprintf("timed out after %ds", c.Timeout)
	case res.ExitCode == 0:
		task.Status = suite.StatusPassed
	default:
		task.Status = suite.StatusFailed
		task.Message = fmt.Sprintf("exit code %d: %s", res.ExitCode, shell.Truncate(res.Stderr))
	}
	s.opts.Log.Info("case done", "case", c.Name, "status", task.Status, "duration", res.Duration)
	return task
}

package env

import (
	"context"

	"github.com/verikit/verikit/internal/fault"
	"github.com/verikit/verikit/internal/shell"
)

// Runner executes commands under an applied session, carrying its variable
// set and timeout. A timed-out command marks the session dead.
type Runner struct {
	mgr  *Manager
	exec shell.Executor
}

// NewRunner creates a runner bound to the manager.
func NewRunner(mgr *Manager, exec shell.Executor) *Runner {
	if exec == nil {
		exec = shell.Local{}
	}
	return &Runner{mgr: mgr, exec: exec}
}

// Run executes line inside the session. The session's work dir is used
// unless dir overrides it.
func (r *Runner) Run(ctx context.Context, sessionID, line, dir string) (shell.Result, error) {
	s, ok := r.mgr.Session(sessionID)
	if !ok {
		return shell.Result{}, fault.NotFound("session %q not found", sessionID)
	}
	if !s.Active() {
		return shell.Result{}, fault.Resource("session %q is %s, not applied", sessionID, s.Status)
	}
	if dir == "" {
		dir = s.WorkDir
	}
	res, err := r.exec.Execute(ctx, shell.Command{
		Line:    line,
		Dir:     dir,
		Env:     s.Vars,
		Timeout: s.Timeout,
	})
	if err != nil {
		return res, err
	}
	if res.TimedOut {
		r.mgr.MarkTimeout(sessionID)
	}
	return res, nil
}

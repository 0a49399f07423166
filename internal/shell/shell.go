// Package shell runs OS processes under one contract: a command line, a
// working directory, an environment overlay, and an optional timeout. Every
// setup/build/clean/hook/case command in the system goes through Executor,
// so tests can substitute a fake without touching os/exec.
package shell

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// MessageByteBudget caps stderr excerpts surfaced in result messages.
const MessageByteBudget = 500

// Command describes one process invocation.
type Command struct {
	Line    string            // full command line, tokenized without a shell
	Dir     string            // working directory; empty means inherit
	Env     map[string]string // overlay merged over the parent environment
	Timeout time.Duration     // zero means no deadline
}

// Result captures a finished process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// Success reports whether the process exited zero without timing out.
func (r Result) Success() bool { return r.ExitCode == 0 && !r.TimedOut }

// Executor abstracts process execution for injection in tests.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (Result, error)
}

// Local executes commands on the controlling host.
type Local struct{}

// Execute runs the command, capturing output. A non-zero exit is reported
// through Result, not through the returned error; the error is reserved for
// spawn failures (empty line, missing binary).
func (Local) Execute(ctx context.Context, cmd Command) (Result, error) {
	args, err := Split(cmd.Line)
	if err != nil {
		return Result{ExitCode: -1}, err
	}

	runCtx := ctx
	cancel := func() {}
	if cmd.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
	}
	defer cancel()

	proc := exec.CommandContext(runCtx, args[0], args[1:]...)
	proc.Dir = cmd.Dir
	proc.Env = MergeEnv(os.Environ(), cmd.Env)

	var stdout, stderr strings.Builder
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	start := time.Now()
	runErr := proc.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}
	res.ExitCode = exitCode(runErr)
	if runErr != nil && res.ExitCode == -1 {
		// spawn failure rather than a command failure
		return res, runErr
	}
	return res, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Split tokenizes a command line, honouring single and double quotes.
func Split(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		word    bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			word = true
		case r == ' ' || r == '\t':
			if word {
				args = append(args, current.String())
				current.Reset()
				word = false
			}
		default:
			current.WriteRune(r)
			word = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote in command line")
	}
	if word {
		args = append(args, current.String())
	}
	if len(args) == 0 {
		return nil, errors.New("empty command line")
	}
	return args, nil
}

// MergeEnv overlays key/value pairs on a base KEY=VALUE environment,
// returning a sorted list.
func MergeEnv(base []string, overlay map[string]string) []string {
	envMap := make(map[string]string, len(base)+len(overlay))
	for _, kv := range base {
		if idx := strings.Index(kv, "="); idx != -1 {
			envMap[kv[:idx]] = kv[idx+1:]
		}
	}
	for k, v := range overlay {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}

// Truncate limits s to the message byte budget, marking elision.
func Truncate(s string) string {
	if len(s) <= MessageByteBudget {
		return s
	}
	return s[:MessageByteBudget] + "..."
}

package repo

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verikit/verikit/internal/fault"
	"github.com/verikit/verikit/internal/shell"
)

// scriptedExec records every command line and answers each by the first
// matching prefix rule.
type scriptedExec struct {
	lines []string
	rules []execRule
}

type execRule struct {
	prefix string
	result shell.Result
	err    error
}

func (s *scriptedExec) Execute(_ context.Context, cmd shell.Command) (shell.Result, error) {
	s.lines = append(s.lines, cmd.Line)
	for _, r := range s.rules {
		if strings.HasPrefix(cmd.Line, r.prefix) {
			return r.result, r.err
		}
	}
	return shell.Result{}, nil
}

func (s *scriptedExec) count(prefix string) int {
	n := 0
	for _, l := range s.lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T, specs ...Spec) *Registry {
	t.Helper()
	reg, err := OpenRegistry(filepath.Join(t.TempDir(), "repos.yml"))
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	for _, spec := range specs {
		if err := reg.Put(spec); err != nil {
			t.Fatalf("put %q: %v", spec.Name, err)
		}
	}
	return reg
}

func TestCheckoutRejectsUnsafeRef(t *testing.T) {
	exec := &scriptedExec{}
	reg := newTestRegistry(t, Spec{Name: "rtl", Source: SourceGit, URL: "https://git.example/rtl.git"})
	coord := NewCoordinator(reg, Options{Root: t.TempDir(), Executor: exec, Log: quietLog()})

	_, err := coord.Checkout(context.Background(), "rtl", CheckoutOptions{RefOverride: `"; rm -rf /"`})
	if err == nil {
		t.Fatal("expected ref rejection")
	}
	if !fault.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
	if len(exec.lines) != 0 {
		t.Fatalf("no process may run for a malformed ref, saw %v", exec.lines)
	}
}

func TestCheckoutUnknownRepo(t *testing.T) {
	reg := newTestRegistry(t)
	coord := NewCoordinator(reg, Options{Root: t.TempDir(), Executor: &scriptedExec{}, Log: quietLog()})

	_, err := coord.Checkout(context.Background(), "ghost", CheckoutOptions{})
	if !fault.IsNotFound(err) {
		t.Fatalf("want not-found error, got %v", err)
	}
}

func TestCheckoutClonesThenReuses(t *testing.T) {
	exec := &scriptedExec{rules: []execRule{
		{prefix: "git rev-parse", result: shell.Result{Stdout: "0123456789abcdef0123\n"}},
	}}
	reg := newTestRegistry(t, Spec{Name: "rtl", Source: SourceGit, URL: "https://git.example/rtl.git", Ref: "release/v2"})
	coord := NewCoordinator(reg, Options{Root: t.TempDir(), Executor: exec, Log: quietLog()})

	first, err := coord.Checkout(context.Background(), "rtl", CheckoutOptions{})
	if err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	if first.Status != StatusUpdated {
		t.Fatalf("status = %q, want %q (%s)", first.Status, StatusUpdated, first.Message)
	}
	if first.Revision != "0123456789ab" {
		t.Fatalf("revision = %q, want 12-char prefix", first.Revision)
	}
	if !strings.HasSuffix(first.LocalPath, filepath.Join("rtl", "release_v2")) {
		t.Fatalf("workspace path %q does not encode repo and ref", first.LocalPath)
	}
	if got := exec.count("git clone"); got != 1 {
		t.Fatalf("clone count = %d, want 1", got)
	}

	second, err := coord.Checkout(context.Background(), "rtl", CheckoutOptions{})
	if err != nil {
		t.Fatalf("second checkout: %v", err)
	}
	if second != first {
		t.Fatal("same (name, ref) should reuse the cached workspace")
	}
	if got := exec.count("git clone"); got != 1 {
		t.Fatalf("reuse must not clone again, clone count = %d", got)
	}
}

func TestCheckoutExclusiveSkipsReuse(t *testing.T) {
	exec := &scriptedExec{rules: []execRule{
		{prefix: "git rev-parse", result: shell.Result{Stdout: "abc123def456aa\n"}},
	}}
	reg := newTestRegistry(t, Spec{Name: "rtl", Source: SourceGit, URL: "u"})
	coord := NewCoordinator(reg, Options{Root: t.TempDir(), Executor: exec, Log: quietLog()})

	if _, err := coord.Checkout(context.Background(), "rtl", CheckoutOptions{}); err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	if _, err := coord.Checkout(context.Background(), "rtl", CheckoutOptions{Exclusive: true}); err != nil {
		t.Fatalf("exclusive checkout: %v", err)
	}
	if got := exec.count("git clone"); got != 2 {
		t.Fatalf("clone count = %d, exclusive must bypass the cache", got)
	}
}

func TestCheckoutFetchesExistingWorkspace(t *testing.T) {
	exec := &scriptedExec{rules: []execRule{
		{prefix: "git rev-parse", result: shell.Result{Stdout: "feedfacecafe99\n"}},
	}}
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "rtl", "main", ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	reg := newTestRegistry(t, Spec{Name: "rtl", Source: SourceGit, URL: "u"})
	coord := NewCoordinator(reg, Options{Root: root, Executor: exec, Log: quietLog()})

	ws, err := coord.Checkout(context.Background(), "rtl", CheckoutOptions{})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if ws.Status != StatusUpdated {
		t.Fatalf("status = %q (%s)", ws.Status, ws.Message)
	}
	if got := exec.count("git clone"); got != 0 {
		t.Fatalf("existing checkout must not clone, clone count = %d", got)
	}
	if got := exec.count("git fetch --depth 1 origin main"); got != 1 {
		t.Fatalf("fetch count = %d, want 1; lines %v", got, exec.lines)
	}
	if got := exec.count("git checkout FETCH_HEAD"); got != 1 {
		t.Fatalf("FETCH_HEAD checkout count = %d", got)
	}
}

func TestCheckoutShallowCloneFallsBackToFull(t *testing.T) {
	exec := &scriptedExec{rules: []execRule{
		{prefix: "git clone --depth 1", result: shell.Result{ExitCode: 128, Stderr: "unknown branch"}},
		{prefix: "git rev-parse", result: shell.Result{Stdout: "a1b2c3d4e5f6a7\n"}},
	}}
	reg := newTestRegistry(t, Spec{Name: "rtl", Source: SourceGit, URL: "u", Ref: "a1b2c3"})
	coord := NewCoordinator(reg, Options{Root: t.TempDir(), Executor: exec, Log: quietLog()})

	ws, err := coord.Checkout(context.Background(), "rtl", CheckoutOptions{})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if ws.Status != StatusUpdated {
		t.Fatalf("status = %q (%s)", ws.Status, ws.Message)
	}
	if got := exec.count("git clone"); got != 2 {
		t.Fatalf("clone count = %d, want shallow then full", got)
	}
	if got := exec.count("git checkout a1b2c3"); got != 1 {
		t.Fatalf("explicit checkout count = %d; lines %v", got, exec.lines)
	}
}

func TestCheckoutGitFailureIsNonFatal(t *testing.T) {
	exec := &scriptedExec{rules: []execRule{
		{prefix: "git clone", result: shell.Result{ExitCode: 128, Stderr: "repository not found"}},
	}}
	reg := newTestRegistry(t, Spec{Name: "rtl", Source: SourceGit, URL: "u"})
	coord := NewCoordinator(reg, Options{Root: t.TempDir(), Executor: exec, Log: quietLog()})

	ws, err := coord.Checkout(context.Background(), "rtl", CheckoutOptions{})
	if err != nil {
		t.Fatalf("checkout returned hard error: %v", err)
	}
	if ws.Status != StatusError {
		t.Fatalf("status = %q, want error", ws.Status)
	}
	if !strings.Contains(ws.Message, "repository not found") {
		t.Fatalf("message %q should carry the git stderr", ws.Message)
	}
}

func TestCheckoutErrorWorkspaceNotReused(t *testing.T) {
	exec := &scriptedExec{rules: []execRule{
		{prefix: "git clone", result: shell.Result{ExitCode: 1, Stderr: "boom"}},
	}}
	reg := newTestRegistry(t, Spec{Name: "rtl", Source: SourceGit, URL: "u"})
	coord := NewCoordinator(reg, Options{Root: t.TempDir(), Executor: exec, Log: quietLog()})

	for i := 0; i < 2; i++ {
		ws, err := coord.Checkout(context.Background(), "rtl", CheckoutOptions{})
		if err != nil {
			t.Fatalf("checkout %d: %v", i, err)
		}
		if ws.Status != StatusError {
			t.Fatalf("checkout %d status = %q", i, ws.Status)
		}
	}
	// both attempts must reach the clone
	if got := exec.count("git clone --depth 1"); got != 2 {
		t.Fatalf("shallow clone count = %d, want 2", got)
	}
}

func TestCheckoutHookFailure(t *testing.T) {
	exec := &scriptedExec{rules: []execRule{
		{prefix: "git rev-parse", result: shell.Result{Stdout: "cafebabe0011aa\n"}},
		{prefix: "make prep", result: shell.Result{ExitCode: 2, Stderr: "missing toolchain"}},
	}}
	reg := newTestRegistry(t, Spec{Name: "rtl", Source: SourceGit, URL: "u", SetupCmd: "make prep", BuildCmd: "make all"})
	coord := NewCoordinator(reg, Options{Root: t.TempDir(), Executor: exec, Log: quietLog()})

	ws, err := coord.Checkout(context.Background(), "rtl", CheckoutOptions{})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if ws.Status != StatusError {
		t.Fatalf("status = %q, want error", ws.Status)
	}
	if !strings.Contains(ws.Message, "setup hook failed (rc=2)") {
		t.Fatalf("message = %q", ws.Message)
	}
	if got := exec.count("make all"); got != 0 {
		t.Fatal("build hook must not run after a failed setup hook")
	}
}

func TestCheckoutRunsHooksInSubdir(t *testing.T) {
	var hookDirs []string
	exec := &scriptedExec{rules: []execRule{
		{prefix: "git rev-parse", result: shell.Result{Stdout: "deadbeef001122\n"}},
	}}
	reg := newTestRegistry(t, Spec{Name: "rtl", Source: SourceGit, URL: "u", Path: "fw", SetupCmd: "true"})
	root := t.TempDir()
	coord := NewCoordinator(reg, Options{Root: root, Executor: hookRecorder{exec, &hookDirs}, Log: quietLog()})

	if err := os.MkdirAll(filepath.Join(root, "rtl", "main", "fw"), 0o755); err != nil {
		t.Fatal(err)
	}
	ws, err := coord.Checkout(context.Background(), "rtl", CheckoutOptions{})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if ws.Status != StatusUpdated {
		t.Fatalf("status = %q (%s)", ws.Status, ws.Message)
	}
	if want := filepath.Join(root, "rtl", "main", "fw"); ws.LocalPath != want {
		t.Fatalf("LocalPath = %q, want %q", ws.LocalPath, want)
	}
	if len(hookDirs) != 1 || hookDirs[0] != ws.LocalPath {
		t.Fatalf("setup hook ran in %v, want the fw subdir", hookDirs)
	}
}

// hookRecorder captures the working directory of hook commands while
// delegating everything to the scripted executor.
type hookRecorder struct {
	inner *scriptedExec
	dirs  *[]string
}

func (h hookRecorder) Execute(ctx context.Context, cmd shell.Command) (shell.Result, error) {
	if !strings.HasPrefix(cmd.Line, "git ") {
		*h.dirs = append(*h.dirs, cmd.Dir)
	}
	return h.inner.Execute(ctx, cmd)
}

func TestCheckoutMissingSubdir(t *testing.T) {
	exec := &scriptedExec{rules: []execRule{
		{prefix: "git rev-parse", result: shell.Result{Stdout: "deadbeef001122\n"}},
	}}
	reg := newTestRegistry(t, Spec{Name: "rtl", Source: SourceGit, URL: "u", Path: "nope"})
	coord := NewCoordinator(reg, Options{Root: t.TempDir(), Executor: exec, Log: quietLog()})

	ws, err := coord.Checkout(context.Background(), "rtl", CheckoutOptions{})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if ws.Status != StatusError {
		t.Fatalf("status = %q, want error for missing subdirectory", ws.Status)
	}
}

type fakeResolver struct {
	fetched []string
	fail    map[string]bool
}

func (f *fakeResolver) Fetch(name string) error {
	f.fetched = append(f.fetched, name)
	if f.fail[name] {
		return fault.Execution("dep %q unavailable", name)
	}
	return nil
}

func TestCheckoutDepFailureIsNonFatal(t *testing.T) {
	exec := &scriptedExec{rules: []execRule{
		{prefix: "git rev-parse", result: shell.Result{Stdout: "0011223344556677\n"}},
	}}
	resolver := &fakeResolver{fail: map[string]bool{"vip-pkg": true}}
	reg := newTestRegistry(t, Spec{Name: "rtl", Source: SourceGit, URL: "u", Deps: []string{"vip-pkg", "common-pkg"}})
	coord := NewCoordinator(reg, Options{Root: t.TempDir(), Executor: exec, Deps: resolver, Log: quietLog()})

	ws, err := coord.Checkout(context.Background(), "rtl", CheckoutOptions{})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if ws.Status != StatusUpdated {
		t.Fatalf("status = %q (%s)", ws.Status, ws.Message)
	}
	if len(resolver.fetched) != 2 {
		t.Fatalf("fetched %v, want both deps attempted", resolver.fetched)
	}
}

func TestCleanWorkspaces(t *testing.T) {
	exec := &scriptedExec{rules: []execRule{
		{prefix: "git rev-parse", result: shell.Result{Stdout: "1122334455667788\n"}},
	}}
	root := t.TempDir()
	reg := newTestRegistry(t, Spec{Name: "rtl", Source: SourceGit, URL: "u"})
	coord := NewCoordinator(reg, Options{Root: root, Executor: exec, Log: quietLog()})

	if _, err := coord.Checkout(context.Background(), "rtl", CheckoutOptions{}); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	n, err := coord.CleanWorkspaces("rtl")
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed %d workspaces, want 1", n)
	}
	if _, err := os.Stat(filepath.Join(root, "rtl", "main")); !os.IsNotExist(err) {
		t.Fatal("workspace directory should be gone")
	}

	// the cache entry is gone too, so the next checkout clones again
	if _, err := coord.Checkout(context.Background(), "rtl", CheckoutOptions{}); err != nil {
		t.Fatalf("re-checkout: %v", err)
	}
	if got := exec.count("git clone"); got != 2 {
		t.Fatalf("clone count = %d, want fresh clone after clean", got)
	}
}

func TestValidateRef(t *testing.T) {
	for _, ref := range []string{"main", "release/v2.1", "feature_x", "v1.0@tag", "a-b.c"} {
		if err := ValidateRef(ref); err != nil {
			t.Errorf("ValidateRef(%q) = %v, want nil", ref, err)
		}
	}
	for _, ref := range []string{"main; rm -rf /", "$(whoami)", "a b", "x|y", "`id`"} {
		if err := ValidateRef(ref); err == nil {
			t.Errorf("ValidateRef(%q) accepted an unsafe ref", ref)
		}
	}
}

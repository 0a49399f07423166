package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/verikit/verikit/internal/fault"
	"github.com/verikit/verikit/internal/repo"
	"github.com/verikit/verikit/internal/shell"
)

// Checkouter materializes repo workspaces; satisfied by repo.Coordinator.
type Checkouter interface {
	Checkout(ctx context.Context, name string, opts repo.CheckoutOptions) (*repo.Workspace, error)
}

// Options configure a Service.
type Options struct {
	Registry   *Registry
	Repos      *repo.Registry // optional, used to resolve default refs
	Checkout   Checkouter     // optional, used when a build is bound to a repo
	Executor   shell.Executor
	OutputRoot string // work dirs for repo-less builds
	Log        *slog.Logger
}

// Service runs registered builds through the shared executor, consulting
// the in-process cache first.
type Service struct {
	registry *Registry
	repos    *repo.Registry
	checkout Checkouter
	exec     shell.Executor
	root     string
	log      *slog.Logger
	cache    *cache
}

// NewService creates a build service.
func NewService(opts Options) *Service {
	if opts.Executor == nil {
		opts.Executor = shell.Local{}
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.OutputRoot == "" {
		opts.OutputRoot = "data/builds"
	}
	return &Service{
		registry: opts.Registry,
		repos:    opts.Repos,
		checkout: opts.Checkout,
		exec:     opts.Executor,
		root:     opts.OutputRoot,
		log:      opts.Log,
		cache:    newCache(),
	}
}

// RunOptions tune a single build invocation.
type RunOptions struct {
	RefOverride string            // replaces the bound repo's default ref
	WorkDir     string            // explicit work dir, skips repo checkout
	Env         map[string]string // session variables overlaid on the spec's
	Force       bool              // rebuild even on a cache hit
}

// Run executes the named build. A prior success at the same resolved ref
// is returned with the cached status and no process spawned, unless the
// caller forces a rebuild.
func (s *Service) Run(ctx context.Context, name string, opts RunOptions) (Result, error) {
	spec, err := s.registry.Get(name)
	if err != nil {
		return Result{}, err
	}
	ref, err := s.resolveRef(spec, opts.RefOverride)
	if err != nil {
		return Result{}, err
	}

	if !opts.Force {
		if hit, ok := s.cache.lookup(name, ref); ok {
			s.log.Info("build cache hit", "build", name, "ref", ref)
			return hit, nil
		}
	}

	res := Result{Spec: spec, RepoRef: ref, Status: StatusPending}
	res.WorkDir, err = s.resolveWorkDir(ctx, spec, ref, opts.WorkDir)
	if err != nil {
		return Result{}, err
	}

	cmdEnv := spec.Variables
	if len(opts.Env) > 0 {
		cmdEnv = make(map[string]string, len(spec.Variables)+len(opts.Env))
		for k, v := range spec.Variables {
			cmdEnv[k] = v
		}
		for k, v := range opts.Env {
			cmdEnv[k] = v
		}
	}

	start := time.Now()
	for _, step := range []struct{ label, cmd string }{
		{"setup", spec.SetupCmd},
		{"build", spec.BuildCmd},
	} {
		if step.cmd == "" {
			continue
		}
		out, err := s.exec.Execute(ctx, shell.Command{
			Line: step.cmd,
			Dir:  res.WorkDir,
			Env:  cmdEnv,
		})
		if err != nil {
			res.Status = StatusFailed
			res.Message = step.label + ": " + err.Error()
			res.Duration = time.Since(start)
			return res, nil
		}
		if !out.Success() {
			res.Status = StatusFailed
			res.Message = fmt.Sprintf("%s failed (rc=%d): %s", step.label, out.ExitCode, shell.Truncate(out.Stderr))
			res.Duration = time.Since(start)
			s.log.Error("build failed", "build", name, "ref", ref, "step", step.label, "rc", out.ExitCode)
			return res, nil
		}
	}
	res.Duration = time.Since(start)
	res.Status = StatusSuccess
	res.OutputPath = res.WorkDir
	if spec.OutputDir != "" {
		res.OutputPath = filepath.Join(res.WorkDir, spec.OutputDir)
	}
	s.cache.store(name, ref, res)
	s.log.Info("build succeeded", "build", name, "ref", ref, "output", res.OutputPath, "duration", res.Duration)
	return res, nil
}

// Clean runs the build's clean command (when present) and drops its cache
// entries for the given ref, or for every ref when ref is empty.
func (s *Service) Clean(ctx context.Context, name, ref string) error {
	spec, err := s.registry.Get(name)
	if err != nil {
		return err
	}
	dropped := s.cache.invalidate(name, ref)
	s.log.Info("build cache invalidated", "build", name, "ref", ref, "entries", dropped)
	if spec.CleanCmd == "" {
		return nil
	}
	out, err := s.exec.Execute(ctx, shell.Command{Line: spec.CleanCmd, Env: spec.Variables})
	if err != nil {
		return fmt.Errorf("clean %q: %w", name, err)
	}
	if !out.Success() {
		return fault.Execution("clean %q failed (rc=%d): %s", name, out.ExitCode, shell.Truncate(out.Stderr))
	}
	return nil
}

// IsCached reports whether a success is memoized for (name, ref).
func (s *Service) IsCached(name, ref string) bool {
	_, ok := s.cache.lookup(name, ref)
	return ok
}

func (s *Service) resolveRef(spec Spec, override string) (string, error) {
	if override != "" {
		if err := repo.ValidateRef(override); err != nil {
			return "", err
		}
		return override, nil
	}
	if spec.RepoName == "" || s.repos == nil {
		return "", nil
	}
	repoSpec, err := s.repos.Get(spec.RepoName)
	if err != nil {
		return "", err
	}
	return repoSpec.Ref, nil
}

func (s *Service) resolveWorkDir(ctx context.Context, spec Spec, ref, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if spec.RepoName != "" && s.checkout != nil {
		ws, err := s.checkout.Checkout(ctx, spec.RepoName, repo.CheckoutOptions{RefOverride: ref})
		if err != nil {
			return "", err
		}
		if ws.Status == repo.StatusError {
			return "", fault.Execution("checkout %q for build %q: %s", spec.RepoName, spec.Name, ws.Message)
		}
		return ws.LocalPath, nil
	}
	dir := filepath.Join(s.root, spec.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create build dir %q: %w", dir, err)
	}
	return dir, nil
}

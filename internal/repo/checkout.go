package repo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verikit/verikit/internal/fault"
	"github.com/verikit/verikit/internal/shell"
)

// DepResolver fetches dependency packages declared by a repo spec. Fetch
// failures are non-fatal to a checkout.
type DepResolver interface {
	Fetch(name string) error
}

// Options configure a Coordinator.
type Options struct {
	Root     string // workspace root directory
	Executor shell.Executor
	Client   *http.Client
	Deps     DepResolver // optional
	Log      *slog.Logger
}

// Coordinator materializes repo workspaces and caches them per
// (name, resolved ref) for the process lifetime.
//
// A Coordinator serves one orchestration run at a time; concurrent runs
// need separate instances or external locking.
type Coordinator struct {
	registry *Registry
	root     string
	exec     shell.Executor
	deps     DepResolver
	log      *slog.Logger

	git gitSource
	tar tarSource
	api apiSource

	cache map[cacheKey]*Workspace
}

type cacheKey struct {
	name string
	ref  string
}

// NewCoordinator creates a coordinator over the given registry.
func NewCoordinator(reg *Registry, opts Options) *Coordinator {
	if opts.Executor == nil {
		opts.Executor = shell.Local{}
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Root == "" {
		opts.Root = "data/workspaces"
	}
	return &Coordinator{
		registry: reg,
		root:     opts.Root,
		exec:     opts.Executor,
		deps:     opts.Deps,
		log:      opts.Log,
		git:      gitSource{exec: opts.Executor, log: opts.Log},
		tar:      tarSource{client: opts.Client, log: opts.Log},
		api:      apiSource{client: opts.Client, log: opts.Log},
		cache:    map[cacheKey]*Workspace{},
	}
}

// CheckoutOptions tune a single checkout.
type CheckoutOptions struct {
	// RefOverride replaces the spec's default ref.
	RefOverride string
	// Exclusive skips workspace reuse for this checkout.
	Exclusive bool
}

// Checkout materializes the named repo. A prior workspace for the same
// (name, ref) is reused unless its status is error/pending or the caller
// asked for an exclusive checkout.
func (c *Coordinator) Checkout(ctx context.Context, name string, opts CheckoutOptions) (*Workspace, error) {
	spec, err := c.registry.Get(name)
	if err != nil {
		return nil, err
	}
	ref := opts.RefOverride
	if ref == "" {
		ref = spec.Ref
	}
	key := cacheKey{name: name, ref: ref}

	if !opts.Exclusive {
		if cached, ok := c.cache[key]; ok && cached.Status != StatusError && cached.Status != StatusPending {
			c.log.Info("reusing workspace", "repo", name, "ref", ref, "path", cached.LocalPath)
			return cached, nil
		}
	}

	ws, err := c.dispatch(ctx, spec, ref)
	if err != nil {
		return nil, err
	}
	c.postCheckout(ctx, &ws, spec)
	c.cache[key] = &ws
	return &ws, nil
}

func (c *Coordinator) dispatch(ctx context.Context, spec Spec, ref string) (Workspace, error) {
	dir := c.workspacePath(spec, ref)
	switch spec.Source {
	case SourceGit:
		return c.git.checkout(ctx, spec, ref, dir)
	case SourceTar:
		return c.tar.checkout(ctx, spec, ref, dir)
	case SourceAPI:
		return c.api.checkout(ctx, spec, ref, dir)
	default:
		return Workspace{}, fault.Validation("unsupported repo source type %q", spec.Source)
	}
}

func (c *Coordinator) workspacePath(spec Spec, ref string) string {
	slug := strings.ReplaceAll(ref, "/", "_")
	if slug == "" {
		slug = "default"
	}
	return filepath.Join(c.root, spec.Name, slug)
}

func (c *Coordinator) postCheckout(ctx context.Context, ws *Workspace, spec Spec) {
	if ws.Status == StatusError || ws.Status == StatusPending {
		return
	}
	if len(spec.Deps) > 0 {
		c.resolveDeps(spec)
	}

	cwd := ws.LocalPath
	if spec.Path != "" {
		cwd = filepath.Join(cwd, spec.Path)
	}
	if _, err := os.Stat(cwd); err != nil {
		ws.Status = StatusError
		ws.Message = "subdirectory " + spec.Path + " missing after checkout"
		return
	}

	for _, hook := range []struct{ label, cmd string }{
		{"setup", spec.SetupCmd},
		{"build", spec.BuildCmd},
	} {
		if hook.cmd == "" {
			continue
		}
		res, err := c.exec.Execute(ctx, shell.Command{Line: hook.cmd, Dir: cwd})
		if err != nil || !res.Success() {
			ws.Status = StatusError
			if err != nil {
				ws.Message = hook.label + " hook: " + err.Error()
			} else {
				ws.Message = fmt.Sprintf("%s hook failed (rc=%d): %s", hook.label, res.ExitCode, shell.Truncate(res.Stderr))
			}
			c.log.Error("post-checkout hook failed", "repo", spec.Name, "hook", hook.label, "msg", ws.Message)
			return
		}
	}
	ws.LocalPath = cwd
}

func (c *Coordinator) resolveDeps(spec Spec) {
	if c.deps == nil {
		c.log.Warn("repo declares deps but no resolver is configured", "repo", spec.Name)
		return
	}
	for _, dep := range spec.Deps {
		if err := c.deps.Fetch(dep); err != nil {
			c.log.Warn("dependency fetch failed (non-fatal)", "repo", spec.Name, "dep", dep, "err", err)
			continue
		}
		c.log.Info("dependency ready", "repo", spec.Name, "dep", dep)
	}
}

// ClearCache drops cached workspaces, all of them when name is empty.
func (c *Coordinator) ClearCache(name string) {
	if name == "" {
		c.cache = map[cacheKey]*Workspace{}
		return
	}
	for key := range c.cache {
		if key.name == name {
			delete(c.cache, key)
		}
	}
}


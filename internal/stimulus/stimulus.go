// Package stimulus acquires test stimuli (vector sets, firmware images,
// waveform captures) from their registered sources and verifies their
// integrity before a run consumes them.
package stimulus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/verikit/verikit/internal/fault"
	"github.com/verikit/verikit/internal/registry"
	"github.com/verikit/verikit/internal/repo"
	"github.com/verikit/verikit/internal/shell"
)

// Stimulus source types.
const (
	SourceRepo      = "repo"      // file inside a checked-out repo
	SourceGenerated = "generated" // produced by a generator command
	SourceStored    = "stored"    // pre-existing local file
	SourceExternal  = "external"  // downloaded over HTTP
)

// Acquisition statuses.
const (
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusError   = "error"
)

// Spec defines a registered stimulus.
type Spec struct {
	Name   string
	Source string

	RepoName string // repo source: repo to check out
	Path     string // repo/stored: file path; generated: output path under the work dir
	GenCmd   string // generated source: generator command
	URL      string // external source: download URL
	Checksum string // optional expected sha256, hex encoded
}

// Acquisition is one materialized stimulus.
type Acquisition struct {
	Spec      Spec
	LocalPath string
	Checksum  string // sha256 of the acquired file, hex encoded
	Status    string
	Message   string
}

// Registry stores stimulus specs in a YAML registry file.
type Registry struct {
	store *registry.Store
}

// OpenRegistry loads the stimuli section of the given file.
func OpenRegistry(path string) (*Registry, error) {
	store, err := registry.Open(path, "stimuli")
	if err != nil {
		return nil, err
	}
	return &Registry{store: store}, nil
}

// Get returns the named spec, or a NotFound error.
func (r *Registry) Get(name string) (Spec, error) {
	entry, ok := r.store.Get(name)
	if !ok {
		return Spec{}, fault.NotFound("stimulus %q not registered", name)
	}
	return Spec{
		Name:     name,
		Source:   entry.String("source_type"),
		RepoName: entry.String("repo"),
		Path:     entry.String("path"),
		GenCmd:   entry.String("gen_cmd"),
		URL:      entry.String("url"),
		Checksum: entry.String("checksum"),
	}, nil
}

// Names lists registered stimulus names.
func (r *Registry) Names() []string { return r.store.Names() }

// Put validates and stores a spec.
func (r *Registry) Put(spec Spec) error {
	if spec.Name == "" {
		return fault.Validation("stimulus name is required")
	}
	switch spec.Source {
	case SourceRepo:
		if spec.RepoName == "" || spec.Path == "" {
			return fault.Validation("repo stimulus %q needs repo and path", spec.Name)
		}
	case SourceGenerated:
		if spec.GenCmd == "" {
			return fault.Validation("generated stimulus %q needs gen_cmd", spec.Name)
		}
	case SourceStored:
		if spec.Path == "" {
			return fault.Validation("stored stimulus %q needs path", spec.Name)
		}
	case SourceExternal:
		if spec.URL == "" {
			return fault.Validation("external stimulus %q needs url", spec.Name)
		}
	default:
		return fault.Validation("unknown stimulus source type %q", spec.Source)
	}
	return r.store.Put(spec.Name, registry.Entry{
		"source_type": spec.Source,
		"repo":        spec.RepoName,
		"path":        spec.Path,
		"gen_cmd":     spec.GenCmd,
		"url":         spec.URL,
		"checksum":    spec.Checksum,
	})
}

// Remove deletes a spec, reporting whether it existed.
func (r *Registry) Remove(name string) (bool, error) {
	return r.store.Remove(name)
}

// Checkouter materializes repo workspaces; satisfied by repo.Coordinator.
type Checkouter interface {
	Checkout(ctx context.Context, name string, opts repo.CheckoutOptions) (*repo.Workspace, error)
}

// Options configure an Acquirer.
type Options struct {
	Registry *Registry
	Checkout Checkouter // optional, needed for repo sources
	Executor shell.Executor
	Client   *http.Client
	Root     string // work dirs for generated and external stimuli
	Log      *slog.Logger
}

// Acquirer materializes stimuli from their sources.
type Acquirer struct {
	registry *Registry
	checkout Checkouter
	exec     shell.Executor
	client   *http.Client
	root     string
	log      *slog.Logger
}

// NewAcquirer creates an acquirer.
func NewAcquirer(opts Options) *Acquirer {
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
		opts.Root = "data/stimuli"
	}
	return &Acquirer{
		registry: opts.Registry,
		checkout: opts.Checkout,
		exec:     opts.Executor,
		client:   opts.Client,
		root:     opts.Root,
		log:      opts.Log,
	}
}

// Acquire materializes the named stimulus and verifies its checksum when
// the spec declares one. Source failures come back in the acquisition
// status; the returned error is reserved for registry and validation
// faults.
func (a *Acquirer) Acquire(ctx context.Context, name string) (Acquisition, error) {
	spec, err := a.registry.Get(name)
	if err != nil {
		return Acquisition{}, err
	}
	acq := Acquisition{Spec: spec, Status: StatusPending}

	switch spec.Source {
	case SourceRepo:
		err = a.fromRepo(ctx, spec, &acq)
	case SourceGenerated:
		err = a.generate(ctx, spec, &acq)
	case SourceStored:
		acq.LocalPath = spec.Path
	case SourceExternal:
		err = a.download(ctx, spec, &acq)
	default:
		return acq, fault.Validation("unknown stimulus source type %q", spec.Source)
	}
	if err != nil {
		return acq, err
	}
	if acq.Status == StatusError {
		return acq, nil
	}

	if err := a.verify(spec, &acq); err != nil {
		acq.Status = StatusError
		acq.Message = err.Error()
		a.log.Error("stimulus verification failed", "stimulus", name, "err", err)
		return acq, nil
	}
	acq.Status = StatusReady
	a.log.Info("stimulus ready", "stimulus", name, "path", acq.LocalPath, "sha256", acq.Checksum)
	return acq, nil
}

func (a *Acquirer) fromRepo(ctx context.Context, spec Spec, acq *Acquisition) error {
	if a.checkout == nil {
		return fault.Validation("stimulus %q needs a repo checkout, none configured", spec.Name)
	}
	ws, err := a.checkout.Checkout(ctx, spec.RepoName, repo.CheckoutOptions{})
	if err != nil {
		return err
	}
	if ws.Status == repo.StatusError {
		acq.Status = StatusError
		acq.Message = "checkout " + spec.RepoName + ": " + ws.Message
		return nil
	}
	acq.LocalPath = filepath.Join(ws.LocalPath, spec.Path)
	return nil
}

func (a *Acquirer) generate(ctx context.Context, spec Spec, acq *Acquisition) error {
	dir := filepath.Join(a.root, spec.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create stimulus dir %q: %w", dir, err)
	}
	res, err := a.exec.Execute(ctx, shell.Command{Line: spec.GenCmd, Dir: dir})
	if err != nil {
		return err
	}
	if !res.Success() {
		acq.Status = StatusError
		acq.Message = fmt.Sprintf("generator failed (rc=%d): %s", res.ExitCode, shell.Truncate(res.Stderr))
		return nil
	}
	acq.LocalPath = dir
	if spec.Path != "" {
		acq.LocalPath = filepath.Join(dir, spec.Path)
	}
	return nil
}

func (a *Acquirer) download(ctx context.Context, spec Spec, acq *Acquisition) error {
	dir := filepath.Join(a.root, spec.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create stimulus dir %q: %w", dir, err)
	}
	dest := filepath.Join(dir, baseName(spec.URL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL, nil)
	if err != nil {
		return fmt.Errorf("build download request %q: %w", spec.URL, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		acq.Status = StatusError
		acq.Message = err.Error()
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		acq.Status = StatusError
		acq.Message = fmt.Sprintf("download %q: status %d", spec.URL, resp.StatusCode)
		return nil
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %q: %w", dest, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("write %q: %w", dest, err)
	}
	acq.LocalPath = dest
	return nil
}

// verify hashes regular files and compares against the declared checksum.
// Directory stimuli are accepted as-is.
func (a *Acquirer) verify(spec Spec, acq *Acquisition) error {
	info, err := os.Stat(acq.LocalPath)
	if err != nil {
		return fmt.Errorf("stimulus %q missing at %q: %w", spec.Name, acq.LocalPath, err)
	}
	if info.IsDir() {
		return nil
	}
	sum, err := fileSHA256(acq.LocalPath)
	if err != nil {
		return err
	}
	acq.Checksum = sum
	if spec.Checksum != "" && spec.Checksum != sum {
		return fault.Validation("stimulus %q checksum mismatch: want %s, got %s", spec.Name, spec.Checksum, sum)
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %q: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func baseName(url string) string {
	base := filepath.Base(url)
	if base == "." || base == "/" {
		return "download"
	}
	return base
}

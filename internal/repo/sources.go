package repo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/verikit/verikit/internal/fault"
	"github.com/verikit/verikit/internal/shell"
)

// safeRefPattern rejects refs carrying shell metacharacters before any
// process is spawned.
var safeRefPattern = regexp.MustCompile(`^[a-zA-Z0-9_./@\-]+$`)

// ValidateRef checks a ref against the safe-character allowlist.
func ValidateRef(ref string) error {
	if ref != "" && !safeRefPattern.MatchString(ref) {
		return fault.Validation("ref %q contains illegal characters", ref)
	}
	return nil
}

type gitSource struct {
	exec shell.Executor
	log  *slog.Logger
}

func (g gitSource) checkout(ctx context.Context, spec Spec, ref, dir string) (Workspace, error) {
	if err := ValidateRef(ref); err != nil {
		return Workspace{Spec: spec, Status: StatusError}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Workspace{Spec: spec, Status: StatusError, Message: err.Error()}, nil
	}
	ws := Workspace{Spec: spec, LocalPath: dir, Status: StatusPending}

	if err := g.cloneOrFetch(ctx, spec.URL, ref, dir); err != nil {
		ws.Status = StatusError
		ws.Message = err.Error()
		g.log.Error("git checkout failed", "repo", spec.Name, "ref", ref, "err", err)
		return ws, nil
	}
	ws.Revision = g.revision(ctx, dir)
	ws.Status = StatusUpdated
	g.log.Info("git workspace ready", "repo", spec.Name, "ref", ref, "path", dir, "revision", ws.Revision)
	return ws, nil
}

func (g gitSource) cloneOrFetch(ctx context.Context, url, ref, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return g.fetchCheckout(ctx, ref, dir)
	}

	// shallow clone first, full clone as fallback
	res, err := g.exec.Execute(ctx, shell.Command{
		Line: fmt.Sprintf("git clone --depth 1 --branch %s %q %q", ref, url, dir),
	})
	if err == nil && res.Success() {
		return nil
	}
	res, err = g.exec.Execute(ctx, shell.Command{
		Line: fmt.Sprintf("git clone %q %q", url, dir),
	})
	if err != nil {
		return err
	}
	if !res.Success() {
		return fault.Execution("git clone failed (rc=%d): %s", res.ExitCode, shell.Truncate(res.Stderr))
	}
	res, err = g.exec.Execute(ctx, shell.Command{
		Line: "git checkout " + ref,
		Dir:  dir,
	})
	if err != nil {
		return err
	}
	if !res.Success() {
		return fault.Execution("git checkout failed (rc=%d): %s", res.ExitCode, shell.Truncate(res.Stderr))
	}
	return nil
}

func (g gitSource) fetchCheckout(ctx context.Context, ref, dir string) error {
	res, err := g.exec.Execute(ctx, shell.Command{
		Line: "git fetch --depth 1 origin " + ref,
		Dir:  dir,
	})
	if err != nil {
		return err
	}
	if !res.Success() {
		return fault.Execution("git fetch failed (rc=%d): %s", res.ExitCode, shell.Truncate(res.Stderr))
	}
	res, err = g.exec.Execute(ctx, shell.Command{
		Line: "git checkout FETCH_HEAD",
		Dir:  dir,
	})
	if err != nil {
		return err
	}
	if !res.Success() {
		return fault.Execution("git checkout failed (rc=%d): %s", res.ExitCode, shell.Truncate(res.Stderr))
	}
	return nil
}

func (g gitSource) revision(ctx context.Context, dir string) string {
	res, err := g.exec.Execute(ctx, shell.Command{Line: "git rev-parse HEAD", Dir: dir})
	if err != nil || !res.Success() {
		return ""
	}
	sha := strings.TrimSpace(res.Stdout)
	if len(sha) > 12 {
		sha = sha[:12]
	}
	return sha
}

type tarSource struct {
	client *http.Client
	log    *slog.Logger
}

func (t tarSource) checkout(ctx context.Context, spec Spec, ref, dir string) (Workspace, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Workspace{Spec: spec, Status: StatusError, Message: err.Error()}, nil
	}
	ws := Workspace{Spec: spec, LocalPath: dir, Status: StatusPending}

	src := spec.TarPath
	if src == "" && spec.TarURL != "" {
		local := filepath.Join(filepath.Dir(dir), spec.Name+".tar.gz")
		if err := download(ctx, t.client, spec.TarURL, "", local); err != nil {
			ws.Status = StatusError
			ws.Message = err.Error()
			t.log.Error("archive download failed", "repo", spec.Name, "err", err)
			return ws, nil
		}
		src = local
	}
	if src == "" {
		return ws, fault.Validation("tar repo %q needs tar_path or tar_url", spec.Name)
	}

	if err := extractArchive(src, dir); err != nil {
		ws.Status = StatusError
		ws.Message = err.Error()
		t.log.Error("archive extraction failed", "repo", spec.Name, "err", err)
		return ws, nil
	}
	ws.Status = StatusExtracted
	t.log.Info("archive workspace ready", "repo", spec.Name, "path", dir)
	return ws, nil
}

type apiSource struct {
	client *http.Client
	log    *slog.Logger
}

func (a apiSource) checkout(ctx context.Context, spec Spec, ref, dir string) (Workspace, error) {
	ws := Workspace{Spec: spec, LocalPath: dir, Status: StatusPending}
	if spec.APIURL == "" {
		return ws, fault.Validation("api repo %q has no api_url", spec.Name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		ws.Status = StatusError
		ws.Message = err.Error()
		return ws, nil
	}

	dest := filepath.Join(dir, baseNameFromURL(spec.APIURL))
	if err := download(ctx, a.client, spec.APIURL, spec.APIToken, dest); err != nil {
		ws.Status = StatusError
		ws.Message = err.Error()
		a.log.Error("api download failed", "repo", spec.Name, "err", err)
		return ws, nil
	}

	if looksLikeArchive(dest) {
		// a failure leaves the raw file in place unchanged
		if err := extractArchive(dest, dir); err != nil {
			a.log.Warn("downloaded payload is not extractable, keeping raw file",
				"repo", spec.Name, "file", dest, "err", err)
		}
	}
	ws.Status = StatusExtracted
	a.log.Info("api workspace ready", "repo", spec.Name, "path", dir)
	return ws, nil
}

func baseNameFromURL(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx != -1 {
		trimmed = trimmed[idx+1:]
	}
	if trimmed == "" {
		return "download"
	}
	return trimmed
}

func looksLikeArchive(name string) bool {
	switch filepath.Ext(name) {
	case ".gz", ".tgz", ".tar", ".bz2", ".xz":
		return true
	}
	return false
}

func download(ctx context.Context, client *http.Client, url, token, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request %q: %w", url, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %q: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fault.Execution("download %q: status %d", url, resp.StatusCode)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %q: %w", dest, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("write %q: %w", dest, err)
	}
	return nil
}

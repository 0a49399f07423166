package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/verikit/verikit/internal/shell"
)

// WorkspaceInfo describes one materialized workspace on disk.
type WorkspaceInfo struct {
	Repo     string `json:"repo"`
	Ref      string `json:"ref"`
	Path     string `json:"path"`
	Revision string `json:"revision,omitempty"`
	Kind     string `json:"kind"` // git | extracted
}

// ListWorkspaces walks the coordinator's root and reports every workspace
// found, probing git checkouts for their revision.
func (c *Coordinator) ListWorkspaces(ctx context.Context) ([]WorkspaceInfo, error) {
	repoDirs, err := os.ReadDir(c.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read workspace root %q: %w", c.root, err)
	}
	var out []WorkspaceInfo
	for _, repoDir := range repoDirs {
		if !repoDir.IsDir() {
			continue
		}
		refDirs, err := os.ReadDir(filepath.Join(c.root, repoDir.Name()))
		if err != nil {
			continue
		}
		for _, refDir := range refDirs {
			if !refDir.IsDir() {
				continue
			}
			path := filepath.Join(c.root, repoDir.Name(), refDir.Name())
			info := WorkspaceInfo{
				Repo: repoDir.Name(),
				Ref:  refDir.Name(),
				Path: path,
				Kind: "extracted",
			}
			if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
				info.Kind = "git"
				info.Revision = c.probeRevision(ctx, path)
			}
			out = append(out, info)
		}
	}
	return out, nil
}

func (c *Coordinator) probeRevision(ctx context.Context, dir string) string {
	res, err := c.exec.Execute(ctx, shell.Command{Line: "git rev-parse HEAD", Dir: dir})
	if err != nil || !res.Success() {
		return ""
	}
	sha := strings.TrimSpace(res.Stdout)
	if len(sha) > 12 {
		sha = sha[:12]
	}
	return sha
}

// CleanWorkspaces removes every on-disk workspace of the named repo and
// drops its cache entries. It returns the number of directories removed.
func (c *Coordinator) CleanWorkspaces(name string) (int, error) {
	repoDir := filepath.Join(c.root, name)
	entries, err := os.ReadDir(repoDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read workspace dir %q: %w", repoDir, err)
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := os.RemoveAll(filepath.Join(repoDir, e.Name())); err != nil {
			c.log.Warn("workspace removal failed", "repo", name, "dir", e.Name(), "err", err)
			continue
		}
		count++
	}
	c.ClearCache(name)
	c.log.Info("workspaces cleaned", "repo", name, "count", count)
	return count, nil
}

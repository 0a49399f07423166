// Package repo materializes repository snapshots into local workspaces.
// Three source kinds are supported: git checkouts, tar archives, and
// authenticated API downloads.
package repo

// SourceType selects the checkout adapter for a repository.
type SourceType string

const (
	SourceGit SourceType = "git"
	SourceTar SourceType = "tar"
	SourceAPI SourceType = "api"
)

// Workspace statuses.
const (
	StatusPending   = "pending"
	StatusUpdated   = "updated"
	StatusExtracted = "extracted"
	StatusError     = "error"
)

// Spec defines a registered repository.
type Spec struct {
	Name   string
	Source SourceType

	// git source
	URL  string
	Ref  string
	Path string // optional subdirectory inside the checkout

	// tar source
	TarPath string // local archive path
	TarURL  string // remote archive URL

	// api source
	APIURL   string
	APIToken string

	// post-checkout hooks
	SetupCmd string
	BuildCmd string
	Deps     []string // dependency package names resolved after checkout
}

// Workspace is a materialized repository at a resolved ref.
type Workspace struct {
	Spec      Spec
	LocalPath string
	Revision  string // resolved revision id, empty for non-git sources
	Status    string
	Message   string
}

// Package build compiles registered design targets and memoizes their
// results per (build name, resolved ref) so repeated orchestration steps
// over the same snapshot pay for one compile.
package build

import "time"

// Build statuses.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusCached  = "cached"
)

// Spec defines a registered build target.
type Spec struct {
	Name      string
	RepoName  string // optional repo providing the sources
	SetupCmd  string
	BuildCmd  string
	CleanCmd  string
	OutputDir string // artifact directory relative to the work dir
	Variables map[string]string
}

// Result captures one build attempt.
type Result struct {
	Spec       Spec
	RepoRef    string // resolved ref the sources were built at
	WorkDir    string
	OutputPath string
	Status     string
	Cached     bool
	Duration   time.Duration
	Message    string
}

// OK reports whether the build produced usable artifacts, fresh or cached.
func (r Result) OK() bool {
	return r.Status == StatusSuccess || r.Status == StatusCached
}

// Package env manages build and execution environments. Applying an
// environment yields a session holding the resolved variable set; the
// session moves through a small state machine until it is released or
// marked dead, and every state transition purges or keeps it accordingly.
package env

import "time"

// Build environment types.
const (
	BuildLocal  = "local"
	BuildRemote = "remote"
)

// Execution environment types.
const (
	ExeEDA         = "eda"
	ExeFPGA        = "fpga"
	ExeSilicon     = "silicon"
	ExeSameAsBuild = "same_as_build"
)

// Session statuses.
const (
	StatusPending  = "pending"
	StatusApplied  = "applied"
	StatusTimeout  = "timeout"
	StatusReleased = "released"
	StatusInvalid  = "invalid"
)

// BuildEnvSpec defines a registered build environment.
type BuildEnvSpec struct {
	Name string
	Type string // local | remote

	// remote targets
	Host    string
	Port    int
	User    string
	KeyPath string

	WorkDir   string
	Variables map[string]string
}

// ExeEnvSpec defines a registered execution environment.
type ExeEnvSpec struct {
	Name string
	Type string // eda | fpga | silicon | same_as_build

	// hardware farm access
	APIURL   string
	APIToken string

	// same_as_build linkage
	BuildEnvName string

	Tools     map[string]string // tool name to install home
	Licenses  map[string]string // license variable to server address
	Timeout   int               // seconds granted to commands under this environment
	Variables map[string]string
}

// Session is one applied environment pair. Vars accumulates the variables
// injected by each handler in application order.
type Session struct {
	ID       string
	BuildEnv string // applied build environment name, may be empty
	ExeEnv   string // applied execution environment name, may be empty
	Vars     map[string]string
	WorkDir  string
	Timeout  time.Duration
	Status   string
	Message  string
}

// Active reports whether the session can still run commands.
func (s *Session) Active() bool { return s.Status == StatusApplied }

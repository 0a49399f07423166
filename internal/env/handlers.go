package env

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/verikit/verikit/internal/fault"
)

// Handlers inject variables into a session when an environment is applied
// and undo external effects when it is released. Dispatch is by type tag;
// an unregistered tag never reaches a handler because the registries
// reject it at Put.

type buildHandler struct {
	apply   func(spec BuildEnvSpec, s *Session) error
	release func(spec BuildEnvSpec, s *Session) error
}

type exeHandler struct {
	apply   func(spec ExeEnvSpec, s *Session) error
	release func(spec ExeEnvSpec, s *Session) error
}

func noBuildRelease(BuildEnvSpec, *Session) error { return nil }
func noExeRelease(ExeEnvSpec, *Session) error     { return nil }

var buildHandlers = map[string]buildHandler{
	BuildLocal:  {apply: applyLocalBuild, release: noBuildRelease},
	BuildRemote: {apply: applyRemoteBuild, release: noBuildRelease},
}

var exeHandlers = map[string]exeHandler{
	ExeEDA:     {apply: applyWebAPI, release: noExeRelease},
	ExeFPGA:    {apply: applyWebAPI, release: noExeRelease},
	ExeSilicon: {apply: applyWebAPI, release: noExeRelease},
	// same_as_build is resolved by the manager before dispatch
}

func applyLocalBuild(spec BuildEnvSpec, s *Session) error {
	mergeVars(s, spec.Variables)
	work := spec.WorkDir
	if work == "" {
		work = filepath.Join("data", "workspaces", s.ID)
	}
	if err := os.MkdirAll(work, 0o755); err != nil {
		return fmt.Errorf("create work dir %q: %w", work, err)
	}
	s.WorkDir = work
	return nil
}

func applyRemoteBuild(spec BuildEnvSpec, s *Session) error {
	if spec.Host == "" {
		return fault.Validation("remote environment %q has no host", spec.Name)
	}
	mergeVars(s, spec.Variables)
	s.Vars["REMOTE_HOST"] = spec.Host
	s.Vars["REMOTE_PORT"] = strconv.Itoa(spec.Port)
	if spec.User != "" {
		s.Vars["REMOTE_USER"] = spec.User
	}
	if spec.KeyPath != "" {
		s.Vars["REMOTE_KEY_PATH"] = spec.KeyPath
	}
	if spec.WorkDir != "" {
		s.WorkDir = spec.WorkDir
	}
	return nil
}

// applyWebAPI serves eda, fpga, and silicon targets reached through a
// web API. Tool homes and license server variables become part of the
// session's resolved set.
func applyWebAPI(spec ExeEnvSpec, s *Session) error {
	if spec.APIURL == "" {
		return fault.Validation("%s environment %q has no api_url", spec.Type, spec.Name)
	}
	mergeVars(s, spec.Variables)
	s.Vars["API_URL"] = spec.APIURL
	if spec.APIToken != "" {
		s.Vars["API_TOKEN"] = spec.APIToken
	}
	for tool, home := range spec.Tools {
		s.Vars[toolHomeVar(tool)] = home
	}
	for k, v := range spec.Licenses {
		s.Vars[k] = v
	}
	return nil
}

// toolHomeVar maps a tool name to its conventional home variable, e.g.
// "vcs" to "VCS_HOME".
func toolHomeVar(tool string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, tool)
	return clean + "_HOME"
}

func mergeVars(s *Session, vars map[string]string) {
	if s.Vars == nil {
		s.Vars = map[string]string{}
	}
	for k, v := range vars {
		s.Vars[k] = v
	}
}

package env

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/verikit/verikit/internal/fault"
)

// Manager drives the environment lifecycle. Sessions live in memory for
// the process lifetime; released or dead sessions are purged immediately.
type Manager struct {
	builds *BuildRegistry
	exes   *ExeRegistry
	log    *slog.Logger

	sessions map[string]*Session
}

// NewManager creates a manager over the given registries.
func NewManager(builds *BuildRegistry, exes *ExeRegistry, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		builds:   builds,
		exes:     exes,
		log:      log,
		sessions: map[string]*Session{},
	}
}

// ApplyOptions name the environments to apply. Either may be empty; Extra
// variables win over handler-injected ones.
type ApplyOptions struct {
	BuildEnv string
	ExeEnv   string
	WorkDir  string
	Extra    map[string]string
}

// Apply resolves both environments, runs their handlers, and returns an
// applied session. A same_as_build execution environment pulls in its
// linked build environment automatically when none was named.
func (m *Manager) Apply(opts ApplyOptions) (*Session, error) {
	s := &Session{
		ID:      uuid.NewString()[:8],
		Vars:    map[string]string{},
		WorkDir: opts.WorkDir,
		Status:  StatusPending,
	}

	var exeSpec ExeEnvSpec
	if opts.ExeEnv != "" {
		spec, err := m.exes.Get(opts.ExeEnv)
		if err != nil {
			return nil, err
		}
		exeSpec = spec
		if spec.Type == ExeSameAsBuild && opts.BuildEnv == "" {
			opts.BuildEnv = spec.BuildEnvName
		}
	}

	if opts.BuildEnv != "" {
		spec, err := m.builds.Get(opts.BuildEnv)
		if err != nil {
			return nil, err
		}
		handler, ok := buildHandlers[spec.Type]
		if !ok {
			return nil, fault.Validation("no handler for build environment type %q", spec.Type)
		}
		if err := handler.apply(spec, s); err != nil {
			return nil, err
		}
		s.BuildEnv = spec.Name
	}

	if opts.ExeEnv != "" {
		if err := m.applyExe(exeSpec, s); err != nil {
			return nil, err
		}
		s.ExeEnv = exeSpec.Name
		if exeSpec.Timeout > 0 {
			s.Timeout = time.Duration(exeSpec.Timeout) * time.Second
		}
	}

	for k, v := range opts.Extra {
		s.Vars[k] = v
	}
	s.Status = StatusApplied
	m.sessions[s.ID] = s
	m.log.Info("environment applied",
		"session", s.ID, "build_env", s.BuildEnv, "exe_env", s.ExeEnv, "vars", len(s.Vars))
	return s, nil
}

func (m *Manager) applyExe(spec ExeEnvSpec, s *Session) error {
	if spec.Type == ExeSameAsBuild {
		// build handler already ran; the session must carry its result
		if s.BuildEnv == "" {
			return fault.Validation("execution environment %q requires an applied build environment", spec.Name)
		}
		mergeVars(s, spec.Variables)
		return nil
	}
	handler, ok := exeHandlers[spec.Type]
	if !ok {
		return fault.Validation("no handler for execution environment type %q", spec.Type)
	}
	return handler.apply(spec, s)
}

// Release tears the session down, execution environment first, then the
// build environment, and purges it. Releasing an unknown session is a
// NotFound error; releasing a dead one is a no-op.
func (m *Manager) Release(id string) error {
	s, ok := m.sessions[id]
	if !ok {
		return fault.NotFound("session %q not found", id)
	}
	defer delete(m.sessions, id)

	if s.Status != StatusApplied {
		return nil
	}
	if s.ExeEnv != "" {
		if spec, err := m.exes.Get(s.ExeEnv); err == nil {
			if handler, ok := exeHandlers[spec.Type]; ok {
				if err := handler.release(spec, s); err != nil {
					m.log.Warn("execution environment release failed", "session", id, "err", err)
				}
			}
		}
	}
	if s.BuildEnv != "" {
		if spec, err := m.builds.Get(s.BuildEnv); err == nil {
			if handler, ok := buildHandlers[spec.Type]; ok {
				if err := handler.release(spec, s); err != nil {
					m.log.Warn("build environment release failed", "session", id, "err", err)
				}
			}
		}
	}
	s.Status = StatusReleased
	m.log.Info("environment released", "session", id)
	return nil
}

// MarkTimeout records that a command under the session ran out of time.
// The session is purged without running release handlers; the remote side
// is assumed unreachable.
func (m *Manager) MarkTimeout(id string) {
	if s, ok := m.sessions[id]; ok {
		s.Status = StatusTimeout
		delete(m.sessions, id)
		m.log.Warn("session timed out", "session", id)
	}
}

// MarkInvalid records an unrecoverable session fault and purges it.
func (m *Manager) MarkInvalid(id, reason string) {
	if s, ok := m.sessions[id]; ok {
		s.Status = StatusInvalid
		s.Message = reason
		delete(m.sessions, id)
		m.log.Warn("session invalidated", "session", id, "reason", reason)
	}
}

// Session returns a live session by id.
func (m *Manager) Session(id string) (*Session, bool) {
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions lists live sessions ordered by id.
func (m *Manager) Sessions() []*Session {
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

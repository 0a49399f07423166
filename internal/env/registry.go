package env

import (
	"github.com/verikit/verikit/internal/fault"
	"github.com/verikit/verikit/internal/registry"
)

// BuildRegistry stores build environment specs.
type BuildRegistry struct {
	store *registry.Store
}

// OpenBuildRegistry loads the build_envs section of the given file.
func OpenBuildRegistry(path string) (*BuildRegistry, error) {
	store, err := registry.Open(path, "build_envs")
	if err != nil {
		return nil, err
	}
	return &BuildRegistry{store: store}, nil
}

// Get returns the named spec, or a NotFound error.
func (r *BuildRegistry) Get(name string) (BuildEnvSpec, error) {
	entry, ok := r.store.Get(name)
	if !ok {
		return BuildEnvSpec{}, fault.NotFound("build environment %q not registered", name)
	}
	spec := BuildEnvSpec{
		Name:      name,
		Type:      entry.String("type"),
		Host:      entry.String("host"),
		Port:      entry.Int("port", 22),
		User:      entry.String("user"),
		KeyPath:   entry.String("key_path"),
		WorkDir:   entry.String("work_dir"),
		Variables: entry.StringMap("variables"),
	}
	if spec.Type == "" {
		spec.Type = BuildLocal
	}
	return spec, nil
}

// Names lists registered build environment names.
func (r *BuildRegistry) Names() []string { return r.store.Names() }

// Put validates the type tag and stores the spec. An unknown tag is
// rejected here rather than at apply time.
func (r *BuildRegistry) Put(spec BuildEnvSpec) error {
	if spec.Name == "" {
		return fault.Validation("build environment name is required")
	}
	switch spec.Type {
	case BuildLocal, BuildRemote:
	case "":
		spec.Type = BuildLocal
	default:
		return fault.Validation("unknown build environment type %q", spec.Type)
	}
	if spec.Type == BuildRemote && spec.Host == "" {
		return fault.Validation("remote build environment %q needs a host", spec.Name)
	}
	entry := registry.Entry{
		"type":     spec.Type,
		"host":     spec.Host,
		"user":     spec.User,
		"key_path": spec.KeyPath,
		"work_dir": spec.WorkDir,
	}
	if spec.Port != 0 {
		entry["port"] = spec.Port
	}
	if len(spec.Variables) > 0 {
		entry["variables"] = spec.Variables
	}
	return r.store.Put(spec.Name, entry)
}

// Remove deletes a spec, reporting whether it existed.
func (r *BuildRegistry) Remove(name string) (bool, error) {
	return r.store.Remove(name)
}

// ExeRegistry stores execution environment specs.
type ExeRegistry struct {
	store *registry.Store
}

// OpenExeRegistry loads the exe_envs section of the given file.
func OpenExeRegistry(path string) (*ExeRegistry, error) {
	store, err := registry.Open(path, "exe_envs")
	if err != nil {
		return nil, err
	}
	return &ExeRegistry{store: store}, nil
}

// Get returns the named spec, or a NotFound error.
func (r *ExeRegistry) Get(name string) (ExeEnvSpec, error) {
	entry, ok := r.store.Get(name)
	if !ok {
		return ExeEnvSpec{}, fault.NotFound("execution environment %q not registered", name)
	}
	return ExeEnvSpec{
		Name:         name,
		Type:         entry.String("type"),
		APIURL:       entry.String("api_url"),
		APIToken:     entry.String("api_token"),
		BuildEnvName: entry.String("build_env"),
		Tools:        entry.StringMap("tools"),
		Licenses:     entry.StringMap("licenses"),
		Timeout:      entry.Int("timeout", 0),
		Variables:    entry.StringMap("variables"),
	}, nil
}

// Names lists registered execution environment names.
func (r *ExeRegistry) Names() []string { return r.store.Names() }

// Put validates the type tag and stores the spec.
func (r *ExeRegistry) Put(spec ExeEnvSpec) error {
	if spec.Name == "" {
		return fault.Validation("execution environment name is required")
	}
	switch spec.Type {
	case ExeEDA, ExeFPGA, ExeSilicon:
	case ExeSameAsBuild:
		if spec.BuildEnvName == "" {
			return fault.Validation("execution environment %q links no build environment", spec.Name)
		}
	default:
		return fault.Validation("unknown execution environment type %q", spec.Type)
	}
	entry := registry.Entry{
		"type":      spec.Type,
		"api_url":   spec.APIURL,
		"api_token": spec.APIToken,
		"build_env": spec.BuildEnvName,
	}
	if len(spec.Tools) > 0 {
		entry["tools"] = spec.Tools
	}
	if len(spec.Licenses) > 0 {
		entry["licenses"] = spec.Licenses
	}
	if spec.Timeout != 0 {
		entry["timeout"] = spec.Timeout
	}
	if len(spec.Variables) > 0 {
		entry["variables"] = spec.Variables
	}
	return r.store.Put(spec.Name, entry)
}

// Remove deletes a spec, reporting whether it existed.
func (r *ExeRegistry) Remove(name string) (bool, error) {
	return r.store.Remove(name)
}

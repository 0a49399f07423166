package build

import (
	"github.com/verikit/verikit/internal/fault"
	"github.com/verikit/verikit/internal/registry"
)

// Registry stores build specs in a YAML registry file.
type Registry struct {
	store *registry.Store
}

// OpenRegistry loads the builds section of the given file.
func OpenRegistry(path string) (*Registry, error) {
	store, err := registry.Open(path, "builds")
	if err != nil {
		return nil, err
	}
	return &Registry{store: store}, nil
}

// Get returns the named spec, or a NotFound error.
func (r *Registry) Get(name string) (Spec, error) {
	entry, ok := r.store.Get(name)
	if !ok {
		return Spec{}, fault.NotFound("build %q not registered", name)
	}
	return Spec{
		Name:      name,
		RepoName:  entry.String("repo"),
		SetupCmd:  entry.String("setup_cmd"),
		BuildCmd:  entry.String("build_cmd"),
		CleanCmd:  entry.String("clean_cmd"),
		OutputDir: entry.String("output_dir"),
		Variables: entry.StringMap("variables"),
	}, nil
}

// Names lists registered build names.
func (r *Registry) Names() []string { return r.store.Names() }

// Put validates and stores a spec.
func (r *Registry) Put(spec Spec) error {
	if spec.Name == "" {
		return fault.Validation("build name is required")
	}
	if spec.BuildCmd == "" {
		return fault.Validation("build %q has no build_cmd", spec.Name)
	}
	entry := registry.Entry{
		"repo":       spec.RepoName,
		"setup_cmd":  spec.SetupCmd,
		"build_cmd":  spec.BuildCmd,
		"clean_cmd":  spec.CleanCmd,
		"output_dir": spec.OutputDir,
	}
	if len(spec.Variables) > 0 {
		entry["variables"] = spec.Variables
	}
	return r.store.Put(spec.Name, entry)
}

// Remove deletes a spec, reporting whether it existed.
func (r *Registry) Remove(name string) (bool, error) {
	return r.store.Remove(name)
}

package repo

import (
	"github.com/verikit/verikit/internal/fault"
	"github.com/verikit/verikit/internal/registry"
)

// Registry stores repository specs in a YAML registry file.
type Registry struct {
	store *registry.Store
}

// OpenRegistry loads the repos section of the given file.
func OpenRegistry(path string) (*Registry, error) {
	store, err := registry.Open(path, "repos")
	if err != nil {
		return nil, err
	}
	return &Registry{store: store}, nil
}

// Get returns the named spec, or a NotFound error.
func (r *Registry) Get(name string) (Spec, error) {
	entry, ok := r.store.Get(name)
	if !ok {
		return Spec{}, fault.NotFound("repo %q not registered", name)
	}
	return decodeSpec(name, entry), nil
}

// Names lists registered repo names.
func (r *Registry) Names() []string { return r.store.Names() }

// Put validates and stores a spec.
func (r *Registry) Put(spec Spec) error {
	if spec.Name == "" {
		return fault.Validation("repo name is required")
	}
	switch spec.Source {
	case SourceGit, SourceTar, SourceAPI:
	case "":
		spec.Source = SourceGit
	default:
		return fault.Validation("unsupported repo source type %q", spec.Source)
	}
	return r.store.Put(spec.Name, encodeSpec(spec))
}

// Remove deletes a spec, reporting whether it existed.
func (r *Registry) Remove(name string) (bool, error) {
	return r.store.Remove(name)
}

func decodeSpec(name string, e registry.Entry) Spec {
	spec := Spec{
		Name:     name,
		Source:   SourceType(e.String("source_type")),
		URL:      e.String("url"),
		Ref:      e.String("ref"),
		Path:     e.String("path"),
		TarPath:  e.String("tar_path"),
		TarURL:   e.String("tar_url"),
		APIURL:   e.String("api_url"),
		APIToken: e.String("api_token"),
		SetupCmd: e.String("setup_cmd"),
		BuildCmd: e.String("build_cmd"),
		Deps:     e.StringList("deps"),
	}
	if spec.Source == "" {
		spec.Source = SourceGit
	}
	if spec.Ref == "" {
		spec.Ref = "main"
	}
	return spec
}

func encodeSpec(spec Spec) registry.Entry {
	return registry.Entry{
		"source_type": string(spec.Source),
		"url":         spec.URL,
		"ref":         spec.Ref,
		"path":        spec.Path,
		"tar_path":    spec.TarPath,
		"tar_url":     spec.TarURL,
		"api_url":     spec.APIURL,
		"api_token":   spec.APIToken,
		"setup_cmd":   spec.SetupCmd,
		"build_cmd":   spec.BuildCmd,
		"deps":        spec.Deps,
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config captures orchestration settings sourced from the config file or flags.
type Config struct {
	WorkspaceDir string `yaml:"workspace_dir"`
	SuiteDir     string `yaml:"suite_dir"`
	HistoryFile  string `yaml:"history_file"`

	ReposFile   string `yaml:"repos_file"`
	BuildsFile  string `yaml:"builds_file"`
	EnvsFile    string `yaml:"envs_file"`
	StimuliFile string `yaml:"stimuli_file"`

	Parallel int `yaml:"parallel"`

	Resource ResourceConfig `yaml:"resource"`

	Format  string `yaml:"format"`
	Verbose bool   `yaml:"verbose"`
}

// ResourceConfig controls the admission controller.
type ResourceConfig struct {
	Mode     string `yaml:"mode"` // self | api
	Capacity int    `yaml:"capacity"`
	APIURL   string `yaml:"api_url"`
}

const (
	// ResourceSelf selects the in-process capacity counter.
	ResourceSelf = "self"
	// ResourceAPI delegates capacity queries to a remote endpoint.
	ResourceAPI = "api"

	// FormatPretty renders human readable output.
	FormatPretty = "pretty"
	// FormatJSON renders machine readable output.
	FormatJSON = "json"
)

// Default returns the baseline configuration used when no flags or config file specify values.
func Default() Config {
	return Config{
		WorkspaceDir: "data/workspaces",
		SuiteDir:     "data/suites",
		HistoryFile:  "data/history.json",
		ReposFile:    "data/repos.yml",
		BuildsFile:   "data/builds.yml",
		EnvsFile:     "data/envs.yml",
		StimuliFile:  "data/stimuli.yml",
		Parallel:     1,
		Resource: ResourceConfig{
			Mode:     ResourceSelf,
			Capacity: 8,
		},
		Format: FormatPretty,
	}
}

// Load reads .verikit.yml from the project root when present. Missing files are ignored.
func Load(root string) (Config, error) {
	cfg := Default()
	path := filepath.Join(root, ".verikit.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	cfg = merge(cfg, fileCfg)
	return cfg, nil
}

func merge(base, override Config) Config {
	out := base

	if override.WorkspaceDir != "" {
		out.WorkspaceDir = override.WorkspaceDir
	}
	if override.SuiteDir != "" {
		out.SuiteDir = override.SuiteDir
	}
	if override.HistoryFile != "" {
		out.HistoryFile = override.HistoryFile
	}
	if override.ReposFile != "" {
		out.ReposFile = override.ReposFile
	}
	if override.BuildsFile != "" {
		out.BuildsFile = override.BuildsFile
	}
	if override.EnvsFile != "" {
		out.EnvsFile = override.EnvsFile
	}
	if override.StimuliFile != "" {
		out.StimuliFile = override.StimuliFile
	}
	if override.Parallel > 0 {
		out.Parallel = override.Parallel
	}
	if override.Resource.Mode != "" {
		out.Resource.Mode = override.Resource.Mode
	}
	if override.Resource.Capacity > 0 {
		out.Resource.Capacity = override.Resource.Capacity
	}
	if override.Resource.APIURL != "" {
		out.Resource.APIURL = override.Resource.APIURL
	}
	if override.Format != "" {
		out.Format = override.Format
	}
	if override.Verbose {
		out.Verbose = true
	}

	return out
}

// ApplyFlags mutates cfg by applying values from CLI flags when they are present.
func ApplyFlags(cfg *Config, flags FlagValues) {
	if flags.Parallel.Set {
		cfg.Parallel = flags.Parallel.Value
	}
	if flags.Format.Set {
		cfg.Format = flags.Format.Value
	}
	if flags.Verbose.Set {
		cfg.Verbose = flags.Verbose.Value
	}
	if flags.WorkspaceDir.Set {
		cfg.WorkspaceDir = flags.WorkspaceDir.Value
	}
}

// FlagValues captures CLI flag state with knowledge of whether each flag was set explicitly.
type FlagValues struct {
	Parallel     IntFlag
	Format       StringFlag
	Verbose      BoolFlag
	WorkspaceDir StringFlag
}

// StringFlag represents a string flag and whether it was set.
type StringFlag struct {
	Value string
	Set   bool
}

// IntFlag represents an int flag and whether it was set.
type IntFlag struct {
	Value int
	Set   bool
}

// BoolFlag represents a bool flag and whether it was set.
type BoolFlag struct {
	Value bool
	Set   bool
}

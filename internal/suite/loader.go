package suite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/verikit/verikit/internal/fault"
	"gopkg.in/yaml.v3"
)

// Loader reads suite definition files from a directory. A suite file is
// named <suite>.yml and holds a `testcases` list.
type Loader struct {
	dir string
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

type suiteFile struct {
	Testcases []Case `yaml:"testcases"`
}

// Load reads the named suite's cases.
func (l *Loader) Load(name string) ([]Case, error) {
	path := filepath.Join(l.dir, name+".yml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fault.NotFound("suite %q not found under %q", name, l.dir)
		}
		return nil, fmt.Errorf("read suite %q: %w", path, err)
	}
	var sf suiteFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse suite %q: %w", path, err)
	}
	for i, c := range sf.Testcases {
		if c.Name == "" {
			return nil, fault.Validation("suite %q: testcase %d has no name", name, i)
		}
		if sf.Testcases[i].Timeout <= 0 {
			sf.Testcases[i].Timeout = 3600
		}
	}
	return sf.Testcases, nil
}

// Discover lists suite names available under the loader's directory.
func (l *Loader) Discover() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read suite dir %q: %w", l.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base := e.Name()
		if strings.HasSuffix(base, ".yml") {
			names = append(names, strings.TrimSuffix(base, ".yml"))
		} else if strings.HasSuffix(base, ".yaml") {
			names = append(names, strings.TrimSuffix(base, ".yaml"))
		}
	}
	sort.Strings(names)
	return names, nil
}

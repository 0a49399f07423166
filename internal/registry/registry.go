// Package registry implements the YAML-file stores backing every entity
// class (repos, builds, environments, stimuli). One file holds one named
// section mapping entity name to a record; writes persist immediately.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Entry is one stored record. Values are decoded YAML scalars, lists, or
// nested maps; typed wrappers in the entity packages interpret them.
type Entry map[string]any

// Store is a single-section YAML registry.
type Store struct {
	path    string
	section string
	data    map[string]map[string]Entry
}

// Open loads the registry file, creating an empty store when the file does
// not exist yet.
func Open(path, section string) (*Store, error) {
	s := &Store{
		path:    path,
		section: section,
		data:    map[string]map[string]Entry{},
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read registry %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse registry %q: %w", path, err)
	}
	return s, nil
}

func (s *Store) entries() map[string]Entry {
	if s.data[s.section] == nil {
		s.data[s.section] = map[string]Entry{}
	}
	return s.data[s.section]
}

// Get returns the entry under name.
func (s *Store) Get(name string) (Entry, bool) {
	e, ok := s.entries()[name]
	return e, ok
}

// Names lists stored entity names in sorted order.
func (s *Store) Names() []string {
	entries := s.entries()
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Put stores the entry under name and persists the file.
func (s *Store) Put(name string, entry Entry) error {
	s.entries()[name] = entry
	return s.save()
}

// Remove deletes the entry, reporting whether it existed.
func (s *Store) Remove(name string) (bool, error) {
	entries := s.entries()
	if _, ok := entries[name]; !ok {
		return false, nil
	}
	delete(entries, name)
	return true, s.save()
}

func (s *Store) save() error {
	out, err := yaml.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("encode registry %q: %w", s.path, err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create registry dir %q: %w", dir, err)
		}
	}
	if err := os.WriteFile(s.path, out, 0o644); err != nil {
		return fmt.Errorf("write registry %q: %w", s.path, err)
	}
	return nil
}

// String reads a string field, returning "" when absent or wrongly typed.
func (e Entry) String(key string) string {
	v, _ := e[key].(string)
	return v
}

// Int reads an integer field, falling back when absent.
func (e Entry) Int(key string, fallback int) int {
	switch v := e[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// StringMap reads a nested string map field.
func (e Entry) StringMap(key string) map[string]string {
	out := map[string]string{}
	switch m := e[key].(type) {
	case map[string]any:
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	case map[string]string:
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// StringList reads a list-of-strings field.
func (e Entry) StringList(key string) []string {
	var out []string
	switch l := e[key].(type) {
	case []any:
		for _, v := range l {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, l...)
	}
	return out
}

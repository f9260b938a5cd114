// Package modes holds the generation-mode catalogue. Built-in modes are
// embedded; operators may add or override modes from a directory of YAML
// manifests.
package modes

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// ErrUnknownMode is returned when a plan references a mode that is not registered.
var ErrUnknownMode = errors.New("unknown generation mode")

// Registry holds generation modes indexed by name.
type Registry struct {
	modes       map[string]*Mode
	defaultMode string
}

// NewRegistry creates an empty registry resolving "" to defaultMode.
func NewRegistry(defaultMode string) *Registry {
	return &Registry{modes: make(map[string]*Mode), defaultMode: defaultMode}
}

// Register adds a mode. A duplicate name is an error.
func (r *Registry) Register(m *Mode) error {
	if _, exists := r.modes[m.Name]; exists {
		return fmt.Errorf("mode already registered: %s", m.Name)
	}
	if err := m.compileSchema(); err != nil {
		return fmt.Errorf("mode %s: %w", m.Name, err)
	}
	r.modes[m.Name] = m
	return nil
}

// Get looks up a mode by exact name.
func (r *Registry) Get(name string) (*Mode, bool) {
	m, ok := r.modes[name]
	return m, ok
}

// Resolve returns the named mode, or the default mode for an empty name.
func (r *Registry) Resolve(name string) (*Mode, error) {
	if name == "" {
		name = r.defaultMode
	}
	m, ok := r.modes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	return m, nil
}

// List returns all modes sorted by name.
func (r *Registry) List() []*Mode {
	list := make([]*Mode, 0, len(r.modes))
	for _, m := range r.modes {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Count returns the number of registered modes.
func (r *Registry) Count() int {
	return len(r.modes)
}

// Load builds a registry from the embedded defaults, then applies manifests
// from dir when it is set. A directory manifest replaces a built-in of the
// same name.
func Load(dir, defaultMode string, logger *slog.Logger) (*Registry, error) {
	modes, err := builtins(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load built-in modes: %w", err)
	}

	if dir != "" {
		extra, err := Discover(os.DirFS(dir), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to read modes directory: %w", err)
		}
		byName := make(map[string]int, len(modes))
		for i, m := range modes {
			byName[m.Name] = i
		}
		for _, m := range extra {
			if i, ok := byName[m.Name]; ok {
				modes[i] = m
				continue
			}
			byName[m.Name] = len(modes)
			modes = append(modes, m)
		}
	}

	registry := NewRegistry(defaultMode)
	for _, m := range modes {
		if err := registry.Register(m); err != nil {
			logger.Warn("skipping generation mode", "mode", m.Name, "error", err)
		}
	}

	if _, err := registry.Resolve(""); err != nil {
		return nil, fmt.Errorf("default generation mode: %w", err)
	}
	logger.Info("generation modes loaded", "count", registry.Count(), "default", defaultMode)
	return registry, nil
}

package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/openmark/openmark/pkg/logger"
)

// ErrPluginNotFound is returned by Create for unregistered names.
var ErrPluginNotFound = errors.New("plugin not found")

// ConstructionError wraps a factory failure (bad config, unreachable
// dependency). Construction is never retried; the caller decides.
type ConstructionError struct {
	Family Family
	Name   string
	Err    error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("constructing %s plugin %q: %v", e.Family, e.Name, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// Factory builds a plugin instance from its configuration blob.
type Factory func(cfg Config) (any, error)

// Descriptor is the static (family, name, factory) triple a plugin module
// exposes. Built-ins are collected at startup by the builtin package;
// operator builds may append their own descriptor slices.
type Descriptor struct {
	Family  Family
	Name    string
	Factory Factory
}

// Registry is the process-wide catalogue of constructible plugins.
// Registration happens during single-threaded startup (and in tests);
// Create and ListNames are safe for concurrent readers afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[Family]map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[Family]map[string]Factory)}
}

// Register adds a factory under (family, name). An existing entry with the
// same key is overwritten: last registration wins, which lets externally
// supplied plugins shadow built-ins of the same derived name.
func (r *Registry) Register(family Family, name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byName, ok := r.entries[family]
	if !ok {
		byName = make(map[string]Factory)
		r.entries[family] = byName
	}
	byName[name] = f
}

// Discover registers every descriptor from the given sources in order:
// built-ins first, then external/custom sets. A nil or empty source is
// fine (no custom plugins configured). A descriptor with an empty name or
// nil factory is skipped with a warning rather than failing startup.
func (r *Registry) Discover(sources ...[]Descriptor) {
	for _, src := range sources {
		for _, d := range src {
			if d.Name == "" || d.Factory == nil {
				logger.Warnf("skipping unusable %s plugin descriptor %q", d.Family, d.Name)
				continue
			}
			r.Register(d.Family, d.Name, d.Factory)
			logger.Debugf("registered %s plugin %q", d.Family, d.Name)
		}
	}
}

// Create instantiates the named plugin with the given configuration.
func (r *Registry) Create(family Family, name string, cfg Config) (any, error) {
	r.mu.RLock()
	f, ok := r.entries[family][name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s (available: %v)", ErrPluginNotFound, family, name, r.ListNames(family))
	}
	// the factory may dial remote backends; never hold the lock across it
	inst, err := f(cfg)
	if err != nil {
		return nil, &ConstructionError{Family: family, Name: name, Err: err}
	}
	return inst, nil
}

// ListNames returns the registered names for a family, sorted. Diagnostics
// only, not on any hot path.
func (r *Registry) ListNames(family Family) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries[family]))
	for name := range r.entries[family] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

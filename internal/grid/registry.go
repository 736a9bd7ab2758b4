// ABOUTME: Registry of named grid sessions created on first use.
// ABOUTME: Each name maps to its own independent grid; there is no process-wide instance.

package grid

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrInvalidName  = errors.New("invalid grid name")
	ErrTooManyGrids = errors.New("grid limit reached")
)

// Factory builds the grid for a name.
type Factory func(name string) (*Grid, error)

// Registry holds grids by name.
type Registry struct {
	mu      sync.Mutex
	grids   map[string]*Grid
	factory Factory
	allowed map[string]struct{}
	max     int
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithAllowedNames restricts the registry to names. An empty list allows any valid name.
func WithAllowedNames(names ...string) RegistryOption {
	return func(r *Registry) {
		if len(names) == 0 {
			r.allowed = nil
			return
		}
		r.allowed = make(map[string]struct{}, len(names))
		for _, n := range names {
			r.allowed[n] = struct{}{}
		}
	}
}

// WithMaxGrids caps how many grids may exist. Zero or less means no cap.
func WithMaxGrids(n int) RegistryOption {
	return func(r *Registry) { r.max = n }
}

// NewRegistry creates a registry that builds grids with factory.
func NewRegistry(factory Factory, opts ...RegistryOption) *Registry {
	r := &Registry{
		grids:   make(map[string]*Grid),
		factory: factory,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the grid for name, creating it on first use. Names outside the
// allow-list are ErrInvalidName; a new name past the cap is ErrTooManyGrids.
func (r *Registry) Get(name string) (*Grid, error) {
	if !validName(name) {
		return nil, ErrInvalidName
	}
	if r.allowed != nil {
		if _, ok := r.allowed[name]; !ok {
			return nil, ErrInvalidName
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.grids[name]; ok {
		return g, nil
	}
	if r.max > 0 && len(r.grids) >= r.max {
		return nil, ErrTooManyGrids
	}
	g, err := r.factory(name)
	if err != nil {
		return nil, err
	}
	r.grids[name] = g
	return g, nil
}

// Names lists the grids created so far.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.grids))
	for name := range r.grids {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every grid and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, g := range r.grids {
		g.Close()
		delete(r.grids, name)
	}
}

// validName accepts 1-64 letters, digits, '-' or '_'.
func validName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// Package render defines the tile renderer contract, a registry that builds
// renderers from serializable specs, and the recursive parent-filling
// decorator that guarantees ancestor tiles exist.
package render

import (
	"fmt"
	"sort"
	"sync"
)

// Renderer produces the encoded image bytes for a tile. Tile content must be
// a deterministic function of the coordinate: rendering the same coordinate
// twice is always safe.
type Renderer interface {
	Render(level, x, y int) ([]byte, error)
}

// ParallelCapable is an optional renderer capability. The batch coordinator
// forces a single worker when a renderer reports false.
type ParallelCapable interface {
	SupportsParallelRendering() bool
}

// SupportsParallel reports a renderer's parallel capability, defaulting to
// true for renderers that don't declare one.
func SupportsParallel(r Renderer) bool {
	if pc, ok := r.(ParallelCapable); ok {
		return pc.SupportsParallelRendering()
	}
	return true
}

// Spec is a serializable renderer construction recipe. Batch workers build
// their own instances from it instead of sharing one, so renderers holding
// native resources never cross worker boundaries.
type Spec struct {
	Name     string            `yaml:"name" json:"name"`
	TileSize int               `yaml:"tile_size,omitempty" json:"tile_size,omitempty"`
	Options  map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
}

// Factory builds a renderer from a spec.
type Factory func(spec Spec) (Renderer, error)

// Registry maps renderer names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in renderers registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("debug", newDebugRenderer)
	r.Register("solid", newSolidRenderer)
	r.Register("gradient", newGradientRenderer)
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New instantiates a renderer from a spec.
func (r *Registry) New(spec Spec) (Renderer, error) {
	r.mu.RLock()
	f, ok := r.factories[spec.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown renderer %q (have %v)", spec.Name, r.Names())
	}
	return f(spec)
}

// Names lists registered renderer names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

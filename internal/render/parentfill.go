package render

import (
	"fmt"

	"github.com/deepzoom-tiles/server/internal/tiles"
)

// ParentFiller decorates a renderer so that rendering a tile guarantees every
// strict ancestor down to level 0 exists on disk before the tile itself is
// rendered. Ancestors are persisted through the store's atomic write, so
// concurrent callers racing on the same missing ancestor may duplicate work
// but never produce a partial or corrupt file.
//
// The leaf tile's own bytes are returned to the caller unpersisted; the
// filler only writes tiles it rendered as someone's parent.
type ParentFiller struct {
	store    *tiles.Store
	renderer Renderer
}

// NewParentFiller wraps renderer with the ancestor guarantee against store.
func NewParentFiller(store *tiles.Store, renderer Renderer) *ParentFiller {
	return &ParentFiller{store: store, renderer: renderer}
}

// Render implements Renderer.
func (f *ParentFiller) Render(level, x, y int) ([]byte, error) {
	c := tiles.Coord{Level: level, X: x, Y: y}
	if parent, ok := c.Parent(); ok && !f.store.Exists(parent) {
		data, err := f.Render(parent.Level, parent.X, parent.Y)
		if err != nil {
			return nil, fmt.Errorf("fill parent %s: %w", parent, err)
		}
		if err := f.store.WriteAtomic(parent, data); err != nil {
			return nil, fmt.Errorf("persist parent %s: %w", parent, err)
		}
	}
	return f.renderer.Render(level, x, y)
}

// SupportsParallelRendering delegates to the wrapped renderer.
func (f *ParentFiller) SupportsParallelRendering() bool {
	return SupportsParallel(f.renderer)
}

package render

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/deepzoom-tiles/server/internal/tiles"
)

// countingRenderer records which tiles were rendered.
type countingRenderer struct {
	mu    sync.Mutex
	calls map[tiles.Coord]int
}

func newCountingRenderer() *countingRenderer {
	return &countingRenderer{calls: make(map[tiles.Coord]int)}
}

func (r *countingRenderer) Render(level, x, y int) ([]byte, error) {
	c := tiles.Coord{Level: level, X: x, Y: y}
	r.mu.Lock()
	r.calls[c]++
	r.mu.Unlock()
	return []byte(c.String()), nil
}

type failingRenderer struct{}

func (failingRenderer) Render(level, x, y int) ([]byte, error) {
	return nil, fmt.Errorf("render %d/%d/%d: boom", level, x, y)
}

func TestParentFillerRendersAncestorsFirst(t *testing.T) {
	store := tiles.NewStore(t.TempDir(), "png")
	inner := newCountingRenderer()
	filler := NewParentFiller(store, inner)

	leaf := tiles.Coord{Level: 3, X: 5, Y: 2}
	data, err := filler.Render(leaf.Level, leaf.X, leaf.Y)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if string(data) != "3/5/2" {
		t.Fatalf("leaf bytes = %q", data)
	}

	// Every strict ancestor is on disk; the leaf itself is not persisted.
	for _, a := range leaf.Ancestors() {
		if !store.Exists(a) {
			t.Errorf("ancestor %s missing from store", a)
		}
	}
	if store.Exists(leaf) {
		t.Error("filler must not persist the leaf tile")
	}
}

func TestParentFillerSkipsExistingAncestors(t *testing.T) {
	store := tiles.NewStore(t.TempDir(), "png")
	inner := newCountingRenderer()
	filler := NewParentFiller(store, inner)

	// Pre-populate the whole ancestor chain.
	leaf := tiles.Coord{Level: 4, X: 9, Y: 6}
	for _, a := range leaf.Ancestors() {
		if err := store.WriteAtomic(a, []byte("existing")); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := filler.Render(leaf.Level, leaf.X, leaf.Y); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(inner.calls) != 1 {
		t.Fatalf("expected only the leaf render, got calls for %v", inner.calls)
	}
	if got, err := store.Read(tiles.Coord{Level: 0, X: 0, Y: 0}); err != nil || string(got) != "existing" {
		t.Fatalf("existing ancestor overwritten: %q, %v", got, err)
	}
}

func TestParentFillerPropagatesFailure(t *testing.T) {
	store := tiles.NewStore(t.TempDir(), "png")
	filler := NewParentFiller(store, failingRenderer{})

	if _, err := filler.Render(2, 1, 1); err == nil {
		t.Fatal("expected error from failing renderer")
	}
}

func TestParentFillerConcurrentSharedAncestor(t *testing.T) {
	store := tiles.NewStore(t.TempDir(), "png")
	inner := newCountingRenderer()
	filler := NewParentFiller(store, inner)

	// All leaves share the ancestor chain down to the root.
	var wg sync.WaitGroup
	var failures atomic.Int64
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := filler.Render(4, i, i); err != nil {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("%d concurrent renders failed", failures.Load())
	}
	root := tiles.Coord{Level: 0, X: 0, Y: 0}
	data, err := store.Read(root)
	if err != nil {
		t.Fatalf("root tile unreadable: %v", err)
	}
	if string(data) != "0/0/0" {
		t.Fatalf("root tile corrupt: %q", data)
	}
}

func TestSupportsParallelDelegation(t *testing.T) {
	store := tiles.NewStore(t.TempDir(), "png")
	if !SupportsParallel(NewParentFiller(store, newCountingRenderer())) {
		t.Error("renderer without the capability interface should default to parallel")
	}
	if SupportsParallel(NewParentFiller(store, serialRenderer{})) {
		t.Error("filler should propagate a wrapped renderer's serial-only flag")
	}
}

type serialRenderer struct{}

func (serialRenderer) Render(level, x, y int) ([]byte, error) { return []byte("s"), nil }
func (serialRenderer) SupportsParallelRendering() bool        { return false }

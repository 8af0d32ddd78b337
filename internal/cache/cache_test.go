package cache

import (
	"bytes"
	"testing"
	"time"

	"github.com/deepzoom-tiles/server/internal/tiles"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{TileCacheSizeMB: 8, TileTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestTileRoundTrip(t *testing.T) {
	m := newTestManager(t)
	key := TileKey("demo", tiles.Coord{Level: 2, X: 1, Y: 3})

	if _, hit := m.GetTile(key); hit {
		t.Fatal("unexpected hit on empty cache")
	}

	data := []byte("png-bytes")
	if err := m.SetTile(key, data); err != nil {
		t.Fatalf("SetTile: %v", err)
	}
	got, hit := m.GetTile(key)
	if !hit {
		t.Fatal("expected hit after set")
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestTileKeyIsolatesDatasets(t *testing.T) {
	m := newTestManager(t)
	c := tiles.Coord{Level: 1, X: 0, Y: 0}

	if err := m.SetTile(TileKey("a", c), []byte("tile-a")); err != nil {
		t.Fatal(err)
	}
	if _, hit := m.GetTile(TileKey("b", c)); hit {
		t.Fatal("dataset b must not see dataset a's tile")
	}
	if TileKey("a", c) == TileKey("b", c) {
		t.Fatal("keys for distinct datasets collided")
	}
}

func TestStats(t *testing.T) {
	m := newTestManager(t)
	if err := m.SetTile(TileKey("demo", tiles.Coord{Level: 0, X: 0, Y: 0}), []byte("x")); err != nil {
		t.Fatal(err)
	}
	stats := m.Stats()
	if n, ok := stats["tile_cache_len"].(int); !ok || n != 1 {
		t.Fatalf("tile_cache_len = %v, want 1", stats["tile_cache_len"])
	}
}

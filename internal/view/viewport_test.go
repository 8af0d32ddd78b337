package view

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/deepzoom-tiles/server/internal/camera"
	"github.com/deepzoom-tiles/server/internal/tiles"
)

func centerPose(globalLevel float64) camera.Pose {
	return camera.Pose{
		GlobalLevel: globalLevel,
		X:           decimal.NewFromFloat(0.5),
		Y:           decimal.NewFromFloat(0.5),
	}
}

func testViewport() Viewport {
	return Viewport{Width: 1024, Height: 768, TileSize: 512, Margin: 1}
}

func TestVisibleWithinGrid(t *testing.T) {
	vp := testViewport()
	for _, globalLevel := range []float64{0, 0.5, 1, 2.3, 5, 7.9} {
		for _, c := range Visible(centerPose(globalLevel), vp) {
			if !c.Valid() {
				t.Errorf("globalLevel %v: tile %s outside its grid", globalLevel, c)
			}
		}
	}
}

func TestVisibleIntegerZoomSingleLevel(t *testing.T) {
	vp := testViewport()
	for _, c := range Visible(centerPose(3), vp) {
		if c.Level != 3 {
			t.Errorf("integer zoom should only touch level 3, got %s", c)
		}
	}
}

func TestVisibleCrossfadeAddsNextLevel(t *testing.T) {
	vp := testViewport()
	seen := map[int]bool{}
	for _, c := range Visible(centerPose(3.5), vp) {
		seen[c.Level] = true
	}
	if !seen[3] || !seen[4] {
		t.Fatalf("crossfade at 3.5 should cover levels 3 and 4, got %v", seen)
	}
	if len(seen) != 2 {
		t.Fatalf("unexpected extra levels: %v", seen)
	}
}

func TestVisibleLevelZeroIsRootOnly(t *testing.T) {
	vp := testViewport()
	got := Visible(centerPose(0), vp)
	if len(got) != 1 || got[0] != (tiles.Coord{Level: 0, X: 0, Y: 0}) {
		t.Fatalf("level 0 view = %v, want just the root tile", got)
	}
}

func TestVisibleCoversViewport(t *testing.T) {
	// At globalLevel 4 a tile spans 512px, so a 1024x768 screen needs at
	// least a 2x2 block at the floor level before the margin ring.
	vp := testViewport()
	count := 0
	for _, c := range Visible(centerPose(4), vp) {
		if c.Level == 4 {
			count++
		}
	}
	if count < 4 {
		t.Fatalf("level 4 cover has %d tiles, want at least 4", count)
	}
}

func TestVisibleMarginExpandsCover(t *testing.T) {
	pose := centerPose(6)
	base := len(Visible(pose, Viewport{Width: 1024, Height: 768, TileSize: 512, Margin: 0}))
	padded := len(Visible(pose, Viewport{Width: 1024, Height: 768, TileSize: 512, Margin: 2}))
	if padded <= base {
		t.Fatalf("margin 2 cover (%d) should exceed margin 0 cover (%d)", padded, base)
	}
}

func TestVisibleEdgeCameraClipped(t *testing.T) {
	// Camera at the corner of the plane: the cover must clip instead of
	// emitting negative or out-of-grid coordinates.
	pose := camera.Pose{GlobalLevel: 5, X: decimal.Zero, Y: decimal.Zero}
	got := Visible(pose, testViewport())
	if len(got) == 0 {
		t.Fatal("corner camera should still see tiles")
	}
	for _, c := range got {
		if !c.Valid() {
			t.Errorf("corner camera produced invalid tile %s", c)
		}
	}
}

func TestVisibleDeepLevelPrecision(t *testing.T) {
	// Past the float64 resolution limit the decimal coordinate must still
	// pick the right tile column.
	x := decimal.RequireFromString("0.3333333333333333333333333333333333")
	pose := camera.Pose{GlobalLevel: 60, X: x, Y: x}
	got := Visible(pose, Viewport{Width: 512, Height: 512, TileSize: 512, Margin: 0})
	if len(got) == 0 {
		t.Fatal("deep pose should see tiles")
	}

	// Expected center tile index is floor(x * 2^60).
	pow2 := decimal.NewFromInt(1 << 60)
	want := x.Mul(pow2).Floor().IntPart()
	found := false
	for _, c := range got {
		if int64(c.X) == want && int64(c.Y) == want {
			found = true
		}
		if !c.Valid() {
			t.Errorf("invalid tile %s", c)
		}
	}
	if !found {
		t.Fatalf("cover misses the center tile %d at level 60", want)
	}
}

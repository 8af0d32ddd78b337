// Package view computes the set of quadtree tiles a viewport displays for a
// given camera pose.
package view

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/deepzoom-tiles/server/internal/camera"
	"github.com/deepzoom-tiles/server/internal/tiles"
)

// Viewport describes the screen the tiles must cover. Margin expands the
// covered rectangle by whole tiles on every side.
type Viewport struct {
	Width    int
	Height   int
	TileSize int
	Margin   int
}

// crossfadeEpsilon decides when the next level participates: during a zoom
// transition the viewer blends level and level+1, so any meaningful offset
// needs both layers present.
const crossfadeEpsilon = 1e-6

// Visible returns every tile the viewport would display at the pose, using
// rectangular margin-based culling. Candidate levels are floor(globalLevel)
// and, while crossfading, the next deeper level. Negative levels are skipped;
// the result is clipped to each level's grid.
func Visible(pose camera.Pose, vp Viewport) []tiles.Coord {
	levels := []int{pose.Level()}
	if pose.ZoomOffset() > crossfadeEpsilon {
		levels = append(levels, pose.Level()+1)
	}

	var out []tiles.Coord
	for _, level := range levels {
		out = append(out, visibleAtLevel(pose, vp, level)...)
	}
	return out
}

func visibleAtLevel(pose camera.Pose, vp Viewport, level int) []tiles.Coord {
	if level < 0 || level > 62 {
		return nil
	}

	// On-screen size of one tile at this level. displayScale is in [1,2)
	// for the floor level and [0.5,1) for the crossfade level.
	displayScale := math.Pow(2, pose.GlobalLevel-float64(level))
	tilePx := float64(vp.TileSize) * displayScale
	halfW := float64(vp.Width) / tilePx / 2
	halfH := float64(vp.Height) / tilePx / 2

	// Camera center in level tile units, split into an integer tile index
	// and a float fraction so deep levels keep sub-tile precision.
	pow2 := decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), uint(level)), 0)
	cxTile, cxFrac := splitTileUnits(pose.X, pow2)
	cyTile, cyFrac := splitTileUnits(pose.Y, pow2)

	margin := float64(vp.Margin)
	x0 := cxTile + int64(math.Floor(cxFrac-halfW-margin))
	x1 := cxTile + int64(math.Ceil(cxFrac+halfW+margin)) - 1
	y0 := cyTile + int64(math.Floor(cyFrac-halfH-margin))
	y1 := cyTile + int64(math.Ceil(cyFrac+halfH+margin)) - 1

	n := int64(1) << uint(level)
	x0, x1 = clampRange(x0, x1, n)
	y0, y1 = clampRange(y0, y1, n)
	if x0 > x1 || y0 > y1 {
		return nil
	}

	out := make([]tiles.Coord, 0, (x1-x0+1)*(y1-y0+1))
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			out = append(out, tiles.Coord{Level: level, X: int(x), Y: int(y)})
		}
	}
	return out
}

// splitTileUnits computes coord*2^level as an integer tile index plus a
// fractional remainder in [0,1).
func splitTileUnits(coord, pow2 decimal.Decimal) (int64, float64) {
	t := coord.Mul(pow2)
	whole := t.Floor()
	frac, _ := t.Sub(whole).Float64()
	return whole.IntPart(), frac
}

func clampRange(lo, hi, n int64) (int64, int64) {
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	return lo, hi
}

// Package camera models camera poses over the quadtree pyramid and samples
// camera paths into poses.
//
// Global X/Y are normalized to [0,1) at level 0 and kept as arbitrary
// precision decimals: past level ~50 a float64 global coordinate no longer
// resolves individual tiles, so the stored coordinate stays exact and is
// converted to float only where per-tile arithmetic bounds the error by the
// viewport's own pixel resolution.
package camera

import (
	"math"

	"github.com/shopspring/decimal"
)

// Pose is a camera position. GlobalLevel is the single continuous zoom
// coordinate; the integer level and the crossfade offset derive from it.
type Pose struct {
	GlobalLevel float64
	X           decimal.Decimal
	Y           decimal.Decimal
}

// Level returns floor(GlobalLevel).
func (p Pose) Level() int {
	return int(math.Floor(p.GlobalLevel))
}

// ZoomOffset returns the fractional part of GlobalLevel, in [0,1).
func (p Pose) ZoomOffset() float64 {
	return p.GlobalLevel - math.Floor(p.GlobalLevel)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func lerpDec(a, b decimal.Decimal, t float64) decimal.Decimal {
	return a.Add(b.Sub(a).Mul(decimal.NewFromFloat(t)))
}

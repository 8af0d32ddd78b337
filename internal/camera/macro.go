package camera

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MacroGlobal is the built-in identity macro: keyframe coordinates are
// already normalized global X/Y.
const MacroGlobal = "global"

// MacroDef maps domain plane coordinates (e.g. complex re/im) onto normalized
// global coordinates through a fixed affine transform. X,Y is the plane
// center of the level-0 view and DX its width; the level-0 square spans
// [X-DX/2, X+DX/2] horizontally and [Y+DX/2, Y-DX/2] top to bottom.
type MacroDef struct {
	X  decimal.Decimal
	Y  decimal.Decimal
	DX decimal.Decimal
}

var two = decimal.NewFromInt(2)

// divPrecision is the decimal precision for macro division. 80 digits keeps
// tile-level accuracy far beyond the ~level-50 float64 cutoff.
const divPrecision = 80

// Resolve converts plane coordinates to a Pose. Resolution is a pure affine
// function: a macro keyframe and its equivalent explicit camera are required
// to produce identical poses.
func (m MacroDef) Resolve(level float64, re, im decimal.Decimal) (Pose, error) {
	if m.DX.IsZero() {
		return Pose{}, fmt.Errorf("macro has zero view width")
	}
	half := m.DX.DivRound(two, divPrecision)
	gx := re.Sub(m.X.Sub(half)).DivRound(m.DX, divPrecision)
	gy := m.Y.Add(half).Sub(im).DivRound(m.DX, divPrecision)
	return Pose{GlobalLevel: level, X: gx, Y: gy}, nil
}

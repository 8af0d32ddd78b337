package camera

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/shopspring/decimal"
)

// RawCamera is an explicit camera pose as it appears in a path definition.
// Coordinates decode from either JSON numbers or strings, so deep-zoom
// coordinates survive parsing without float truncation.
type RawCamera struct {
	Level      float64          `json:"level"`
	ZoomOffset float64          `json:"zoomOffset"`
	X          *decimal.Decimal `json:"x"`
	Y          *decimal.Decimal `json:"y"`
}

// Keyframe is one entry of a path definition: either an explicit camera or a
// macro reference with domain coordinates.
type Keyframe struct {
	Camera *RawCamera `json:"camera,omitempty"`

	Macro string           `json:"macro,omitempty"`
	Level float64          `json:"level,omitempty"`
	Re    *decimal.Decimal `json:"re,omitempty"`
	Im    *decimal.Decimal `json:"im,omitempty"`
	X     *decimal.Decimal `json:"x,omitempty"`
	Y     *decimal.Decimal `json:"y,omitempty"`
}

var center = decimal.NewFromFloat(0.5)

func decOr(p *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if p == nil {
		return def
	}
	return *p
}

// resolve turns a keyframe into a Pose using the supplied macro table.
// Macros resolve once here, at path construction, not per sample.
func (k Keyframe) resolve(macros map[string]MacroDef) (Pose, error) {
	if k.Macro != "" {
		if k.Macro == MacroGlobal {
			return Pose{
				GlobalLevel: k.Level,
				X:           decOr(k.X, decOr(k.Re, center)),
				Y:           decOr(k.Y, decOr(k.Im, center)),
			}, nil
		}
		def, ok := macros[k.Macro]
		if !ok {
			return Pose{}, fmt.Errorf("unknown macro %q", k.Macro)
		}
		return def.Resolve(k.Level, decOr(k.Re, decimal.Zero), decOr(k.Im, decimal.Zero))
	}
	if k.Camera == nil {
		return Pose{}, fmt.Errorf("keyframe has neither camera nor macro")
	}
	return Pose{
		GlobalLevel: k.Camera.Level + k.Camera.ZoomOffset,
		X:           decOr(k.Camera.X, center),
		Y:           decOr(k.Camera.Y, center),
	}, nil
}

// Path is an ordered list of resolved keyframe poses. Progress in [0,1] maps
// onto the N-1 segments by equal partition.
type Path struct {
	poses []Pose
}

// NewPath resolves keyframes against the macro table. Paths with fewer than
// two keyframes are rejected.
func NewPath(keyframes []Keyframe, macros map[string]MacroDef) (*Path, error) {
	if len(keyframes) < 2 {
		return nil, fmt.Errorf("path needs at least 2 keyframes, got %d", len(keyframes))
	}
	poses := make([]Pose, len(keyframes))
	for i, kf := range keyframes {
		p, err := kf.resolve(macros)
		if err != nil {
			return nil, fmt.Errorf("keyframe %d: %w", i, err)
		}
		poses[i] = p
	}
	return &Path{poses: poses}, nil
}

// Keyframes returns the resolved keyframe poses.
func (p *Path) Keyframes() []Pose {
	return p.poses
}

// Sample returns the interpolated pose at progress. Progress outside [0,1]
// is clamped. Level interpolation is linear in the continuous GlobalLevel;
// X and Y interpolate independently in decimal space.
func (p *Path) Sample(progress float64) Pose {
	if progress < 0 || math.IsNaN(progress) {
		progress = 0
	} else if progress > 1 {
		progress = 1
	}

	nSeg := len(p.poses) - 1
	scaled := progress * float64(nSeg)
	i := int(math.Floor(scaled))
	if i >= nSeg {
		i = nSeg - 1
	}
	t := scaled - float64(i)

	a, b := p.poses[i], p.poses[i+1]
	return Pose{
		GlobalLevel: lerp(a.GlobalLevel, b.GlobalLevel, t),
		X:           lerpDec(a.X, b.X, t),
		Y:           lerpDec(a.Y, b.Y, t),
	}
}

// SampleMany samples a batch of progress values.
func (p *Path) SampleMany(progresses []float64) []Pose {
	out := make([]Pose, len(progresses))
	for i, pr := range progresses {
		out[i] = p.Sample(pr)
	}
	return out
}

// ArcLength returns the path's total traversed distance in the combined
// (globalLevel, globalX, globalY) metric used for interpolation. Float
// precision is fine here: the value only scales the sampling density.
func (p *Path) ArcLength() float64 {
	total := 0.0
	for i := 1; i < len(p.poses); i++ {
		a, b := p.poses[i-1], p.poses[i]
		dl := b.GlobalLevel - a.GlobalLevel
		dx, _ := b.X.Sub(a.X).Float64()
		dy, _ := b.Y.Sub(a.Y).Float64()
		total += math.Sqrt(dl*dl + dx*dx + dy*dy)
	}
	return total
}

type pathFile struct {
	Path *struct {
		Keyframes []Keyframe `json:"keyframes"`
	} `json:"path"`
	Paths json.RawMessage `json:"paths,omitempty"`
}

// LoadKeyframes reads a dataset path definition file. The schema uses a lone
// object under the "path" key; legacy "paths" arrays are rejected. A missing
// file yields nil keyframes (dataset has no path).
func LoadKeyframes(file string) ([]Keyframe, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var pf pathFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	if len(pf.Paths) > 0 {
		return nil, fmt.Errorf("%s: legacy 'paths' arrays are not supported; use a single 'path' object", file)
	}
	if pf.Path == nil {
		return nil, fmt.Errorf("%s: missing 'path' object", file)
	}
	return pf.Path.Keyframes, nil
}

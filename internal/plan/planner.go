// Package plan turns camera paths into deduplicated, disk-filtered tile task
// lists for the batch generator.
package plan

import (
	"math"
	"sort"

	"github.com/deepzoom-tiles/server/internal/camera"
	"github.com/deepzoom-tiles/server/internal/tiles"
	"github.com/deepzoom-tiles/server/internal/view"
)

// SamplingPolicy controls how many progress samples a path plan takes.
// Samples > 0 requests a fixed count. Otherwise the count derives from the
// path's arc length times PerUnit, so sample density per unit of camera
// travel stays bounded below; MaxSamples caps the result on pathological
// paths.
type SamplingPolicy struct {
	Samples    int
	PerUnit    float64
	MaxSamples int
}

const (
	defaultSamples    = 2000
	defaultMaxSamples = 20000
)

func (p SamplingPolicy) count(path *camera.Path) int {
	if p.Samples > 0 {
		return p.Samples
	}
	perUnit := p.PerUnit
	if perUnit <= 0 {
		return defaultSamples
	}
	n := int(math.Ceil(path.ArcLength() * perUnit))
	if n < 2 {
		n = 2
	}
	max := p.MaxSamples
	if max <= 0 {
		max = defaultMaxSamples
	}
	if n > max {
		n = max
	}
	return n
}

// Planner computes render task lists against a tile store.
type Planner struct {
	Store    *tiles.Store
	Viewport view.Viewport
}

// Plan samples the path, unions the visible tile sets, drops tiles already on
// disk and returns the rest sorted by (level, x, y). Planning is idempotent:
// after all returned tasks are rendered, a second plan is empty.
func (p *Planner) Plan(path *camera.Path, policy SamplingPolicy) []tiles.Coord {
	steps := policy.count(path)
	progresses := make([]float64, steps+1)
	for i := range progresses {
		progresses[i] = float64(i) / float64(steps)
	}

	required := make(map[tiles.Coord]struct{})
	for _, pose := range path.SampleMany(progresses) {
		for _, c := range view.Visible(pose, p.Viewport) {
			required[c] = struct{}{}
		}
	}

	return p.filterAndSort(required)
}

// PlanFullPyramid enumerates every coordinate at levels 0..maxLevel,
// disk-filtered and sorted.
func (p *Planner) PlanFullPyramid(maxLevel int) []tiles.Coord {
	required := make(map[tiles.Coord]struct{})
	for level := 0; level <= maxLevel; level++ {
		n := 1 << level
		for x := 0; x < n; x++ {
			for y := 0; y < n; y++ {
				required[tiles.Coord{Level: level, X: x, Y: y}] = struct{}{}
			}
		}
	}
	return p.filterAndSort(required)
}

// PlanExplicit filters an explicit tile list against disk, preserving the
// dedup-and-sort contract of the other modes.
func (p *Planner) PlanExplicit(coords []tiles.Coord) []tiles.Coord {
	required := make(map[tiles.Coord]struct{}, len(coords))
	for _, c := range coords {
		required[c] = struct{}{}
	}
	return p.filterAndSort(required)
}

func (p *Planner) filterAndSort(required map[tiles.Coord]struct{}) []tiles.Coord {
	out := make([]tiles.Coord, 0, len(required))
	for c := range required {
		if p.Store.Exists(c) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return tiles.Less(out[i], out[j]) })
	return out
}

package render

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"strconv"
	"sync"

	"github.com/deepzoom-tiles/server/pkg/colormap"
	"github.com/fogleman/gg"
)

const defaultTileSize = 512

// DebugRenderer draws a coordinate tile: tinted background, grid border and
// the "level/x/y" label. Useful to verify the pyramid's coordinate system
// end to end without any heavy pixel math.
type DebugRenderer struct {
	tileSize   int
	bufferPool sync.Pool
}

func newDebugRenderer(spec Spec) (Renderer, error) {
	size := spec.TileSize
	if size <= 0 {
		size = defaultTileSize
	}
	return &DebugRenderer{
		tileSize: size,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 16*1024))
			},
		},
	}, nil
}

// Render implements Renderer.
func (r *DebugRenderer) Render(level, x, y int) ([]byte, error) {
	size := float64(r.tileSize)
	dc := gg.NewContext(r.tileSize, r.tileSize)

	// Deterministic tint per coordinate so neighboring tiles are
	// distinguishable at a glance.
	dc.SetColor(color.RGBA{
		R: uint8(40 + (x*37)%140),
		G: uint8(40 + (y*57)%140),
		B: uint8(60 + (level*31)%140),
		A: 255,
	})
	dc.Clear()

	dc.SetColor(color.White)
	dc.SetLineWidth(2)
	dc.DrawRectangle(1, 1, size-2, size-2)
	dc.Stroke()

	label := fmt.Sprintf("%d/%d/%d", level, x, y)
	dc.DrawStringAnchored(label, size/2, size/2, 0.5, 0.5)

	return r.encode(dc)
}

func (r *DebugRenderer) encode(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer r.bufferPool.Put(buf)
	buf.Reset()

	if err := png.Encode(buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode tile: %w", err)
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// SolidRenderer fills every tile with one color. Option "color" takes
// "#rrggbb"; the default is mid gray.
type SolidRenderer struct {
	tileSize int
	fill     color.RGBA
}

func newSolidRenderer(spec Spec) (Renderer, error) {
	size := spec.TileSize
	if size <= 0 {
		size = defaultTileSize
	}
	fill := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	if hex, ok := spec.Options["color"]; ok {
		c, err := parseHexColor(hex)
		if err != nil {
			return nil, err
		}
		fill = c
	}
	return &SolidRenderer{tileSize: size, fill: fill}, nil
}

// Render implements Renderer.
func (r *SolidRenderer) Render(level, x, y int) ([]byte, error) {
	dc := gg.NewContext(r.tileSize, r.tileSize)
	dc.SetColor(r.fill)
	dc.Clear()

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode tile: %w", err)
	}
	return buf.Bytes(), nil
}

// GradientRenderer paints each tile with the slice of a horizontal colormap
// gradient its coordinate covers. Zooming in keeps revealing smooth detail,
// which makes it a useful stand-in for expensive plane renderers. Option
// "colormap" selects viridis, plasma, inferno or magma.
type GradientRenderer struct {
	tileSize int
	cmap     colormap.Colormap
}

func newGradientRenderer(spec Spec) (Renderer, error) {
	size := spec.TileSize
	if size <= 0 {
		size = defaultTileSize
	}
	return &GradientRenderer{
		tileSize: size,
		cmap:     colormap.ByName(spec.Options["colormap"]),
	}, nil
}

// Render implements Renderer.
func (r *GradientRenderer) Render(level, x, y int) ([]byte, error) {
	dc := gg.NewContext(r.tileSize, r.tileSize)

	// Global position of this tile's left edge and its width, both in the
	// normalized [0, 1) plane.
	scale := 1 / float64(uint64(1)<<uint(level))
	left := float64(x) * scale

	for px := 0; px < r.tileSize; px++ {
		t := left + (float64(px)+0.5)/float64(r.tileSize)*scale
		dc.SetColor(r.cmap.At(t))
		dc.DrawLine(float64(px)+0.5, 0, float64(px)+0.5, float64(r.tileSize))
		dc.Stroke()
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode tile: %w", err)
	}
	return buf.Bytes(), nil
}

func parseHexColor(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

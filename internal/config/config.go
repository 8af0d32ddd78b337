// Package config handles configuration loading for the tile pyramid server
// and the batch generator.
package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/deepzoom-tiles/server/internal/camera"
	"github.com/deepzoom-tiles/server/internal/render"
)

// Config represents the full configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Cache    CacheConfig    `yaml:"cache"`
	Viewport ViewportConfig `yaml:"viewport"`
	Generate GenerateConfig `yaml:"generate"`
	Data     DataConfig     `yaml:"data"`
}

// ServerConfig contains live HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`

	// MaxConcurrentRenders bounds simultaneous on-demand renders; requests
	// beyond it are rejected immediately, never queued.
	MaxConcurrentRenders int `yaml:"max_concurrent_renders"`
}

// CacheConfig contains live-server caching settings.
type CacheConfig struct {
	TileSizeMB        int `yaml:"tile_size_mb"`
	TileTTLMinutes    int `yaml:"tile_ttl_minutes"`
	RendererCacheSize int `yaml:"renderer_cache_size"`
}

// ViewportConfig is the reference viewport used for path tile planning. The
// frontend adapts to the window, but generation must cover the largest
// viewport expected in the wild.
type ViewportConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Margin int `yaml:"margin"`
}

// GenerateConfig contains batch generation settings.
type GenerateConfig struct {
	Workers         int `yaml:"workers"`
	Samples         int `yaml:"samples"`
	MaxSamples      int `yaml:"max_samples"`
	ProgressSeconds int `yaml:"progress_seconds"`
}

// MacroConfig defines a macro's affine root view in plane coordinates.
// Values are decimal strings so deep coordinates don't truncate.
type MacroConfig struct {
	X  string `yaml:"x"`
	Y  string `yaml:"y"`
	DX string `yaml:"dx"`
}

// DatasetConfig describes one tile dataset.
type DatasetConfig struct {
	Root      string                 `yaml:"root"`
	TileSize  int                    `yaml:"tile_size"`
	Extension string                 `yaml:"extension"`
	MaxLevel  int                    `yaml:"max_level"`
	Mode      string                 `yaml:"mode"` // "full" or "path"
	Renderer  render.Spec            `yaml:"renderer"`
	Macros    map[string]MacroConfig `yaml:"macros"`
}

// MacroDefs parses the dataset's macro table.
func (d DatasetConfig) MacroDefs() (map[string]camera.MacroDef, error) {
	out := make(map[string]camera.MacroDef, len(d.Macros))
	for kind, mc := range d.Macros {
		x, err := decimal.NewFromString(mc.X)
		if err != nil {
			return nil, fmt.Errorf("macro %q: invalid x %q: %w", kind, mc.X, err)
		}
		y, err := decimal.NewFromString(mc.Y)
		if err != nil {
			return nil, fmt.Errorf("macro %q: invalid y %q: %w", kind, mc.Y, err)
		}
		dx, err := decimal.NewFromString(mc.DX)
		if err != nil {
			return nil, fmt.Errorf("macro %q: invalid dx %q: %w", kind, mc.DX, err)
		}
		out[kind] = camera.MacroDef{X: x, Y: y, DX: dx}
	}
	return out, nil
}

// DataConfig contains the dataset table.
type DataConfig struct {
	Default  string                   `yaml:"default"`
	Datasets map[string]DatasetConfig `yaml:"datasets"`
}

// DatasetIDs returns the configured dataset IDs in sorted order.
func (d DataConfig) DatasetIDs() []string {
	ids := make([]string, 0, len(d.Datasets))
	for id := range d.Datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                 8080,
			CORSOrigins:          []string{"http://localhost:3000", "http://localhost:5173"},
			MaxConcurrentRenders: 2,
		},
		Cache: CacheConfig{
			TileSizeMB:        256,
			TileTTLMinutes:    10,
			RendererCacheSize: 8,
		},
		Viewport: ViewportConfig{
			Width:  1920,
			Height: 1080,
			Margin: 1,
		},
		Generate: GenerateConfig{
			Workers:         8,
			Samples:         2000,
			MaxSamples:      20000,
			ProgressSeconds: 10,
		},
		Data: DataConfig{
			Datasets: map[string]DatasetConfig{},
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Server.MaxConcurrentRenders == 0 {
		cfg.Server.MaxConcurrentRenders = defaults.Server.MaxConcurrentRenders
	}
	if cfg.Cache.TileSizeMB == 0 {
		cfg.Cache.TileSizeMB = defaults.Cache.TileSizeMB
	}
	if cfg.Cache.TileTTLMinutes == 0 {
		cfg.Cache.TileTTLMinutes = defaults.Cache.TileTTLMinutes
	}
	if cfg.Cache.RendererCacheSize == 0 {
		cfg.Cache.RendererCacheSize = defaults.Cache.RendererCacheSize
	}
	if cfg.Viewport.Width == 0 {
		cfg.Viewport.Width = defaults.Viewport.Width
	}
	if cfg.Viewport.Height == 0 {
		cfg.Viewport.Height = defaults.Viewport.Height
	}
	if cfg.Viewport.Margin == 0 {
		cfg.Viewport.Margin = defaults.Viewport.Margin
	}
	if cfg.Generate.Workers == 0 {
		cfg.Generate.Workers = defaults.Generate.Workers
	}
	if cfg.Generate.Samples == 0 {
		cfg.Generate.Samples = defaults.Generate.Samples
	}
	if cfg.Generate.MaxSamples == 0 {
		cfg.Generate.MaxSamples = defaults.Generate.MaxSamples
	}
	if cfg.Generate.ProgressSeconds == 0 {
		cfg.Generate.ProgressSeconds = defaults.Generate.ProgressSeconds
	}
	if cfg.Data.Datasets == nil {
		cfg.Data.Datasets = map[string]DatasetConfig{}
	}

	for id, ds := range cfg.Data.Datasets {
		if ds.TileSize == 0 {
			ds.TileSize = 512
		}
		if ds.Extension == "" {
			ds.Extension = "png"
		}
		if ds.Mode == "" {
			ds.Mode = "path"
		}
		if ds.MaxLevel == 0 {
			ds.MaxLevel = 4
		}
		if ds.Renderer.TileSize == 0 {
			ds.Renderer.TileSize = ds.TileSize
		}
		cfg.Data.Datasets[id] = ds
	}
	if cfg.Data.Default == "" {
		ids := cfg.Data.DatasetIDs()
		if len(ids) > 0 {
			cfg.Data.Default = ids[0]
		}
	}
}

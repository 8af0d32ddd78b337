// Package main is the batch tile generation CLI. It plans the tile set a
// camera path needs (or a full pyramid), renders the missing tiles across a
// worker pool and keeps the dataset manifest current.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/deepzoom-tiles/server/internal/camera"
	"github.com/deepzoom-tiles/server/internal/config"
	"github.com/deepzoom-tiles/server/internal/generate"
	"github.com/deepzoom-tiles/server/internal/plan"
	"github.com/deepzoom-tiles/server/internal/render"
	"github.com/deepzoom-tiles/server/internal/tiles"
	"github.com/deepzoom-tiles/server/internal/view"
)

func main() {
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	datasetID := flag.String("dataset", "", "Dataset to generate (default: all configured datasets)")
	mode := flag.String("mode", "", "Planning mode: path, full or explicit (default: per-dataset config)")
	maxLevel := flag.Int("max-level", -1, "Override max pyramid level for full mode")
	workers := flag.Int("workers", -1, "Worker count (0 = sequential debug mode)")
	tileList := flag.String("tiles", "", "Comma-separated level/x/y list for explicit mode")
	samples := flag.Int("samples", 0, "Override path sample count")
	rebuild := flag.Bool("rebuild", false, "Delete existing tile levels before planning")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ids := cfg.Data.DatasetIDs()
	if *datasetID != "" {
		if _, ok := cfg.Data.Datasets[*datasetID]; !ok {
			log.Fatalf("Unknown dataset %q (configured: %v)", *datasetID, ids)
		}
		ids = []string{*datasetID}
	}
	if len(ids) == 0 {
		log.Fatalf("No datasets configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var total generate.Stats
	failedDatasets := 0
	for _, id := range ids {
		stats, err := runDataset(ctx, cfg, id, *mode, *maxLevel, *workers, *samples, *tileList, *rebuild)
		if err != nil {
			// A misconfigured dataset skips only itself; the batch goes on.
			log.Printf("[Tilegen] dataset %s: %v", id, err)
			failedDatasets++
			continue
		}
		total.Generated += stats.Generated
		total.Failed += stats.Failed
		total.Elapsed += stats.Elapsed
		if ctx.Err() != nil {
			break
		}
	}

	log.Printf("[Tilegen] done: %d generated, %d failed, %s elapsed",
		total.Generated, total.Failed, total.Elapsed.Round(time.Millisecond))
	if failedDatasets > 0 || total.Failed > 0 {
		os.Exit(1)
	}
}

func runDataset(ctx context.Context, cfg *config.Config, id, mode string, maxLevel, workers, samples int, tileList string, rebuild bool) (generate.Stats, error) {
	ds := cfg.Data.Datasets[id]
	if mode == "" {
		mode = ds.Mode
	}
	if maxLevel < 0 {
		maxLevel = ds.MaxLevel
	}
	if workers < 0 {
		workers = cfg.Generate.Workers
	}

	store := tiles.NewStore(ds.Root, ds.Extension)
	if rebuild {
		log.Printf("[Tilegen] %s: removing existing tile levels", id)
		if err := store.RemoveLevels(); err != nil {
			return generate.Stats{}, fmt.Errorf("rebuild: %w", err)
		}
	}

	planner := &plan.Planner{
		Store: store,
		Viewport: view.Viewport{
			Width:    cfg.Viewport.Width,
			Height:   cfg.Viewport.Height,
			TileSize: ds.TileSize,
			Margin:   cfg.Viewport.Margin,
		},
	}

	var tasks []tiles.Coord
	switch mode {
	case "full":
		tasks = planner.PlanFullPyramid(maxLevel)
	case "explicit":
		coords, err := tiles.ParseCoordList(tileList)
		if err != nil {
			return generate.Stats{}, fmt.Errorf("parse -tiles: %w", err)
		}
		tasks = planner.PlanExplicit(coords)
	case "path":
		path, err := loadPath(ds)
		if err != nil {
			return generate.Stats{}, err
		}
		policy := plan.SamplingPolicy{
			Samples:    samples,
			MaxSamples: cfg.Generate.MaxSamples,
		}
		if policy.Samples == 0 {
			policy.Samples = cfg.Generate.Samples
		}
		tasks = planner.Plan(path, policy)
	default:
		return generate.Stats{}, fmt.Errorf("unknown mode %q (expected path, full or explicit)", mode)
	}

	log.Printf("[Tilegen] %s: mode=%s, %d tile(s) to generate", id, mode, len(tasks))

	coord := &generate.Coordinator{
		Store:            store,
		Registry:         render.NewRegistry(),
		ProgressInterval: time.Duration(cfg.Generate.ProgressSeconds) * time.Second,
	}
	stats, err := coord.Run(ctx, tasks, ds.Renderer, workers)
	if err != nil {
		return stats, err
	}

	n, err := store.WriteManifest()
	if err != nil {
		return stats, fmt.Errorf("write manifest: %w", err)
	}
	log.Printf("[Tilegen] %s: manifest lists %d tile(s)", id, n)
	return stats, nil
}

// loadPath reads {root}/paths.json and resolves its keyframes through the
// dataset's macro table.
func loadPath(ds config.DatasetConfig) (*camera.Path, error) {
	file := filepath.Join(ds.Root, "paths.json")
	keyframes, err := camera.LoadKeyframes(file)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", file, err)
	}
	if len(keyframes) == 0 {
		return nil, fmt.Errorf("no keyframes in %s", file)
	}
	macros, err := ds.MacroDefs()
	if err != nil {
		return nil, err
	}
	return camera.NewPath(keyframes, macros)
}

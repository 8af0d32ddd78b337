// Package main is the entry point for the deep-zoom tile server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deepzoom-tiles/server/internal/api"
	"github.com/deepzoom-tiles/server/internal/cache"
	"github.com/deepzoom-tiles/server/internal/config"
	"github.com/deepzoom-tiles/server/internal/render"
	"github.com/deepzoom-tiles/server/internal/tiles"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting tile server on port %d", cfg.Server.Port)

	// Initialize cache manager (shared across all datasets)
	cacheManager, err := cache.NewManager(cache.Config{
		TileCacheSizeMB: cfg.Cache.TileSizeMB,
		TileTTL:         time.Duration(cfg.Cache.TileTTLMinutes) * time.Minute,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	// Renderer factories shared across datasets. Instances are built lazily
	// per dataset by the registry.
	renderRegistry := render.NewRegistry()

	// Initialize dataset registry
	datasetIDs := cfg.Data.DatasetIDs()
	registry, err := api.NewDatasetRegistry(cfg.Data.Default, renderRegistry, cfg.Cache.RendererCacheSize)
	if err != nil {
		log.Fatalf("Failed to initialize dataset registry: %v", err)
	}

	log.Printf("Initializing %d dataset(s), default: %s", len(datasetIDs), cfg.Data.Default)

	for _, datasetID := range datasetIDs {
		ds := cfg.Data.Datasets[datasetID]

		store := tiles.NewStore(ds.Root, ds.Extension)

		manifest, err := store.LoadManifest()
		if err != nil {
			log.Fatalf("Failed to read manifest for dataset %q: %v", datasetID, err)
		}
		log.Printf("  [%s] Root: %s, renderer: %s, %d tile(s) on disk", datasetID, ds.Root, ds.Renderer.Name, len(manifest))

		registry.Register(&api.Dataset{
			ID:           datasetID,
			Store:        store,
			TileSize:     ds.TileSize,
			RendererSpec: ds.Renderer,
		})
	}

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Registry:             registry,
		Cache:                cacheManager,
		CORSOrigins:          cfg.Server.CORSOrigins,
		MaxConcurrentRenders: cfg.Server.MaxConcurrentRenders,
		Jobs:                 api.NewRenderJobs(),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

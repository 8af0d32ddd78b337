// Package api provides HTTP handlers for the live tile server.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/deepzoom-tiles/server/internal/cache"
	"github.com/deepzoom-tiles/server/internal/render"
	"github.com/deepzoom-tiles/server/internal/tiles"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/semaphore"
)

// Sentinel errors for the live render path. Handlers translate them to HTTP
// statuses; they exist so tests and embedders can match on cause.
var (
	ErrDatasetNotFound  = errors.New("dataset not found")
	ErrCapacityExceeded = errors.New("render capacity exceeded")
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry    *DatasetRegistry
	Cache       *cache.Manager
	CORSOrigins []string
	// MaxConcurrentRenders bounds simultaneous live renders. Requests
	// beyond the bound get 503 immediately rather than queueing.
	MaxConcurrentRenders int
	Jobs                 *RenderJobs
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	capacity := cfg.MaxConcurrentRenders
	if capacity <= 0 {
		capacity = 1
	}
	jobs := cfg.Jobs
	if jobs == nil {
		jobs = NewRenderJobs()
	}
	srv := &liveServer{
		registry: cfg.Registry,
		cache:    cfg.Cache,
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
		jobs:     jobs,
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Global datasets endpoint (not dataset-scoped)
	r.Get("/api/datasets", datasetsHandler(cfg.Registry))

	// In-flight render jobs and semaphore occupancy
	r.Get("/status", srv.statusHandler)

	// Live tile endpoint. The y segment carries an optional extension.
	// NOTE: chi treats '.' as a param delimiter when the route pattern is
	// `{y}.png`, which would hardwire the extension into the route. Capture
	// the full segment and strip the extension in the handler instead.
	r.Get("/live/{dataset}/{level}/{x}/{y}", srv.tileHandler)

	return r
}

// Render job progress milestones reported through /status.
const (
	progressRendering  = 10
	progressPersisting = 90
)

// liveServer renders tiles on demand, persisting every tile it renders so
// the pyramid on disk only ever grows.
type liveServer struct {
	registry *DatasetRegistry
	cache    *cache.Manager
	sem      *semaphore.Weighted
	capacity int
	jobs     *RenderJobs
}

// datasetsHandler returns the list of available datasets.
func datasetsHandler(registry *DatasetRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"default":  registry.DefaultDatasetID(),
			"datasets": registry.Datasets(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

func (s *liveServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.jobs.Snapshot(s.capacity))
}

func (s *liveServer) tileHandler(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "dataset")
	ds := s.registry.Get(datasetID)
	if ds == nil {
		http.Error(w, ErrDatasetNotFound.Error()+": "+datasetID, http.StatusNotFound)
		return
	}

	coord, ok := parseTileCoord(r, ds.Store.Ext)
	if !ok {
		http.Error(w, "invalid tile coordinate", http.StatusBadRequest)
		return
	}

	key := cache.TileKey(datasetID, coord)
	if data, hit := s.cache.GetTile(key); hit {
		s.serveTile(w, ds, data)
		return
	}

	if data, err := ds.Store.Read(coord); err == nil {
		s.cache.SetTile(key, data)
		s.serveTile(w, ds, data)
		return
	}

	// Tile must be rendered. Never queue: a full semaphore means the
	// client should retry, not pile up goroutines behind slow renders.
	if !s.sem.TryAcquire(1) {
		w.Header().Set("Retry-After", "1")
		http.Error(w, ErrCapacityExceeded.Error()+", retry shortly", http.StatusServiceUnavailable)
		return
	}
	defer s.sem.Release(1)

	jobID := s.jobs.Begin(datasetID, coord.String())
	done := false
	defer func() { s.jobs.End(jobID, done) }()

	renderer, err := s.registry.Renderer(datasetID)
	if err != nil {
		log.Printf("[Live] renderer for %s: %v", datasetID, err)
		http.Error(w, "renderer unavailable", http.StatusInternalServerError)
		return
	}

	// Coarse milestones; renderers expose no finer-grained progress.
	s.jobs.Update(jobID, progressRendering)
	filler := render.NewParentFiller(ds.Store, renderer)
	data, err := filler.Render(coord.Level, coord.X, coord.Y)
	if err != nil {
		log.Printf("[Live] render %s %s: %v", datasetID, coord, err)
		http.Error(w, "tile render failed", http.StatusInternalServerError)
		return
	}
	s.jobs.Update(jobID, progressPersisting)
	if err := ds.Store.WriteAtomic(coord, data); err != nil {
		log.Printf("[Live] persist %s %s: %v", datasetID, coord, err)
		http.Error(w, "tile write failed", http.StatusInternalServerError)
		return
	}

	s.cache.SetTile(key, data)
	done = true
	s.serveTile(w, ds, data)
}

func (s *liveServer) serveTile(w http.ResponseWriter, ds *Dataset, data []byte) {
	w.Header().Set("Content-Type", contentTypeForExt(ds.Store.Ext))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// parseTileCoord extracts and validates the tile coordinate from the URL,
// tolerating an extension suffix on the y segment.
func parseTileCoord(r *http.Request, ext string) (tiles.Coord, bool) {
	yParam := chi.URLParam(r, "y")
	yParam = strings.TrimSuffix(yParam, "."+ext)

	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		return tiles.Coord{}, false
	}
	x, err := strconv.Atoi(chi.URLParam(r, "x"))
	if err != nil {
		return tiles.Coord{}, false
	}
	y, err := strconv.Atoi(yParam)
	if err != nil {
		return tiles.Coord{}, false
	}

	c := tiles.Coord{Level: level, X: x, Y: y}
	return c, c.Valid()
}

func contentTypeForExt(ext string) string {
	switch ext {
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

package api

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/deepzoom-tiles/server/internal/render"
	"github.com/deepzoom-tiles/server/internal/tiles"
)

// DatasetInfo contains information about a dataset for the API response.
type DatasetInfo struct {
	ID       string `json:"id"`
	TileSize int    `json:"tile_size"`
	Ext      string `json:"ext"`
}

// Dataset is one configured tile dataset served live.
type Dataset struct {
	ID           string
	Store        *tiles.Store
	TileSize     int
	RendererSpec render.Spec
}

// DatasetRegistry holds the datasets and lazily constructed renderer
// instances. Renderers are built on first use per dataset and kept in a
// bounded LRU so reconstruction cost is not paid per request.
type DatasetRegistry struct {
	datasets       map[string]*Dataset
	datasetOrder   []string
	defaultDataset string

	renderReg *render.Registry

	mu        sync.Mutex
	renderers *lru.Cache[string, render.Renderer]
}

// NewDatasetRegistry creates a registry. rendererCacheSize bounds the number
// of live renderer instances kept at once.
func NewDatasetRegistry(defaultDataset string, renderReg *render.Registry, rendererCacheSize int) (*DatasetRegistry, error) {
	if rendererCacheSize <= 0 {
		rendererCacheSize = 8
	}
	renderers, err := lru.New[string, render.Renderer](rendererCacheSize)
	if err != nil {
		return nil, err
	}
	return &DatasetRegistry{
		datasets:       make(map[string]*Dataset),
		defaultDataset: defaultDataset,
		renderReg:      renderReg,
		renderers:      renderers,
	}, nil
}

// Register adds a dataset.
func (r *DatasetRegistry) Register(ds *Dataset) {
	r.datasets[ds.ID] = ds
	r.datasetOrder = append(r.datasetOrder, ds.ID)
}

// Get returns the dataset, or nil if not configured.
func (r *DatasetRegistry) Get(id string) *Dataset {
	return r.datasets[id]
}

// DefaultDatasetID returns the default dataset ID.
func (r *DatasetRegistry) DefaultDatasetID() string {
	return r.defaultDataset
}

// DatasetIDs returns all dataset IDs in registration order.
func (r *DatasetRegistry) DatasetIDs() []string {
	return r.datasetOrder
}

// Datasets returns dataset info for all registered datasets.
func (r *DatasetRegistry) Datasets() []DatasetInfo {
	infos := make([]DatasetInfo, 0, len(r.datasetOrder))
	for _, id := range r.datasetOrder {
		ds := r.datasets[id]
		infos = append(infos, DatasetInfo{ID: id, TileSize: ds.TileSize, Ext: ds.Store.Ext})
	}
	return infos
}

// Renderer returns the dataset's renderer, constructing it on first use.
func (r *DatasetRegistry) Renderer(id string) (render.Renderer, error) {
	ds := r.datasets[id]
	if ds == nil {
		return nil, fmt.Errorf("dataset not found: %s", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rd, ok := r.renderers.Get(id); ok {
		return rd, nil
	}
	rd, err := r.renderReg.New(ds.RendererSpec)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", id, err)
	}
	r.renderers.Add(id, rd)
	return rd, nil
}

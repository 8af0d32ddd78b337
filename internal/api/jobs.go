package api

import (
	"sync"
	"time"
)

// JobProgress is the externally visible state of one in-flight live render.
type JobProgress struct {
	Dataset   string    `json:"dataset"`
	Tile      string    `json:"tile"`
	Percent   int       `json:"percent"`
	StartedAt time.Time `json:"started_at"`
}

// RenderJobs tracks in-flight live renders for backpressure accounting and
// the /status endpoint. Job IDs increase monotonically for the life of the
// server; entries exist only while their request is being served.
type RenderJobs struct {
	mu        sync.Mutex
	nextID    uint64
	inFlight  int
	completed uint64
	jobs      map[uint64]*JobProgress
}

// NewRenderJobs creates an empty tracker.
func NewRenderJobs() *RenderJobs {
	return &RenderJobs{jobs: make(map[uint64]*JobProgress)}
}

// Begin registers a render and returns its job ID.
func (j *RenderJobs) Begin(dataset, tile string) uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.nextID++
	id := j.nextID
	j.inFlight++
	j.jobs[id] = &JobProgress{Dataset: dataset, Tile: tile, StartedAt: time.Now()}
	return id
}

// Update records coarse progress for a job.
func (j *RenderJobs) Update(id uint64, percent int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if jp, ok := j.jobs[id]; ok {
		jp.Percent = percent
	}
}

// End clears a job. Runs on every exit path, success or failure.
func (j *RenderJobs) End(id uint64, ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, exists := j.jobs[id]; !exists {
		return
	}
	delete(j.jobs, id)
	j.inFlight--
	if ok {
		j.completed++
	}
}

// StatusSnapshot is the /status payload.
type StatusSnapshot struct {
	InFlight  int                    `json:"in_flight"`
	Capacity  int                    `json:"capacity"`
	Completed uint64                 `json:"completed"`
	Jobs      map[uint64]JobProgress `json:"jobs"`
}

// Snapshot returns a copy of the current state.
func (j *RenderJobs) Snapshot(capacity int) StatusSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	jobs := make(map[uint64]JobProgress, len(j.jobs))
	for id, jp := range j.jobs {
		jobs[id] = *jp
	}
	return StatusSnapshot{
		InFlight:  j.inFlight,
		Capacity:  capacity,
		Completed: j.completed,
		Jobs:      jobs,
	}
}

// Package generate executes tile render task lists across a bounded worker
// pool with progress reporting and periodic manifest persistence.
package generate

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deepzoom-tiles/server/internal/render"
	"github.com/deepzoom-tiles/server/internal/tiles"
)

// Coordinator runs render tasks for one dataset invocation. Each pool worker
// instantiates its own renderer from the serializable spec, so renderers
// holding native resources are never shared across workers.
type Coordinator struct {
	Store    *tiles.Store
	Registry *render.Registry

	// ProgressInterval is the wall-clock period for throughput/ETA logging
	// and manifest flushes. Zero means 10s.
	ProgressInterval time.Duration
}

// Stats summarizes one Run.
type Stats struct {
	Generated int
	Failed    int
	Elapsed   time.Duration
}

// Run renders the task list. workers == 0 executes sequentially in the
// calling goroutine (debug mode); otherwise a pool of max(1, workers)
// workers drains the list with unordered completion. A renderer that does
// not support parallel rendering forces the pool down to one worker.
//
// Individual render failures are counted and logged, not fatal. A pool-level
// failure (a worker that cannot construct its renderer) degrades the
// remaining work to sequential in-process execution instead of aborting.
func (c *Coordinator) Run(ctx context.Context, tasks []tiles.Coord, spec render.Spec, workers int) (Stats, error) {
	start := time.Now()

	probe, err := c.Registry.New(spec)
	if err != nil {
		return Stats{}, fmt.Errorf("configure renderer: %w", err)
	}

	total := len(tasks)
	if total == 0 {
		log.Printf("[Generate] no new tiles needed")
		return Stats{Elapsed: time.Since(start)}, nil
	}

	if workers > 1 && !render.SupportsParallel(probe) {
		log.Printf("[Generate] renderer does not support parallel rendering; forcing 1 worker")
		workers = 1
	}

	var done, generated, failed int64

	stopProgress := c.startProgress(total, &done, start)
	defer stopProgress()

	if workers == 0 {
		log.Printf("[Generate] rendering %d tiles sequentially (debug mode)", total)
		c.renderAll(ctx, render.NewParentFiller(c.Store, probe), tasks, nil, &done, &generated, &failed)
		return Stats{Generated: int(generated), Failed: int(failed), Elapsed: time.Since(start)}, nil
	}

	if workers < 1 {
		workers = 1
	}
	lowerPriority()
	log.Printf("[Generate] rendering %d tiles with %d workers", total, workers)

	completed := make([]atomic.Bool, total)

	// The task channel is filled and closed before the workers start, so a
	// worker that exits without consuming leaves no goroutine blocked on a
	// send.
	idxCh := make(chan int, total)
	for i := range tasks {
		idxCh <- i
	}
	close(idxCh)

	var poolMu sync.Mutex
	var poolErr error

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := c.Registry.New(spec)
			if err != nil {
				poolMu.Lock()
				if poolErr == nil {
					poolErr = err
				}
				poolMu.Unlock()
				return
			}
			filler := render.NewParentFiller(c.Store, r)
			for i := range idxCh {
				if ctx.Err() != nil {
					return
				}
				c.runTask(filler, tasks[i], &generated, &failed)
				completed[i].Store(true)
				atomic.AddInt64(&done, 1)
			}
		}()
	}

	wg.Wait()

	if poolErr != nil && ctx.Err() == nil {
		var remaining []tiles.Coord
		for i := range tasks {
			if !completed[i].Load() {
				remaining = append(remaining, tasks[i])
			}
		}
		if len(remaining) > 0 {
			log.Printf("[Generate] worker pool failed (%v); retrying %d remaining tiles sequentially", poolErr, len(remaining))
			c.renderAll(ctx, render.NewParentFiller(c.Store, probe), remaining, nil, &done, &generated, &failed)
		}
	}

	return Stats{Generated: int(generated), Failed: int(failed), Elapsed: time.Since(start)}, ctx.Err()
}

// renderAll drains tasks in the calling goroutine.
func (c *Coordinator) renderAll(ctx context.Context, filler render.Renderer, tasks []tiles.Coord, completed []atomic.Bool, done, generated, failed *int64) {
	for i, coord := range tasks {
		if ctx.Err() != nil {
			return
		}
		c.runTask(filler, coord, generated, failed)
		if completed != nil {
			completed[i].Store(true)
		}
		atomic.AddInt64(done, 1)
	}
}

// runTask renders and persists one tile. A renderer error or panic is
// confined to this task.
func (c *Coordinator) runTask(filler render.Renderer, coord tiles.Coord, generated, failed *int64) {
	created, err := c.renderOne(filler, coord)
	if err != nil {
		atomic.AddInt64(failed, 1)
		log.Printf("[Generate] tile %s failed: %v", coord, err)
		return
	}
	if created {
		atomic.AddInt64(generated, 1)
	}
}

func (c *Coordinator) renderOne(filler render.Renderer, coord tiles.Coord) (created bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()

	// Another worker or a previous run may have produced it already.
	if c.Store.Exists(coord) {
		return false, nil
	}
	data, err := filler.Render(coord.Level, coord.X, coord.Y)
	if err != nil {
		return false, err
	}
	if err := c.Store.WriteAtomic(coord, data); err != nil {
		return false, err
	}
	return true, nil
}

// startProgress logs throughput/ETA and flushes the manifest on a fixed
// wall-clock interval, so long batch runs expose live progress externally
// without paying manifest I/O per tile.
func (c *Coordinator) startProgress(total int, done *int64, start time.Time) func() {
	interval := c.ProgressInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	stop := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				d := atomic.LoadInt64(done)
				elapsed := time.Since(start).Seconds()
				rate := float64(d) / elapsed
				eta := "?"
				if rate > 0 {
					eta = time.Duration(float64(total-int(d)) / rate * float64(time.Second)).Round(time.Second).String()
				}
				log.Printf("[Generate] %d/%d tiles (%.1f tiles/s, ETA %s)", d, total, rate, eta)
				if n, err := c.Store.WriteManifest(); err != nil {
					log.Printf("[Generate] manifest flush failed: %v", err)
				} else {
					log.Printf("[Generate] manifest flushed (%d tiles)", n)
				}
			}
		}
	}()
	return func() { once.Do(func() { close(stop) }) }
}

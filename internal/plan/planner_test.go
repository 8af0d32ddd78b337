package plan

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/deepzoom-tiles/server/internal/camera"
	"github.com/deepzoom-tiles/server/internal/tiles"
	"github.com/deepzoom-tiles/server/internal/view"
)

func testPlanner(t *testing.T) *Planner {
	t.Helper()
	return &Planner{
		Store:    tiles.NewStore(t.TempDir(), "png"),
		Viewport: view.Viewport{Width: 1024, Height: 768, TileSize: 512, Margin: 1},
	}
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func zoomPath(t *testing.T, from, to float64) *camera.Path {
	t.Helper()
	path, err := camera.NewPath([]camera.Keyframe{
		{Camera: &camera.RawCamera{Level: from, X: dec("0.5"), Y: dec("0.5")}},
		{Camera: &camera.RawCamera{Level: to, X: dec("0.5"), Y: dec("0.5")}},
	}, nil)
	if err != nil {
		t.Fatalf("NewPath: %v", err)
	}
	return path
}

func TestPlanSortedAndUnique(t *testing.T) {
	p := testPlanner(t)
	tasks := p.Plan(zoomPath(t, 0, 4), SamplingPolicy{Samples: 100})
	if len(tasks) == 0 {
		t.Fatal("plan should not be empty")
	}

	for i := 1; i < len(tasks); i++ {
		if !tiles.Less(tasks[i-1], tasks[i]) {
			t.Fatalf("tasks not strictly ordered at %d: %s then %s", i, tasks[i-1], tasks[i])
		}
	}
	if tasks[0] != (tiles.Coord{Level: 0, X: 0, Y: 0}) {
		t.Fatalf("first task = %s, want the root tile", tasks[0])
	}
}

func TestPlanIdempotentAfterRender(t *testing.T) {
	p := testPlanner(t)
	path := zoomPath(t, 0, 3)
	policy := SamplingPolicy{Samples: 50}

	tasks := p.Plan(path, policy)
	for _, c := range tasks {
		if err := p.Store.WriteAtomic(c, []byte("t")); err != nil {
			t.Fatal(err)
		}
	}

	if again := p.Plan(path, policy); len(again) != 0 {
		t.Fatalf("second plan should be empty, got %d tasks (first: %s)", len(again), again[0])
	}
}

func TestPlanFullPyramid(t *testing.T) {
	p := testPlanner(t)
	tasks := p.PlanFullPyramid(2)
	if len(tasks) != 1+4+16 {
		t.Fatalf("full pyramid to level 2 has %d tiles, want 21", len(tasks))
	}

	if err := p.Store.WriteAtomic(tiles.Coord{Level: 1, X: 0, Y: 0}, []byte("t")); err != nil {
		t.Fatal(err)
	}
	if got := len(p.PlanFullPyramid(2)); got != 20 {
		t.Fatalf("existing tile not filtered: %d tasks, want 20", got)
	}
}

func TestPlanExplicitDedup(t *testing.T) {
	p := testPlanner(t)
	in := []tiles.Coord{
		{Level: 2, X: 1, Y: 1},
		{Level: 0, X: 0, Y: 0},
		{Level: 2, X: 1, Y: 1},
	}
	tasks := p.PlanExplicit(in)
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2 after dedup", len(tasks))
	}
	if tasks[0] != (tiles.Coord{Level: 0, X: 0, Y: 0}) || tasks[1] != (tiles.Coord{Level: 2, X: 1, Y: 1}) {
		t.Fatalf("tasks = %v, want sorted [0/0/0 2/1/1]", tasks)
	}
}

func TestSamplingPolicyCount(t *testing.T) {
	path := zoomPath(t, 0, 4) // arc length 4

	if got := (SamplingPolicy{Samples: 7}).count(path); got != 7 {
		t.Errorf("fixed policy count = %d, want 7", got)
	}
	if got := (SamplingPolicy{}).count(path); got != defaultSamples {
		t.Errorf("default policy count = %d, want %d", got, defaultSamples)
	}
	if got := (SamplingPolicy{PerUnit: 10}).count(path); got != 40 {
		t.Errorf("per-unit policy count = %d, want 40", got)
	}
	if got := (SamplingPolicy{PerUnit: 1e9, MaxSamples: 500}).count(path); got != 500 {
		t.Errorf("capped policy count = %d, want 500", got)
	}
	if got := (SamplingPolicy{PerUnit: 0.001}).count(path); got != 2 {
		t.Errorf("tiny per-unit count = %d, want the floor of 2", got)
	}
}

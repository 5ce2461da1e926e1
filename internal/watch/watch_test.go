package watch

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/talgya/crisis-grid/internal/api"
	"github.com/talgya/crisis-grid/internal/engine"
	"github.com/talgya/crisis-grid/internal/metrics"
	"github.com/talgya/crisis-grid/internal/world"
)

func startSim(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	l := world.Layout{
		Name:      "corridor",
		Width:     3,
		Height:    1,
		Depot:     world.Pos(0, 0),
		Hospitals: []world.Position{world.Pos(2, 0)},
		Survivors: 1,
	}
	sim, err := engine.NewSimulation(l, engine.DefaultParams())
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
	eng := engine.NewEngine(sim, engine.PlannerFunc(func(context.Context, engine.State) (engine.Plan, error) {
		return engine.Plan{}, nil
	}))
	srv := httptest.NewServer((&api.Server{Eng: eng, RunID: "r1", AdminKey: "k"}).Handler())
	t.Cleanup(srv.Close)
	return srv, eng
}

func TestObserve(t *testing.T) {
	srv, eng := startSim(t)
	eng.Step(context.Background())

	o := NewObserver(srv.URL)
	if !o.Ready() {
		t.Fatal("API not ready")
	}
	snap, err := o.Observe()
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if snap.Status.RunID != "r1" || snap.Status.Tick != 1 || snap.Metrics.Tick != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Status.Census.Spawned != 1 || snap.Hospitals.ServiceRate != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestObserveUnreachable(t *testing.T) {
	o := NewObserver("http://127.0.0.1:1")
	if o.Ready() {
		t.Fatal("closed port reported ready")
	}
	if _, err := o.Observe(); err == nil {
		t.Fatal("expected error")
	}
}

func TestActorStop(t *testing.T) {
	srv, _ := startSim(t)
	res, err := NewActor(srv.URL, "k").Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if res.Message == "" {
		t.Fatalf("result = %+v", res)
	}
	if _, err := NewActor(srv.URL, "wrong").Stop(); err == nil {
		t.Fatal("wrong key accepted")
	}
}

func snap(run string, tick uint64, rescued, deaths, spawned int, queues ...int) *Snapshot {
	s := &Snapshot{
		Status: Status{RunID: run, Tick: tick, Census: engine.Census{Spawned: spawned, Rescued: rescued, Deaths: deaths}},
		Metrics: metrics.Snapshot{
			Tick:     tick,
			Counters: metrics.Counters{Rescued: rescued, Deaths: deaths},
		},
		At: time.Unix(int64(tick), 0),
	}
	for i, n := range queues {
		s.Hospitals.Queues = append(s.Hospitals.Queues, engine.QueueLen{Hospital: [2]int{i, 0}, Len: n})
	}
	return s
}

func TestTriage(t *testing.T) {
	tests := []struct {
		name string
		prev *Snapshot
		cur  *Snapshot
		want Level
	}{
		{"first look", nil, snap("r", 10, 0, 0, 5, 1), LevelHealthy},
		{"overflow", nil, snap("r", 10, 0, 0, 5, 11, 0), LevelCritical},
		{"dying faster", snap("r", 10, 1, 0, 5), snap("r", 20, 1, 2, 5), LevelCritical},
		{"some deaths", snap("r", 10, 1, 0, 5), snap("r", 20, 3, 1, 5), LevelWarning},
		{"queue building", nil, snap("r", 10, 0, 0, 5, 6), LevelWarning},
		{"stalled", snap("r", 10, 1, 0, 5), snap("r", 10, 1, 0, 5), LevelWatch},
		{"restart ignored", snap("r", 50, 0, 4, 5), snap("r2", 5, 0, 0, 5), LevelHealthy},
		{"resolved", snap("r", 10, 3, 1, 5), snap("r", 20, 3, 2, 5), LevelHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Triage(tt.prev, tt.cur, 10).Level; got != tt.want {
				t.Fatalf("level = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTriageRates(t *testing.T) {
	h := Triage(snap("r", 10, 1, 0, 9), snap("r", 30, 4, 0, 9), 10)
	if h.Ticks != 20 || h.RescuedDelta != 3 || h.TicksPerSec != 1 {
		t.Fatalf("health = %+v", h)
	}
}

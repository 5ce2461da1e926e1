package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/crisis-grid/internal/world"
)

// Planner produces the commands for the next tick from a state snapshot.
type Planner interface {
	Plan(ctx context.Context, st State) (Plan, error)
}

// PlannerFunc adapts a function to the Planner interface.
type PlannerFunc func(ctx context.Context, st State) (Plan, error)

// Plan implements Planner.
func (f PlannerFunc) Plan(ctx context.Context, st State) (Plan, error) {
	return f(ctx, st)
}

// Engine drives a simulation forward, asking the planner for each tick's
// commands. The planner is called outside the simulation lock; the tick itself
// runs to completion under it.
type Engine struct {
	Sim     *Simulation
	Planner Planner

	MaxTicks         uint64        // 0 = no cap
	StopWhenResolved bool          // stop once every survivor is rescued or dead
	Interval         time.Duration // pause between ticks, 0 = run flat out
	ReportEvery      uint64        // ticks between progress reports, 0 = never

	// OnTick is called after each committed tick, under the simulation lock.
	OnTick func(res TickResult)

	mu      sync.RWMutex
	stopped atomic.Bool
}

// NewEngine creates an engine for sim driven by planner.
func NewEngine(sim *Simulation, planner Planner) *Engine {
	return &Engine{
		Sim:         sim,
		Planner:     planner,
		ReportEvery: 50,
	}
}

// Stop asks a running loop to return after the current tick.
func (e *Engine) Stop() {
	e.stopped.Store(true)
}

// View runs fn with shared access to the simulation.
func (e *Engine) View(fn func(sim *Simulation)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.Sim)
}

// Step plans and commits one tick. A planner error is logged and the tick
// proceeds with whatever plan was returned, so the world keeps moving.
func (e *Engine) Step(ctx context.Context) TickResult {
	start := time.Now()

	e.mu.RLock()
	st := e.Sim.ExportState()
	e.mu.RUnlock()

	plan, err := e.Planner.Plan(ctx, st)
	if err != nil {
		slog.Warn("planner failed, committing partial plan", "tick", st.Tick+1, "error", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	res := e.Sim.Step(plan)
	if e.OnTick != nil {
		e.OnTick(res)
	}

	if e.ReportEvery > 0 && res.Tick%e.ReportEvery == 0 {
		e.report(res, time.Since(start))
	}
	return res
}

// Run steps until the tick cap, resolution, Stop, or context cancellation.
// It returns the context error when cancelled and nil otherwise.
func (e *Engine) Run(ctx context.Context) error {
	e.stopped.Store(false)
	slog.Info("simulation engine started",
		"tick", e.Sim.CurrentTick(),
		"max_ticks", e.MaxTicks,
		"survivors", e.Sim.TotalSpawned,
	)

	for !e.stopped.Load() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.MaxTicks > 0 && e.Sim.CurrentTick() >= e.MaxTicks {
			break
		}
		if e.StopWhenResolved && e.resolved() {
			slog.Info("all survivors resolved", "tick", e.Sim.CurrentTick())
			break
		}

		e.Step(ctx)

		if e.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.Interval):
			}
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Sim.CurrentTick())
	return nil
}

func (e *Engine) resolved() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.Sim.Census().Resolved()
}

func (e *Engine) report(res TickResult, took time.Duration) {
	c := e.Sim.Census()
	m := res.Metrics
	slog.Info("tick report",
		"tick", humanize.Comma(int64(res.Tick)),
		"rescued", m.Rescued,
		"deaths", m.Deaths,
		"active", c.Active,
		"enqueued", c.Enqueued,
		"carried", c.Carried,
		"fires", len(e.Sim.Grid.Positions(world.CellFire)),
		"avg_rescue_time", humanize.FtoaWithDigits(m.AvgRescueTime, 2),
		"took", took,
	)
}

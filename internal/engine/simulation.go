// Package engine advances the crisis world one tick at a time. A tick applies
// planner commands in agent registration order, runs the environment, serves
// hospital queues, removes resolved survivors and commits metrics.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/crisis-grid/internal/agents"
	"github.com/talgya/crisis-grid/internal/dynamics"
	"github.com/talgya/crisis-grid/internal/entropy"
	"github.com/talgya/crisis-grid/internal/hospital"
	"github.com/talgya/crisis-grid/internal/metrics"
	"github.com/talgya/crisis-grid/internal/world"
)

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

// Phase is where the simulation is within a tick.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseDeciding
	PhaseCommitting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDeciding:
		return "deciding"
	case PhaseCommitting:
		return "committing"
	}
	return "unknown"
}

// Event is a notable occurrence in the world.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "death", "rescue", "overflow", "aftershock", "fire"
}

// Plan is everything a planner hands over for one tick: the commands and the
// planner-side counters to fold into the run metrics.
type Plan struct {
	Commands    []agents.Command
	ToolCalls   int
	InvalidJSON int
	Replans     int
}

// Outcome records what one agent's command did this tick.
type Outcome struct {
	AgentID agents.AgentID `json:"agent_id"`
	Effect  string         `json:"effect"`
}

// TickResult summarises one committed tick.
type TickResult struct {
	Tick      uint64               `json:"tick"`
	Outcomes  []Outcome            `json:"outcomes"`
	Unmatched int                  `json:"unmatched"` // commands for unknown agents or survivors
	Ignited   []world.Position     `json:"ignited,omitempty"`
	Shock     dynamics.Shock       `json:"shock"`
	Admitted  []hospital.Admission `json:"admitted,omitempty"`
	Overflows []world.Position     `json:"overflows,omitempty"`
	Died      []agents.AgentID     `json:"died,omitempty"`
	Removed   []agents.AgentID     `json:"removed,omitempty"`
	Events    []Event              `json:"events,omitempty"` // recorded this tick, kept even after the log is trimmed
	Metrics   metrics.Snapshot     `json:"metrics"`
}

// Simulation holds the complete world state of one run. It is not safe for
// concurrent use; Engine serialises access.
type Simulation struct {
	Grid      *world.Grid
	Agents    *agents.Registry
	Hospitals *hospital.Service
	Metrics   *metrics.Collector
	Params    Params
	Layout    world.Layout
	Events    []Event
	LastTick  uint64 // Most recent tick committed

	// Survivors placed at initialization; the conservation total.
	TotalSpawned int

	rng     *entropy.Source
	depot   world.Position
	phase   Phase
	pending map[agents.AgentID]agents.Command
	delta   metrics.Delta
}

// NewSimulation builds the grid from layout, registers hospitals, spawns the
// response team on the depot and scatters survivors. Only an invalid layout is
// an error.
func NewSimulation(layout world.Layout, params Params) (*Simulation, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}

	rng := entropy.New(params.Seed)
	s := &Simulation{
		Grid:      layout.BuildGrid(),
		Agents:    agents.NewRegistry(),
		Hospitals: hospital.NewService(params.HospitalServiceRate, params.OverflowThreshold),
		Metrics:   metrics.NewCollector(),
		Params:    params,
		Layout:    layout,
		rng:       rng,
		depot:     layout.Depot,
		pending:   make(map[agents.AgentID]agents.Command),
	}
	for _, h := range layout.Hospitals {
		if s.Grid.InBounds(h) {
			s.Hospitals.Register(h)
		}
	}

	spawner := agents.NewSpawner(params.Spawn, rng)
	for _, a := range spawner.SpawnTeam(s.depot) {
		s.Agents.Add(a)
	}
	survivors := spawner.PlaceSurvivors(s.Grid, layout.Survivors)
	for _, a := range survivors {
		s.Agents.Add(a)
	}
	s.TotalSpawned = len(survivors)
	if len(survivors) < layout.Survivors {
		slog.Warn("fewer survivors placed than requested",
			"requested", layout.Survivors,
			"placed", len(survivors),
		)
	}

	return s, nil
}

// CurrentTick returns the most recently committed tick number.
func (s *Simulation) CurrentTick() uint64 {
	return s.LastTick
}

// Phase returns the current tick phase.
func (s *Simulation) Phase() Phase {
	return s.phase
}

// Depot returns the depot position.
func (s *Simulation) Depot() world.Position {
	return s.depot
}

// RNG exposes the simulation's random source, for deriving planner streams.
func (s *Simulation) RNG() *entropy.Source {
	return s.rng
}

// Census counts where every spawned survivor currently is.
type Census struct {
	Spawned  int `json:"spawned"`
	Active   int `json:"active"`
	Enqueued int `json:"enqueued"`
	Carried  int `json:"carried"`
	Rescued  int `json:"rescued"`
	Deaths   int `json:"deaths"`
}

// Balanced reports whether every spawned survivor is accounted for exactly once.
func (c Census) Balanced() bool {
	return c.Rescued+c.Deaths+c.Active+c.Enqueued+c.Carried == c.Spawned
}

// Resolved reports whether every spawned survivor has been rescued or has died.
func (c Census) Resolved() bool {
	return c.Rescued+c.Deaths == c.Spawned
}

// Census takes a survivor census. Meaningful between ticks.
func (s *Simulation) Census() Census {
	snap := s.Metrics.Snapshot()
	c := Census{
		Spawned:  s.TotalSpawned,
		Enqueued: s.Hospitals.TotalWaiting(),
		Rescued:  snap.Rescued,
		Deaths:   snap.Deaths,
	}
	for _, a := range s.Agents.All() {
		switch {
		case a.Active():
			c.Active++
		case a.Kind == agents.KindMedic && a.Carrying:
			c.Carried++
		}
	}
	return c
}

func (s *Simulation) recordEvent(tick uint64, category, format string, args ...any) {
	s.Events = append(s.Events, Event{
		Tick:        tick,
		Description: fmt.Sprintf(format, args...),
		Category:    category,
	})
}

func (s *Simulation) trimEvents() {
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
}

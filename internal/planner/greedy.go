// Package planner turns exported world state into per-tick commands, either with
// a rule-based greedy policy or by prompting a language model.
package planner

import (
	"context"

	"github.com/talgya/crisis-grid/internal/agents"
	"github.com/talgya/crisis-grid/internal/engine"
	"github.com/talgya/crisis-grid/internal/entropy"
	"github.com/talgya/crisis-grid/internal/world"
)

// SensorConfig tunes drone scans.
type SensorConfig struct {
	Radius int
	FP     float64
	FN     float64
}

// DefaultSensorConfig matches the stock drone payload.
func DefaultSensorConfig() SensorConfig {
	return SensorConfig{Radius: 2, FP: 0.1, FN: 0.1}
}

// droneReserve is the battery margin kept on top of the distance home.
const droneReserve = 2

// Greedy is a rule-based planner. Medics fetch the nearest survivor, preferring
// ones a drone has sighted, and carry them to the nearest hospital. Trucks work
// the nearest hazard and resupply when empty. Drones sweep the map scanning for
// survivors and return to recharge before their battery runs out. Every agent
// moves at most one cell per tick.
type Greedy struct {
	sensors SensorConfig
	rng     *entropy.Source

	sighted   map[world.Position]bool
	returning map[string]bool
	waypoint  map[string]int
}

// NewGreedy creates a greedy planner drawing sensor noise from rng.
func NewGreedy(sensors SensorConfig, rng *entropy.Source) *Greedy {
	return &Greedy{
		sensors:   sensors,
		rng:       rng,
		sighted:   make(map[world.Position]bool),
		returning: make(map[string]bool),
		waypoint:  make(map[string]int),
	}
}

// Plan implements engine.Planner. Each drone scan counts as one tool call.
func (g *Greedy) Plan(_ context.Context, st engine.State) (engine.Plan, error) {
	var plan engine.Plan
	depot := engine.Position(st.Depot)

	survivors := make(map[world.Position]bool, len(st.Survivors))
	for _, s := range st.Survivors {
		survivors[engine.Position(s.Pos)] = true
	}
	for p := range g.sighted {
		if !survivors[p] {
			delete(g.sighted, p)
		}
	}

	for _, a := range st.Agents {
		if a.Kind != agents.KindDrone.String() {
			continue
		}
		pos := engine.Position(a.Pos)
		d := Scan(st, pos, g.sensors.Radius, g.sensors.FP, g.sensors.FN, g.rng)
		plan.ToolCalls++
		for _, p := range d.Survivors {
			g.sighted[p] = true
		}
	}

	// Medics already standing on a survivor claim it before anyone picks targets.
	claimed := make(map[world.Position]string)
	for _, a := range st.Agents {
		p := engine.Position(a.Pos)
		if a.Kind == agents.KindMedic.String() && !a.Carrying && survivors[p] && claimed[p] == "" {
			claimed[p] = a.ID
		}
	}

	for _, a := range st.Agents {
		id, ok := agents.ParseAgentID(a.ID)
		if !ok {
			continue
		}
		pos := engine.Position(a.Pos)

		var cmd *agents.Command
		switch a.Kind {
		case agents.KindMedic.String():
			cmd = g.medic(id, a, pos, st, survivors, claimed)
		case agents.KindTruck.String():
			cmd = truck(id, a, pos, depot, st)
		case agents.KindDrone.String():
			cmd = g.drone(id, a, pos, depot, st)
		}
		if cmd != nil {
			plan.Commands = append(plan.Commands, *cmd)
		}
	}
	return plan, nil
}

func (g *Greedy) medic(id agents.AgentID, a engine.AgentState, pos world.Position, st engine.State,
	survivors map[world.Position]bool, claimed map[world.Position]string) *agents.Command {
	if a.Carrying {
		h, ok := nearest(pos, hospitals(st))
		if !ok {
			return nil
		}
		if h == pos {
			return act(id, agents.ActDropAtHospital)
		}
		return move(id, step(pos, h))
	}

	if survivors[pos] && claimed[pos] == a.ID {
		return act(id, agents.ActPickupSurvivor)
	}

	var targets []world.Position
	for _, s := range st.Survivors {
		p := engine.Position(s.Pos)
		if g.sighted[p] && claimed[p] == "" {
			targets = append(targets, p)
		}
	}
	if len(targets) == 0 {
		for _, s := range st.Survivors {
			if p := engine.Position(s.Pos); claimed[p] == "" {
				targets = append(targets, p)
			}
		}
	}
	t, ok := nearest(pos, targets)
	if !ok {
		return nil
	}
	claimed[t] = a.ID
	return move(id, step(pos, t))
}

func truck(id agents.AgentID, a engine.AgentState, pos, depot world.Position, st engine.State) *agents.Command {
	if a.Resource != nil && *a.Resource <= 0 {
		if pos == depot {
			return act(id, agents.ActResupply)
		}
		return move(id, step(pos, depot))
	}

	fires, rubble := positions(st.Fires), positions(st.Rubble)
	primary, secondary := fires, rubble
	if a.Mode == agents.ModeTools.String() {
		primary, secondary = rubble, fires
	}
	t, ok := nearest(pos, primary)
	if !ok {
		if t, ok = nearest(pos, secondary); !ok {
			return nil
		}
	}
	if t == pos {
		for _, f := range fires {
			if f == pos {
				return act(id, agents.ActExtinguishFire)
			}
		}
		return act(id, agents.ActClearRubble)
	}
	return move(id, step(pos, t))
}

func (g *Greedy) drone(id agents.AgentID, a engine.AgentState, pos, depot world.Position, st engine.State) *agents.Command {
	battery := 0
	if a.Battery != nil {
		battery = *a.Battery
	}
	if battery <= world.Manhattan(pos, depot)+droneReserve {
		g.returning[a.ID] = true
	}
	if g.returning[a.ID] {
		if pos == depot {
			delete(g.returning, a.ID)
			return act(id, agents.ActRecharge)
		}
		return move(id, step(pos, depot))
	}

	route := sweep(st.Grid.W, st.Grid.H, g.sensors.Radius)
	if len(route) == 0 {
		return nil
	}
	i := g.waypoint[a.ID] % len(route)
	if route[i] == pos {
		i = (i + 1) % len(route)
		g.waypoint[a.ID] = i
	}
	return move(id, step(pos, route[i]))
}

// sweep is a serpentine route whose lanes are one scan width apart.
func sweep(w, h, radius int) []world.Position {
	if w <= 0 || h <= 0 {
		return nil
	}
	lane := 2*radius + 1
	if lane < 1 {
		lane = 1
	}
	var route []world.Position
	left := true
	for y := min(radius, h-1); y < h; y += lane {
		if left {
			route = append(route, world.Pos(min(radius, w-1), y), world.Pos(max(w-1-radius, 0), y))
		} else {
			route = append(route, world.Pos(max(w-1-radius, 0), y), world.Pos(min(radius, w-1), y))
		}
		left = !left
	}
	return route
}

// step moves one cell from 'from' toward 'to', closing the x gap first.
func step(from, to world.Position) world.Position {
	switch {
	case from.X < to.X:
		return world.Pos(from.X+1, from.Y)
	case from.X > to.X:
		return world.Pos(from.X-1, from.Y)
	case from.Y < to.Y:
		return world.Pos(from.X, from.Y+1)
	case from.Y > to.Y:
		return world.Pos(from.X, from.Y-1)
	}
	return from
}

// nearest returns the closest candidate by Manhattan distance, first wins ties.
func nearest(from world.Position, candidates []world.Position) (world.Position, bool) {
	best, bestDist, found := world.Position{}, 0, false
	for _, c := range candidates {
		if d := world.Manhattan(from, c); !found || d < bestDist {
			best, bestDist, found = c, d, true
		}
	}
	return best, found
}

func hospitals(st engine.State) []world.Position {
	out := make([]world.Position, 0, len(st.Hospitals))
	for _, h := range st.Hospitals {
		out = append(out, engine.Position(h.Pos))
	}
	return out
}

func positions(pairs [][2]int) []world.Position {
	out := make([]world.Position, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, engine.Position(p))
	}
	return out
}

func move(id agents.AgentID, to world.Position) *agents.Command {
	c := agents.Move(id, to)
	return &c
}

func act(id agents.AgentID, action agents.ActionKind) *agents.Command {
	c := agents.Act(id, action)
	return &c
}

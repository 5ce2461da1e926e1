package engine

import (
	"log/slog"

	"github.com/talgya/crisis-grid/internal/agents"
	"github.com/talgya/crisis-grid/internal/dynamics"
	"github.com/talgya/crisis-grid/internal/metrics"
	"github.com/talgya/crisis-grid/internal/world"
)

// Step advances the world by exactly one tick.
//
// Commands are applied sequentially in agent registration order, so an earlier
// agent's effect this tick is visible to a later agent's command in the same
// pass. Unknown agent ids and commands addressed to survivors are dropped. When
// several commands target one agent, the last one wins.
func (s *Simulation) Step(plan Plan) TickResult {
	tick := s.LastTick + 1
	res := TickResult{Tick: tick}
	s.delta = metrics.Delta{
		ToolCalls:   plan.ToolCalls,
		InvalidJSON: plan.InvalidJSON,
		Replans:     plan.Replans,
	}

	s.phase = PhaseDeciding
	res.Unmatched = s.assign(plan.Commands)
	res.Outcomes = s.decide()

	s.phase = PhaseCommitting
	logged := len(s.Events)
	s.runDynamics(tick, &res)
	s.serveHospitals(tick, &res)
	s.removeResolved(tick, &res)

	res.Metrics = s.Metrics.Commit(tick, s.delta)
	res.Events = append([]Event(nil), s.Events[logged:]...)
	s.trimEvents()

	s.clearPending()
	s.LastTick = tick
	s.phase = PhaseIdle

	slog.Debug("tick committed",
		"tick", tick,
		"commands", len(plan.Commands),
		"unmatched", res.Unmatched,
		"ignited", len(res.Ignited),
		"admitted", len(res.Admitted),
		"died", len(res.Died),
	)
	return res
}

// assign attaches each command to its agent and returns how many were dropped.
func (s *Simulation) assign(cmds []agents.Command) int {
	unmatched := 0
	for _, c := range cmds {
		a := s.Agents.Get(c.AgentID)
		if a == nil || !a.Responder() {
			unmatched++
			continue
		}
		s.pending[a.ID] = c
	}
	for id, c := range s.pending {
		cmd := c
		s.Agents.Get(id).Pending = &cmd
	}
	return unmatched
}

// decide runs every agent once, in registration order.
func (s *Simulation) decide() []Outcome {
	w := simWorld{s}
	var outcomes []Outcome
	for _, a := range s.Agents.All() {
		switch a.Kind {
		case agents.KindSurvivor:
			agents.Countdown(a)
			continue
		case agents.KindDrone:
			s.delta.EnergyUsed += agents.Drain(a)
		}
		if a.Pending == nil {
			continue
		}
		eff := agents.Apply(a, *a.Pending, w)
		switch eff {
		case agents.EffectExtinguished:
			s.delta.FiresExtinguished++
		case agents.EffectRubbleCleared:
			s.delta.RoadsCleared++
		}
		outcomes = append(outcomes, Outcome{AgentID: a.ID, Effect: eff.String()})
	}
	return outcomes
}

func (s *Simulation) runDynamics(tick uint64, res *TickResult) {
	res.Ignited = dynamics.SpreadFire(s.Grid, s.rng, s.Params.PFireSpread)
	for _, p := range res.Ignited {
		s.recordEvent(tick, "fire", "fire spread to %s", p)
	}

	res.Shock = dynamics.Aftershock(s.Grid, s.rng, s.Params.PAftershock)
	if res.Shock.Struck {
		if res.Shock.Collapsed {
			s.recordEvent(tick, "aftershock", "aftershock collapsed %s", res.Shock.Epicenter)
		} else {
			s.recordEvent(tick, "aftershock", "aftershock at %s caused no collapse", res.Shock.Epicenter)
		}
	}
}

func (s *Simulation) serveHospitals(tick uint64, res *TickResult) {
	report := s.Hospitals.Serve(tick)
	res.Admitted = report.Admitted
	res.Overflows = report.Overflows
	for _, adm := range report.Admitted {
		s.delta.AdmissionTicks = append(s.delta.AdmissionTicks, adm.Tick)
		s.recordEvent(tick, "rescue", "survivor %s admitted at %s", adm.SurvivorID, adm.Hospital)
	}
	s.delta.HospitalOverflowEvents += len(report.Overflows)
	for _, h := range report.Overflows {
		s.recordEvent(tick, "overflow", "hospital %s queue at %d", h, s.Hospitals.QueueLen(h))
	}
}

// removeResolved computes the set of dead and picked survivors from the
// post-decide state, then removes them from the registry in one pass.
func (s *Simulation) removeResolved(tick uint64, res *TickResult) {
	var remove []agents.AgentID
	for _, a := range s.Agents.All() {
		if a.Kind != agents.KindSurvivor {
			continue
		}
		switch {
		case a.Dead:
			res.Died = append(res.Died, a.ID)
			remove = append(remove, a.ID)
		case a.Picked:
			remove = append(remove, a.ID)
		}
	}

	s.delta.Deaths += len(res.Died)
	for _, id := range res.Died {
		s.recordEvent(tick, "death", "survivor %s died", id)
	}
	s.Agents.RemoveAll(remove)
	res.Removed = remove
}

func (s *Simulation) clearPending() {
	for id := range s.pending {
		if a := s.Agents.Get(id); a != nil {
			a.Pending = nil
		}
		delete(s.pending, id)
	}
}

// simWorld is the agents.World view of a simulation.
type simWorld struct {
	s *Simulation
}

func (w simWorld) At(p world.Position) world.CellType        { return w.s.Grid.At(p) }
func (w simWorld) Set(p world.Position, t world.CellType)    { w.s.Grid.Set(p, t) }
func (w simWorld) InBounds(p world.Position) bool            { return w.s.Grid.InBounds(p) }
func (w simWorld) Depot() world.Position                     { return w.s.depot }
func (w simWorld) SurvivorAt(p world.Position) *agents.Agent { return w.s.Agents.SurvivorAt(p) }

func (w simWorld) EnqueueSurvivor(p world.Position, id agents.AgentID) bool {
	_, ok := w.s.Hospitals.Enqueue(p, id)
	return ok
}

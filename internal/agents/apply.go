package agents

import "github.com/talgya/crisis-grid/internal/world"

// World is the view of the simulation an agent needs to apply its command.
type World interface {
	At(p world.Position) world.CellType
	Set(p world.Position, t world.CellType)
	InBounds(p world.Position) bool
	Depot() world.Position
	SurvivorAt(p world.Position) *Agent
	// EnqueueSurvivor hands a survivor to the hospital at p (or the nearest one).
	EnqueueSurvivor(p world.Position, id AgentID) bool
}

// Effect reports what a command did. EffectNone covers every ignored command.
type Effect uint8

const (
	EffectNone Effect = iota
	EffectMoved
	EffectPickedUp
	EffectDropped
	EffectExtinguished
	EffectRubbleCleared
	EffectRecharged
	EffectResupplied
)

var effectNames = [...]string{
	EffectNone:          "none",
	EffectMoved:         "moved",
	EffectPickedUp:      "picked_up",
	EffectDropped:       "dropped",
	EffectExtinguished:  "extinguished",
	EffectRubbleCleared: "rubble_cleared",
	EffectRecharged:     "recharged",
	EffectResupplied:    "resupplied",
}

func (e Effect) String() string {
	if int(e) < len(effectNames) {
		return effectNames[e]
	}
	return "unknown"
}

// Apply executes cmd for agent a against w. Commands that are malformed, meant
// for another kind, or whose preconditions are unmet have no effect.
func Apply(a *Agent, cmd Command, w World) Effect {
	if a.Kind == KindSurvivor {
		return EffectNone
	}
	switch cmd.Type {
	case CmdMove:
		if !w.InBounds(cmd.To) {
			return EffectNone
		}
		a.Position = cmd.To
		return EffectMoved
	case CmdAct:
		switch a.Kind {
		case KindMedic:
			return medicAct(a, cmd.Action, w)
		case KindTruck:
			return truckAct(a, cmd.Action, w)
		case KindDrone:
			return droneAct(a, cmd.Action, w)
		}
	}
	return EffectNone
}

func medicAct(a *Agent, action ActionKind, w World) Effect {
	switch action {
	case ActPickupSurvivor:
		if a.Carrying {
			return EffectNone
		}
		s := w.SurvivorAt(a.Position)
		if s == nil {
			return EffectNone
		}
		s.Picked = true
		a.Carrying = true
		a.CarriedID = s.ID
		return EffectPickedUp
	case ActDropAtHospital:
		if !a.Carrying || w.At(a.Position) != world.CellHospital {
			return EffectNone
		}
		if !w.EnqueueSurvivor(a.Position, a.CarriedID) {
			return EffectNone
		}
		a.Carrying = false
		a.CarriedID = 0
		return EffectDropped
	}
	return EffectNone
}

func truckAct(a *Agent, action ActionKind, w World) Effect {
	switch action {
	case ActExtinguishFire:
		if a.ResourceLevel <= 0 || w.At(a.Position) != world.CellFire {
			return EffectNone
		}
		w.Set(a.Position, world.CellRoad)
		a.ResourceLevel--
		return EffectExtinguished
	case ActClearRubble:
		if a.ResourceLevel <= 0 || w.At(a.Position) != world.CellRubble {
			return EffectNone
		}
		w.Set(a.Position, world.CellRoad)
		a.ResourceLevel--
		return EffectRubbleCleared
	case ActResupply:
		if !atDepot(a, w) {
			return EffectNone
		}
		a.ResourceLevel = a.ResourceMax
		return EffectResupplied
	}
	return EffectNone
}

func droneAct(a *Agent, action ActionKind, w World) Effect {
	if action != ActRecharge || !atDepot(a, w) {
		return EffectNone
	}
	a.BatteryLevel = a.BatteryMax
	return EffectRecharged
}

// atDepot requires both the depot coordinate and an intact depot cell; a layout
// may stamp another terrain over the depot position.
func atDepot(a *Agent, w World) bool {
	return a.Position == w.Depot() && w.At(a.Position) == world.CellDepot
}

// Countdown advances a survivor's deadline by one tick. It returns true when the
// survivor died on this tick. Picked and already-dead survivors are untouched.
func Countdown(a *Agent) bool {
	if a.Kind != KindSurvivor || a.Picked || a.Dead {
		return false
	}
	a.Deadline--
	if a.Deadline <= 0 {
		a.Deadline = 0
		a.Dead = true
		return true
	}
	return false
}

// Drain spends one unit of drone battery per tick and returns the units spent.
func Drain(a *Agent) int {
	if a.Kind != KindDrone || a.BatteryLevel <= 0 {
		return 0
	}
	a.BatteryLevel--
	return 1
}

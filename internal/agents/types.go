// Package agents provides the agent data model, command model and per-kind
// command application for the crisis simulation.
package agents

import (
	"strconv"

	"github.com/talgya/crisis-grid/internal/world"
)

// AgentID is a unique identifier for an agent, issued in registration order.
type AgentID uint64

// String returns the decimal form used on the planner wire format.
func (id AgentID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseAgentID parses the planner wire form of an id.
func ParseAgentID(s string) (AgentID, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return AgentID(n), true
}

// Kind selects which variant fields of an Agent are meaningful.
type Kind uint8

const (
	KindSurvivor Kind = iota
	KindMedic
	KindTruck
	KindDrone
)

func (k Kind) String() string {
	switch k {
	case KindSurvivor:
		return "survivor"
	case KindMedic:
		return "medic"
	case KindTruck:
		return "truck"
	case KindDrone:
		return "drone"
	default:
		return "unknown"
	}
}

// TruckMode is the loadout a truck carries. It is reported to planners; both
// truck actions draw from the same resource pool.
type TruckMode uint8

const (
	ModeWater TruckMode = iota
	ModeTools
)

func (m TruckMode) String() string {
	if m == ModeTools {
		return "tools"
	}
	return "water"
}

// ParseTruckMode accepts "water" or "tools".
func ParseTruckMode(s string) (TruckMode, bool) {
	switch s {
	case "water":
		return ModeWater, true
	case "tools":
		return ModeTools, true
	}
	return ModeWater, false
}

// Agent is a grid-occupying entity. Kind decides which variant block applies;
// fields of other variants stay at their zero values.
type Agent struct {
	ID       AgentID        `json:"id"`
	Kind     Kind           `json:"kind"`
	Position world.Position `json:"position"`

	// Survivor
	Deadline int  `json:"deadline,omitempty"` // Ticks left before death while not picked
	Picked   bool `json:"picked,omitempty"`
	Dead     bool `json:"dead,omitempty"`

	// Medic
	Carrying  bool    `json:"carrying,omitempty"`
	CarriedID AgentID `json:"carried_id,omitempty"` // Valid only while Carrying

	// Truck
	Mode          TruckMode `json:"mode,omitempty"`
	ResourceMax   int       `json:"resource_max,omitempty"`
	ResourceLevel int       `json:"resource_level,omitempty"`

	// Drone
	BatteryMax   int `json:"battery_max,omitempty"`
	BatteryLevel int `json:"battery_level,omitempty"`

	// Pending command for the current tick; never set on survivors.
	Pending *Command `json:"-"`
}

// Active reports whether a survivor is still on the grid awaiting rescue.
func (a *Agent) Active() bool {
	return a.Kind == KindSurvivor && !a.Picked && !a.Dead
}

// Responder reports whether the agent accepts planner commands.
func (a *Agent) Responder() bool {
	return a.Kind != KindSurvivor
}

package engine

import (
	"github.com/talgya/crisis-grid/internal/agents"
	"github.com/talgya/crisis-grid/internal/world"
)

// State is the snapshot handed to planners before a tick.
type State struct {
	Tick      uint64          `json:"tick"`
	Grid      GridSize        `json:"grid"`
	Depot     [2]int          `json:"depot"`
	Agents    []AgentState    `json:"agents"`
	Hospitals []HospitalState `json:"hospitals"`
	Fires     [][2]int        `json:"fires"`
	Rubble    [][2]int        `json:"rubble"`
	Survivors []SurvivorState `json:"survivors"`
}

// GridSize is the exported grid dimensions.
type GridSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

// AgentState describes one responder. Level fields are nil for kinds they do not apply to.
type AgentState struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Pos      [2]int `json:"pos"`
	Battery  *int   `json:"battery"`
	Resource *int   `json:"resource"`
	Mode     string `json:"mode,omitempty"`
	Carrying bool   `json:"carrying"`
}

// HospitalState describes one hospital.
type HospitalState struct {
	Pos      [2]int `json:"pos"`
	QueueLen int    `json:"queue_len"`
}

// SurvivorState describes one survivor still on the grid.
type SurvivorState struct {
	ID       string `json:"id"`
	Pos      [2]int `json:"pos"`
	Deadline int    `json:"deadline"`
}

// QueueState is the hospital queue summary with the service rate.
type QueueState struct {
	Queues      []QueueLen `json:"queues"`
	ServiceRate int        `json:"service_rate"`
}

// QueueLen is one entry of QueueState.
type QueueLen struct {
	Hospital [2]int `json:"hospital"`
	Len      int    `json:"len"`
}

// ExportState builds the planner snapshot. Agents and survivors are listed in
// registration order.
func (s *Simulation) ExportState() State {
	st := State{
		Tick:   s.LastTick,
		Grid:   GridSize{W: s.Grid.Width(), H: s.Grid.Height()},
		Depot:  s.depot.Pair(),
		Fires:  pairs(s.Grid.Positions(world.CellFire)),
		Rubble: pairs(s.Grid.Positions(world.CellRubble)),
	}

	for _, a := range s.Agents.All() {
		if a.Kind == agents.KindSurvivor {
			if a.Active() {
				st.Survivors = append(st.Survivors, SurvivorState{
					ID:       a.ID.String(),
					Pos:      a.Position.Pair(),
					Deadline: a.Deadline,
				})
			}
			continue
		}
		as := AgentState{
			ID:       a.ID.String(),
			Kind:     a.Kind.String(),
			Pos:      a.Position.Pair(),
			Carrying: a.Carrying,
		}
		switch a.Kind {
		case agents.KindDrone:
			battery := a.BatteryLevel
			as.Battery = &battery
		case agents.KindTruck:
			level := a.ResourceLevel
			as.Resource = &level
			as.Mode = a.Mode.String()
		}
		st.Agents = append(st.Agents, as)
	}

	for _, h := range s.Hospitals.Hospitals() {
		st.Hospitals = append(st.Hospitals, HospitalState{
			Pos:      h.Pair(),
			QueueLen: s.Hospitals.QueueLen(h),
		})
	}
	return st
}

// HospitalQueueState summarises queue lengths and the service rate.
func (s *Simulation) HospitalQueueState() QueueState {
	qs := QueueState{ServiceRate: s.Hospitals.Rate()}
	for _, h := range s.Hospitals.Hospitals() {
		qs.Queues = append(qs.Queues, QueueLen{Hospital: h.Pair(), Len: s.Hospitals.QueueLen(h)})
	}
	return qs
}

func pairs(ps []world.Position) [][2]int {
	out := make([][2]int, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Pair())
	}
	return out
}

// Position converts an exported pair back into a grid position.
func Position(pair [2]int) world.Position {
	return world.Pos(pair[0], pair[1])
}

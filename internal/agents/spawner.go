// Agent spawning: creates the response team at the depot and scatters
// survivors over eligible terrain.
package agents

import (
	"github.com/talgya/crisis-grid/internal/entropy"
	"github.com/talgya/crisis-grid/internal/world"
)

// SpawnConfig controls the initial team and survivor deadlines.
type SpawnConfig struct {
	Drones       int
	Medics       int
	Trucks       int
	DroneBattery int
	TruckMode    TruckMode
	TruckMax     int
	DeadlineMin  int // Inclusive lower bound for survivor deadlines
	DeadlineMax  int // Inclusive upper bound
}

// DefaultSpawnConfig returns the standard team: one drone, two medics, one truck.
func DefaultSpawnConfig() SpawnConfig {
	return SpawnConfig{
		Drones:       1,
		Medics:       2,
		Trucks:       1,
		DroneBattery: 80,
		TruckMode:    ModeWater,
		TruckMax:     30,
		DeadlineMin:  120,
		DeadlineMax:  260,
	}
}

// placementAttemptsPerSurvivor bounds the random search for eligible cells.
const placementAttemptsPerSurvivor = 50

// Spawner creates agents with sequential ids.
type Spawner struct {
	cfg    SpawnConfig
	rng    *entropy.Source
	nextID AgentID
}

// NewSpawner creates a spawner drawing from rng.
func NewSpawner(cfg SpawnConfig, rng *entropy.Source) *Spawner {
	return &Spawner{cfg: cfg, rng: rng, nextID: 1}
}

func (s *Spawner) issue() AgentID {
	id := s.nextID
	s.nextID++
	return id
}

// SpawnTeam creates drones, then medics, then trucks, all on the depot.
// Negative counts and capacities are treated as zero.
func (s *Spawner) SpawnTeam(depot world.Position) []*Agent {
	drones, medics, trucks := max(s.cfg.Drones, 0), max(s.cfg.Medics, 0), max(s.cfg.Trucks, 0)
	battery, truckMax := max(s.cfg.DroneBattery, 0), max(s.cfg.TruckMax, 0)
	team := make([]*Agent, 0, drones+medics+trucks)
	for i := 0; i < drones; i++ {
		team = append(team, &Agent{
			ID:           s.issue(),
			Kind:         KindDrone,
			Position:     depot,
			BatteryMax:   battery,
			BatteryLevel: battery,
		})
	}
	for i := 0; i < medics; i++ {
		team = append(team, &Agent{
			ID:       s.issue(),
			Kind:     KindMedic,
			Position: depot,
		})
	}
	for i := 0; i < trucks; i++ {
		team = append(team, &Agent{
			ID:            s.issue(),
			Kind:          KindTruck,
			Position:      depot,
			Mode:          s.cfg.TruckMode,
			ResourceMax:   truckMax,
			ResourceLevel: truckMax,
		})
	}
	return team
}

// Eligible reports whether survivors may be placed on t.
func Eligible(t world.CellType) bool {
	switch t {
	case world.CellBuilding, world.CellRubble, world.CellRoad, world.CellEmpty:
		return true
	}
	return false
}

// PlaceSurvivors scatters up to n survivors on eligible cells of g. The search
// gives up after 50·n attempts, so fewer than n may be returned on crowded maps.
func (s *Spawner) PlaceSurvivors(g *world.Grid, n int) []*Agent {
	if n <= 0 || g.Width() == 0 || g.Height() == 0 {
		return nil
	}
	out := make([]*Agent, 0, n)
	for attempts := 0; len(out) < n && attempts < n*placementAttemptsPerSurvivor; attempts++ {
		p := world.Pos(s.rng.Intn(g.Width()), s.rng.Intn(g.Height()))
		if !Eligible(g.At(p)) {
			continue
		}
		out = append(out, &Agent{
			ID:       s.issue(),
			Kind:     KindSurvivor,
			Position: p,
			Deadline: s.rng.Between(s.cfg.DeadlineMin, s.cfg.DeadlineMax),
		})
	}
	return out
}

package dynamics

import (
	"github.com/talgya/crisis-grid/internal/entropy"
	"github.com/talgya/crisis-grid/internal/world"
)

// Collapsible reports whether an aftershock turns t into rubble.
func Collapsible(t world.CellType) bool {
	return t == world.CellRoad || t == world.CellBuilding
}

// Shock is the outcome of one aftershock roll.
type Shock struct {
	Struck    bool           // The aftershock happened this tick
	Epicenter world.Position // Valid when Struck
	Collapsed bool           // The epicenter became rubble
}

// Aftershock rolls once with probability p. On a hit it picks one cell
// uniformly (x then y) and turns it to rubble if it is a road or building.
func Aftershock(g *world.Grid, rng *entropy.Source, p float64) Shock {
	if !rng.Chance(p) {
		return Shock{}
	}
	pos := world.Pos(rng.Intn(g.Width()), rng.Intn(g.Height()))
	s := Shock{Struck: true, Epicenter: pos}
	if Collapsible(g.At(pos)) {
		g.Set(pos, world.CellRubble)
		s.Collapsed = true
	}
	return s
}

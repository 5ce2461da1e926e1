// Package dynamics implements the per-tick environmental rules: fire spread and
// aftershocks. Both are functions of the current grid and the simulation's
// random source only.
package dynamics

import (
	"github.com/talgya/crisis-grid/internal/entropy"
	"github.com/talgya/crisis-grid/internal/world"
)

// Flammable reports whether fire may spread onto t.
func Flammable(t world.CellType) bool {
	switch t {
	case world.CellEmpty, world.CellRoad, world.CellBuilding, world.CellRubble:
		return true
	}
	return false
}

// SpreadFire ignites flammable orthogonal neighbors of burning cells, each with
// probability p. Candidates are gathered over the whole grid before any is
// applied, so cells ignited this tick do not spread until the next one. One
// value is drawn per (fire, flammable neighbor) pair in row-major fire order.
// Returns the newly ignited cells in the order they were first chosen.
func SpreadFire(g *world.Grid, rng *entropy.Source, p float64) []world.Position {
	var ignite []world.Position
	chosen := make(map[world.Position]bool)

	for _, fire := range g.Positions(world.CellFire) {
		for _, n := range fire.Neighbors4() {
			if !Flammable(g.At(n)) {
				continue
			}
			if rng.Chance(p) && !chosen[n] {
				chosen[n] = true
				ignite = append(ignite, n)
			}
		}
	}

	for _, pos := range ignite {
		g.Set(pos, world.CellFire)
	}
	return ignite
}

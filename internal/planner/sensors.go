package planner

import (
	"github.com/talgya/crisis-grid/internal/engine"
	"github.com/talgya/crisis-grid/internal/entropy"
	"github.com/talgya/crisis-grid/internal/world"
)

// Detections is what one noisy scan reports.
type Detections struct {
	Fires     []world.Position `json:"fires"`
	Survivors []world.Position `json:"survivors"`
}

// Scan reports fires and survivors within a Chebyshev radius of center. A real
// fire or survivor is missed with probability fn; a fire-free cell is reported
// burning with probability fp. Cells are visited row by row, then survivors in
// state order, one draw each.
func Scan(st engine.State, center world.Position, radius int, fp, fn float64, rng *entropy.Source) Detections {
	fires := make(map[world.Position]bool, len(st.Fires))
	for _, f := range st.Fires {
		fires[engine.Position(f)] = true
	}

	var d Detections
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			p := world.Pos(center.X+dx, center.Y+dy)
			if p.X < 0 || p.Y < 0 || p.X >= st.Grid.W || p.Y >= st.Grid.H {
				continue
			}
			if fires[p] {
				if rng.Float() > fn {
					d.Fires = append(d.Fires, p)
				}
			} else if rng.Float() < fp {
				d.Fires = append(d.Fires, p)
			}
		}
	}

	for _, s := range st.Survivors {
		p := engine.Position(s.Pos)
		if abs(p.X-center.X) > radius || abs(p.Y-center.Y) > radius {
			continue
		}
		if rng.Float() > fn {
			d.Survivors = append(d.Survivors, p)
		}
	}
	return d
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

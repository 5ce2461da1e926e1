// Package world provides the terrain grid and spatial primitives for the crisis simulation.
// All terrain reads and writes go through Grid so bounds are enforced in one place.
package world

import "fmt"

// CellType is the terrain label of a single grid cell.
type CellType uint8

const (
	CellEmpty    CellType = iota // Open ground
	CellRoad                     // Passable street, default fill
	CellBuilding                 // Standing structure
	CellRubble                   // Collapsed structure, cleared by trucks
	CellFire                     // Burning, extinguished by trucks
	CellHospital                 // Admits survivors from its queue
	CellDepot                    // Recharge and resupply point

	// CellUnknown is returned for coordinates outside the grid.
	CellUnknown CellType = 255
)

var cellNames = [...]string{
	CellEmpty:    "empty",
	CellRoad:     "road",
	CellBuilding: "building",
	CellRubble:   "rubble",
	CellFire:     "fire",
	CellHospital: "hospital",
	CellDepot:    "depot",
}

// String returns the lowercase name used in exported state.
func (c CellType) String() string {
	if int(c) < len(cellNames) {
		return cellNames[c]
	}
	return "unknown"
}

// ParseCellType maps an exported name back to its CellType.
func ParseCellType(name string) (CellType, bool) {
	for i, n := range cellNames {
		if n == name {
			return CellType(i), true
		}
	}
	return CellUnknown, false
}

// Position is an integer grid coordinate with origin (0,0).
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pos is shorthand for Position{X: x, Y: y}.
func Pos(x, y int) Position {
	return Position{X: x, Y: y}
}

// Pair returns the position as the [x, y] pair used by the planner wire format.
func (p Position) Pair() [2]int {
	return [2]int{p.X, p.Y}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// neighborOffsets are the four orthogonal directions, in a fixed order.
var neighborOffsets = [4]Position{
	{X: 1, Y: 0},
	{X: -1, Y: 0},
	{X: 0, Y: 1},
	{X: 0, Y: -1},
}

// Neighbors4 returns the four orthogonal neighbors. Some may be out of bounds.
func (p Position) Neighbors4() [4]Position {
	var out [4]Position
	for i, d := range neighborOffsets {
		out[i] = Position{X: p.X + d.X, Y: p.Y + d.Y}
	}
	return out
}

// Manhattan returns the taxicab distance between two positions.
func Manhattan(a, b Position) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// Grid holds the terrain of a width × height world.
type Grid struct {
	width  int
	height int
	cells  []CellType // row-major, y*width + x
}

// NewGrid creates a grid with every cell set to fill.
func NewGrid(width, height int, fill CellType) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	g := &Grid{
		width:  width,
		height: height,
		cells:  make([]CellType, width*height),
	}
	for i := range g.cells {
		g.cells[i] = fill
	}
	return g
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// InBounds reports whether p lies inside the grid.
func (g *Grid) InBounds(p Position) bool {
	return p.X >= 0 && p.X < g.width && p.Y >= 0 && p.Y < g.height
}

// At returns the cell type at p, or CellUnknown when p is out of bounds.
func (g *Grid) At(p Position) CellType {
	if !g.InBounds(p) {
		return CellUnknown
	}
	return g.cells[p.Y*g.width+p.X]
}

// Set changes the cell at p. Out-of-bounds writes are ignored.
func (g *Grid) Set(p Position, t CellType) {
	if !g.InBounds(p) {
		return
	}
	g.cells[p.Y*g.width+p.X] = t
}

// Positions returns every coordinate holding t, scanning rows top to bottom.
func (g *Grid) Positions(t CellType) []Position {
	var out []Position
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if g.cells[y*g.width+x] == t {
				out = append(out, Position{X: x, Y: y})
			}
		}
	}
	return out
}

// Counts returns how many cells hold each type.
func (g *Grid) Counts() map[CellType]int {
	counts := make(map[CellType]int)
	for _, c := range g.cells {
		counts[c]++
	}
	return counts
}

// Clone returns an independent copy of the grid.
func (g *Grid) Clone() *Grid {
	cp := &Grid{width: g.width, height: g.height, cells: make([]CellType, len(g.cells))}
	copy(cp.cells, g.cells)
	return cp
}

// Equal reports whether two grids have identical dimensions and terrain.
func (g *Grid) Equal(o *Grid) bool {
	if g.width != o.width || g.height != o.height {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d)", g.width, g.height)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

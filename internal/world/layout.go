package world

import (
	"errors"
	"fmt"
)

// Layout describes the initial terrain of a scenario and how many survivors to place.
type Layout struct {
	Name      string     `json:"name"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Depot     Position   `json:"depot"`
	Hospitals []Position `json:"hospitals"`
	Rubble    []Position `json:"rubble"`
	Fires     []Position `json:"initial_fires"`
	Buildings []Position `json:"buildings"`
	Survivors int        `json:"survivors"`
}

// DefaultDepot is used when a layout does not name one.
var DefaultDepot = Position{X: 1, Y: 1}

// Validate checks the parts of a layout the simulation cannot recover from.
func (l Layout) Validate() error {
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("grid dimensions must be positive, got %dx%d", l.Width, l.Height)
	}
	if l.Depot.X < 0 || l.Depot.X >= l.Width || l.Depot.Y < 0 || l.Depot.Y >= l.Height {
		return fmt.Errorf("depot %s outside %dx%d grid", l.Depot, l.Width, l.Height)
	}
	if l.Survivors < 0 {
		return errors.New("survivor count must not be negative")
	}
	return nil
}

// BuildGrid stamps the layout onto a road-filled grid. Later categories
// overwrite earlier ones: depot, hospitals, rubble, fires, buildings.
// Out-of-bounds coordinates are skipped.
func (l Layout) BuildGrid() *Grid {
	g := NewGrid(l.Width, l.Height, CellRoad)
	g.Set(l.Depot, CellDepot)
	for _, p := range l.Hospitals {
		g.Set(p, CellHospital)
	}
	for _, p := range l.Rubble {
		g.Set(p, CellRubble)
	}
	for _, p := range l.Fires {
		g.Set(p, CellFire)
	}
	for _, p := range l.Buildings {
		g.Set(p, CellBuilding)
	}
	return g
}

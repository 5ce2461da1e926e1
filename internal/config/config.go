// Package config loads scenario files: the map layout, simulation parameters
// and run settings.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/crisis-grid/internal/agents"
	"github.com/talgya/crisis-grid/internal/engine"
	"github.com/talgya/crisis-grid/internal/world"
)

// File is a scenario file.
type File struct {
	Map MapConfig `yaml:"map"`
	Sim SimConfig `yaml:"sim"`
	Run RunConfig `yaml:"run"`
}

// Pair is an [x, y] coordinate as written in scenario files.
type Pair [2]int

// MapConfig is the initial terrain. Cells not listed are road.
type MapConfig struct {
	Name      string `yaml:"name"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Depot     *Pair  `yaml:"depot"`
	Hospitals []Pair `yaml:"hospitals"`
	Rubble    []Pair `yaml:"rubble"`
	Fires     []Pair `yaml:"initial_fires"`
	Buildings []Pair `yaml:"buildings"`
	Survivors *int   `yaml:"survivors"`
}

// SimConfig overrides engine parameters. Unset fields keep the base value.
type SimConfig struct {
	Seed                *int64   `yaml:"seed"`
	PFireSpread         *float64 `yaml:"p_fire_spread"`
	PAftershock         *float64 `yaml:"p_aftershock"`
	HospitalServiceRate *int     `yaml:"hospital_service_rate"`
	OverflowThreshold   *int     `yaml:"overflow_threshold"`

	Drones        *int    `yaml:"drones"`
	Medics        *int    `yaml:"medics"`
	Trucks        *int    `yaml:"trucks"`
	DroneBattery  *int    `yaml:"drone_battery"`
	TruckMode     *string `yaml:"truck_mode"`
	TruckResource *int    `yaml:"truck_resource"`
	DeadlineMin   *int    `yaml:"deadline_min"`
	DeadlineMax   *int    `yaml:"deadline_max"`
}

// RunConfig controls the run loop and planner.
type RunConfig struct {
	Ticks            uint64  `yaml:"ticks"`
	Strategy         string  `yaml:"strategy"`
	StopWhenResolved bool    `yaml:"stop_when_resolved"`
	ReportEvery      uint64  `yaml:"report_every"`
	IntervalMs       int     `yaml:"interval_ms"`
	Model            string  `yaml:"model"`
	SensorRadius     int     `yaml:"sensor_radius"`
	SensorFP         float64 `yaml:"sensor_fp"`
	SensorFN         float64 `yaml:"sensor_fn"`
}

// DefaultSurvivors is placed when a map does not say how many survivors it has.
const DefaultSurvivors = 10

// Default returns the settings used when no scenario file is given.
func Default() File {
	return File{
		Map: MapConfig{Name: "default", Width: 20, Height: 20},
		Run: RunConfig{
			Ticks:            300,
			Strategy:         "greedy",
			StopWhenResolved: true,
			ReportEvery:      50,
			SensorRadius:     2,
			SensorFP:         0.1,
			SensorFN:         0.1,
		},
	}
}

// Load reads a scenario file on top of Default and validates it.
func Load(path string) (File, error) {
	f := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Validate rejects settings the simulation cannot run with.
func (f File) Validate() error {
	var errs []error
	if f.Map.Width <= 0 || f.Map.Height <= 0 {
		errs = append(errs, fmt.Errorf("map: dimensions must be positive, got %dx%d", f.Map.Width, f.Map.Height))
	}
	if f.Map.Survivors != nil && *f.Map.Survivors < 0 {
		errs = append(errs, errors.New("map: survivors must not be negative"))
	}
	for _, prob := range []struct {
		name string
		v    *float64
	}{
		{"p_fire_spread", f.Sim.PFireSpread},
		{"p_aftershock", f.Sim.PAftershock},
	} {
		if prob.v != nil && (*prob.v < 0 || *prob.v > 1) {
			errs = append(errs, fmt.Errorf("sim: %s must be within [0,1], got %g", prob.name, *prob.v))
		}
	}
	for _, n := range []struct {
		name string
		v    *int
	}{
		{"hospital_service_rate", f.Sim.HospitalServiceRate},
		{"overflow_threshold", f.Sim.OverflowThreshold},
		{"drones", f.Sim.Drones},
		{"medics", f.Sim.Medics},
		{"trucks", f.Sim.Trucks},
		{"drone_battery", f.Sim.DroneBattery},
		{"truck_resource", f.Sim.TruckResource},
		{"deadline_min", f.Sim.DeadlineMin},
		{"deadline_max", f.Sim.DeadlineMax},
	} {
		if n.v != nil && *n.v < 0 {
			errs = append(errs, fmt.Errorf("sim: %s must not be negative, got %d", n.name, *n.v))
		}
	}
	if f.Sim.TruckMode != nil {
		if _, ok := agents.ParseTruckMode(*f.Sim.TruckMode); !ok {
			errs = append(errs, fmt.Errorf("sim: unknown truck_mode %q", *f.Sim.TruckMode))
		}
	}
	if f.Sim.DeadlineMin != nil && f.Sim.DeadlineMax != nil && *f.Sim.DeadlineMin > *f.Sim.DeadlineMax {
		errs = append(errs, errors.New("sim: deadline_min exceeds deadline_max"))
	}
	if f.Run.SensorFP < 0 || f.Run.SensorFP > 1 || f.Run.SensorFN < 0 || f.Run.SensorFN > 1 {
		errs = append(errs, errors.New("run: sensor rates must be within [0,1]"))
	}
	return errors.Join(errs...)
}

// Layout converts the map section into a world layout.
func (f File) Layout() world.Layout {
	l := world.Layout{
		Name:      f.Map.Name,
		Width:     f.Map.Width,
		Height:    f.Map.Height,
		Depot:     world.DefaultDepot,
		Hospitals: positions(f.Map.Hospitals),
		Rubble:    positions(f.Map.Rubble),
		Fires:     positions(f.Map.Fires),
		Buildings: positions(f.Map.Buildings),
		Survivors: DefaultSurvivors,
	}
	if f.Map.Depot != nil {
		l.Depot = f.Map.Depot.Position()
	}
	if f.Map.Survivors != nil {
		l.Survivors = *f.Map.Survivors
	}
	return l
}

// Params applies the sim section on top of base.
func (f File) Params(base engine.Params) engine.Params {
	p := base
	s := f.Sim
	set(&p.Seed, s.Seed)
	set(&p.PFireSpread, s.PFireSpread)
	set(&p.PAftershock, s.PAftershock)
	set(&p.HospitalServiceRate, s.HospitalServiceRate)
	set(&p.OverflowThreshold, s.OverflowThreshold)
	set(&p.Spawn.Drones, s.Drones)
	set(&p.Spawn.Medics, s.Medics)
	set(&p.Spawn.Trucks, s.Trucks)
	set(&p.Spawn.DroneBattery, s.DroneBattery)
	set(&p.Spawn.TruckMax, s.TruckResource)
	set(&p.Spawn.DeadlineMin, s.DeadlineMin)
	set(&p.Spawn.DeadlineMax, s.DeadlineMax)
	if s.TruckMode != nil {
		if m, ok := agents.ParseTruckMode(*s.TruckMode); ok {
			p.Spawn.TruckMode = m
		}
	}
	return p
}

// Position converts the pair to a grid position.
func (p Pair) Position() world.Position {
	return world.Pos(p[0], p[1])
}

func positions(ps []Pair) []world.Position {
	out := make([]world.Position, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Position())
	}
	return out
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

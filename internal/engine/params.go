package engine

import (
	"github.com/talgya/crisis-grid/internal/agents"
	"github.com/talgya/crisis-grid/internal/hospital"
)

// Params are the tunable rules of a simulation.
type Params struct {
	Seed                int64
	PFireSpread         float64 // Per (fire, flammable neighbor) ignition probability
	PAftershock         float64 // Per-tick aftershock probability
	HospitalServiceRate int     // Admissions per hospital per tick
	OverflowThreshold   int     // Queue length above which overflow is recorded
	Spawn               agents.SpawnConfig
}

// DefaultParams returns the standard scenario parameters.
func DefaultParams() Params {
	return Params{
		Seed:                42,
		PFireSpread:         0.15,
		PAftershock:         0.02,
		HospitalServiceRate: 2,
		OverflowThreshold:   hospital.DefaultOverflowThreshold,
		Spawn:               agents.DefaultSpawnConfig(),
	}
}

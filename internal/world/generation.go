// Layout generation using layered simplex noise.
// One noise layer decides where the built-up blocks are; a second decides which of
// them have collapsed. Hospitals go to the most open ground, spread apart.
package world

import (
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds layout generation parameters.
type GenConfig struct {
	Width       int
	Height      int
	Seed        int64
	BuildingLvl float64 // Density threshold above which a cell is a building (0.0–1.0)
	RubbleLvl   float64 // Damage threshold above which a building has collapsed (0.0–1.0)
	Hospitals   int
	Fires       int
	Survivors   int
}

// DefaultGenConfig returns a reasonable city block configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:       20,
		Height:      20,
		Seed:        42,
		BuildingLvl: 0.58,
		RubbleLvl:   0.62,
		Hospitals:   2,
		Fires:       3,
		Survivors:   10,
	}
}

// Generate builds a Layout from noise. The same config always yields the same layout.
func Generate(cfg GenConfig) Layout {
	density := opensimplex.NewNormalized(cfg.Seed)
	damage := opensimplex.NewNormalized(cfg.Seed + 1)

	l := Layout{
		Name:      "generated",
		Width:     cfg.Width,
		Height:    cfg.Height,
		Depot:     clampToGrid(DefaultDepot, cfg.Width, cfg.Height),
		Survivors: cfg.Survivors,
	}

	type scored struct {
		pos   Position
		score float64
	}
	var open []scored  // candidate hospital sites, lower density first
	var roads []scored // candidate ignition points, higher damage first

	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			p := Position{X: x, Y: y}
			if p == l.Depot {
				continue
			}
			d := octaveNoise(density, float64(x), float64(y), 3, 0.15, 0.5)
			dmg := octaveNoise(damage, float64(x), float64(y), 2, 0.2, 0.5)

			switch {
			case d > cfg.BuildingLvl && dmg > cfg.RubbleLvl:
				l.Rubble = append(l.Rubble, p)
			case d > cfg.BuildingLvl:
				l.Buildings = append(l.Buildings, p)
			default:
				open = append(open, scored{p, d})
				roads = append(roads, scored{p, dmg})
			}
		}
	}

	sort.SliceStable(open, func(i, j int) bool { return open[i].score < open[j].score })
	minDist := (cfg.Width + cfg.Height) / 4
	if minDist < 2 {
		minDist = 2
	}
	for _, c := range open {
		if len(l.Hospitals) >= cfg.Hospitals {
			break
		}
		if tooClose(c.pos, l.Hospitals, minDist) {
			continue
		}
		l.Hospitals = append(l.Hospitals, c.pos)
	}

	taken := make(map[Position]bool, len(l.Hospitals))
	for _, h := range l.Hospitals {
		taken[h] = true
	}
	sort.SliceStable(roads, func(i, j int) bool { return roads[i].score > roads[j].score })
	for _, c := range roads {
		if len(l.Fires) >= cfg.Fires {
			break
		}
		if taken[c.pos] {
			continue
		}
		l.Fires = append(l.Fires, c.pos)
	}

	return l
}

func tooClose(p Position, placed []Position, minDist int) bool {
	for _, q := range placed {
		if Manhattan(p, q) < minDist {
			return true
		}
	}
	return false
}

func clampToGrid(p Position, w, h int) Position {
	if p.X >= w {
		p.X = w - 1
	}
	if p.Y >= h {
		p.Y = h - 1
	}
	if p.X < 0 {
		p.X = 0
	}
	if p.Y < 0 {
		p.Y = 0
	}
	return p
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// Package entropy provides the seeded random source owned by a simulation.
// Every stochastic rule draws from a Source handed to it explicitly; nothing in
// the simulation reads the math/rand globals, so a seed fully determines a run.
package entropy

import "math/rand"

// StreamSensors offsets the planner's sensor-noise source from the simulation
// seed so planner draws never perturb the world stream.
const StreamSensors int64 = 700

// Source is a deterministic pseudo-random stream. Not safe for concurrent use;
// each simulation owns exactly one.
type Source struct {
	seed int64
	rng  *rand.Rand
	n    uint64 // draws taken, for diagnostics
}

// New creates a source seeded with seed.
func New(seed int64) *Source {
	return &Source{
		seed: seed,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Derive returns an independent source for a separate consumer. The derived
// stream depends only on the base seed and offset, never on draws taken so far.
func (s *Source) Derive(offset int64) *Source {
	return New(s.seed + offset)
}

// Seed returns the seed the source was created with.
func (s *Source) Seed() int64 {
	return s.seed
}

// Draws returns how many values have been drawn.
func (s *Source) Draws() uint64 {
	return s.n
}

// Float returns a value in [0, 1).
func (s *Source) Float() float64 {
	s.n++
	return s.rng.Float64()
}

// Chance returns true with probability p. Exactly one value is drawn
// regardless of p, so the stream position never depends on parameters.
func (s *Source) Chance(p float64) bool {
	return s.Float() < p
}

// Intn returns a value in [0, n). Returns 0 without drawing when n <= 0.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	s.n++
	return s.rng.Intn(n)
}

// Between returns a value in [lo, hi], both ends inclusive.
func (s *Source) Between(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + s.Intn(hi-lo+1)
}

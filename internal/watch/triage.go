package watch

import "fmt"

// Level is the overall assessment of a run.
type Level string

const (
	LevelHealthy  Level = "HEALTHY"
	LevelWatch    Level = "WATCH"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// Health holds signals derived from two consecutive snapshots.
type Health struct {
	Level        Level
	Ticks        uint64 // ticks since the previous observation
	RescuedDelta int
	DeathsDelta  int
	MaxQueue     int
	Overflowing  []string // hospitals over the overflow threshold
	TicksPerSec  float64
	Resolved     bool
}

// Triage compares cur with prev, which may be nil or from another run. Queue
// lengths above threshold are overflows.
func Triage(prev, cur *Snapshot, threshold int) *Health {
	h := &Health{
		Resolved: cur.Status.Census.Resolved(),
	}

	for _, q := range cur.Hospitals.Queues {
		if q.Len > h.MaxQueue {
			h.MaxQueue = q.Len
		}
		if q.Len > threshold {
			h.Overflowing = append(h.Overflowing, fmt.Sprintf("(%d,%d)", q.Hospital[0], q.Hospital[1]))
		}
	}

	// A different run id or a tick that went backwards means the simulation restarted.
	comparable := prev != nil &&
		prev.Status.RunID == cur.Status.RunID &&
		prev.Metrics.Tick <= cur.Metrics.Tick
	if comparable {
		h.Ticks = cur.Metrics.Tick - prev.Metrics.Tick
		h.RescuedDelta = cur.Metrics.Rescued - prev.Metrics.Rescued
		h.DeathsDelta = cur.Metrics.Deaths - prev.Metrics.Deaths
		if dt := cur.At.Sub(prev.At); dt > 0 {
			h.TicksPerSec = float64(h.Ticks) / dt.Seconds()
		}
	}

	switch {
	case h.Resolved:
		h.Level = LevelHealthy
	case len(h.Overflowing) > 0:
		h.Level = LevelCritical
	case h.DeathsDelta > 0 && h.DeathsDelta > h.RescuedDelta:
		h.Level = LevelCritical
	case h.DeathsDelta > 0 || h.MaxQueue > threshold/2:
		h.Level = LevelWarning
	case comparable && h.Ticks == 0:
		h.Level = LevelWatch
	default:
		h.Level = LevelHealthy
	}
	return h
}

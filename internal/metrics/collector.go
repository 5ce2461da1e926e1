// Package metrics keeps the cumulative run counters and exposes them as
// read-only snapshots and Prometheus series.
package metrics

// Counters are the cumulative totals reported for a run.
type Counters struct {
	Rescued                int `json:"rescued"`
	Deaths                 int `json:"deaths"`
	FiresExtinguished      int `json:"fires_extinguished"`
	RoadsCleared           int `json:"roads_cleared"`
	EnergyUsed             int `json:"energy_used"`
	ToolCalls              int `json:"tool_calls"`
	InvalidJSON            int `json:"invalid_json"`
	Replans                int `json:"replans"`
	HospitalOverflowEvents int `json:"hospital_overflow_events"`
}

// Snapshot is the state of the collector at the end of a tick.
type Snapshot struct {
	Tick uint64 `json:"tick"`
	Counters
	AvgRescueTime float64 `json:"avg_rescue_time"`
}

// Delta is a batch of increments gathered during one tick and folded in at commit.
type Delta struct {
	Deaths                 int
	FiresExtinguished      int
	RoadsCleared           int
	EnergyUsed             int
	ToolCalls              int
	InvalidJSON            int
	Replans                int
	HospitalOverflowEvents int
	AdmissionTicks         []uint64 // one entry per survivor admitted
}

// Collector accumulates counters across ticks. The rolling rescue time is the
// mean of the absolute tick numbers at which survivors were admitted.
type Collector struct {
	c            Counters
	admitTickSum uint64
	last         Snapshot
}

// NewCollector creates a zeroed collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Commit folds a tick's delta into the totals and records the snapshot for tick.
func (m *Collector) Commit(tick uint64, d Delta) Snapshot {
	m.c.Deaths += d.Deaths
	m.c.FiresExtinguished += d.FiresExtinguished
	m.c.RoadsCleared += d.RoadsCleared
	m.c.EnergyUsed += d.EnergyUsed
	m.c.ToolCalls += d.ToolCalls
	m.c.InvalidJSON += d.InvalidJSON
	m.c.Replans += d.Replans
	m.c.HospitalOverflowEvents += d.HospitalOverflowEvents
	for _, at := range d.AdmissionTicks {
		m.c.Rescued++
		m.admitTickSum += at
	}

	m.last = Snapshot{Tick: tick, Counters: m.c, AvgRescueTime: m.avgRescueTime()}
	return m.last
}

func (m *Collector) avgRescueTime() float64 {
	if m.c.Rescued == 0 {
		return 0
	}
	return float64(m.admitTickSum) / float64(m.c.Rescued)
}

// Snapshot returns the most recently committed snapshot.
func (m *Collector) Snapshot() Snapshot {
	return m.last
}

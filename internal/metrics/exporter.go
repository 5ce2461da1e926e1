package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Exporter mirrors committed snapshots into Prometheus series. A nil Exporter
// is valid and records nothing.
type Exporter struct {
	gatherer prometheus.Gatherer

	Counters     *prometheus.GaugeVec
	RescueTime   prometheus.Gauge
	Tick         prometheus.Gauge
	TickDuration prometheus.Histogram
	QueueLength  *prometheus.GaugeVec
}

// NewExporter registers the simulation metrics against reg (the default
// registerer when nil).
func NewExporter(reg prometheus.Registerer) (*Exporter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	counters := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crisis_run_counter",
		Help: "Cumulative run counters as of the last committed tick.",
	}, []string{"counter"})
	counters, err := register(reg, counters, "crisis_run_counter")
	if err != nil {
		return nil, err
	}

	rescueTime := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "crisis_avg_rescue_time_ticks",
		Help: "Mean admission tick of rescued survivors.",
	})
	rescueTime, err = register(reg, rescueTime, "crisis_avg_rescue_time_ticks")
	if err != nil {
		return nil, err
	}

	tick := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "crisis_tick",
		Help: "Last committed simulation tick.",
	})
	tick, err = register(reg, tick, "crisis_tick")
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "crisis_tick_duration_seconds",
		Help:    "Wall time spent planning and committing one tick.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})
	duration, err = register(reg, duration, "crisis_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	queue := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crisis_hospital_queue_length",
		Help: "Survivors waiting at each hospital after service.",
	}, []string{"hospital"})
	queue, err = register(reg, queue, "crisis_hospital_queue_length")
	if err != nil {
		return nil, err
	}

	return &Exporter{
		gatherer:     gatherer,
		Counters:     counters,
		RescueTime:   rescueTime,
		Tick:         tick,
		TickDuration: duration,
		QueueLength:  queue,
	}, nil
}

// Gatherer returns the gatherer paired with the registerer used at construction.
func (e *Exporter) Gatherer() prometheus.Gatherer {
	if e == nil {
		return nil
	}
	return e.gatherer
}

// Observe publishes a committed snapshot.
func (e *Exporter) Observe(s Snapshot) {
	if e == nil {
		return
	}
	for name, v := range s.Counters.byName() {
		e.Counters.WithLabelValues(name).Set(float64(v))
	}
	e.RescueTime.Set(s.AvgRescueTime)
	e.Tick.Set(float64(s.Tick))
}

// ObserveTickDuration records how long one tick took end to end.
func (e *Exporter) ObserveTickDuration(d time.Duration) {
	if e == nil {
		return
	}
	e.TickDuration.Observe(d.Seconds())
}

// SetQueueLength publishes the queue length of one hospital.
func (e *Exporter) SetQueueLength(hospital string, n int) {
	if e == nil {
		return
	}
	e.QueueLength.WithLabelValues(hospital).Set(float64(n))
}

func (c Counters) byName() map[string]int {
	return map[string]int{
		"rescued":                  c.Rescued,
		"deaths":                   c.Deaths,
		"fires_extinguished":       c.FiresExtinguished,
		"roads_cleared":            c.RoadsCleared,
		"energy_used":              c.EnergyUsed,
		"tool_calls":               c.ToolCalls,
		"invalid_json":             c.InvalidJSON,
		"replans":                  c.Replans,
		"hospital_overflow_events": c.HospitalOverflowEvents,
	}
}

// register adds c to reg, reusing an already registered collector of the same
// concrete type.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}

package library

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsSubsystem = "bindlib"

// Outcomes of a library load by the registry.
const (
	loadResultFound   = "found"
	loadResultCreated = "created"
	loadResultFailed  = "failed"
)

// Metrics are the prometheus collectors of a Registry. A nil *Metrics records nothing.
type Metrics struct {
	loaded        prometheus.Gauge
	loads         *prometheus.CounterVec
	saves         prometheus.Counter
	deletes       prometheus.Counter
	shutdownSaves prometheus.Counter
}

// NewMetrics creates the registry collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Subsystem: metricsSubsystem,
			Name:      "loaded_libraries",
			Help:      "Number of live binding libraries.",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: metricsSubsystem,
			Name:      "library_loads_total",
			Help:      "Count of libraries instantiated by the registry, by result.",
		}, []string{"result"}),
		saves: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: metricsSubsystem,
			Name:      "library_saves_total",
			Help:      "Count of library saves requested through the registry.",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: metricsSubsystem,
			Name:      "library_deletes_total",
			Help:      "Count of libraries deleted through the registry.",
		}),
		shutdownSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: metricsSubsystem,
			Name:      "shutdown_saves_total",
			Help:      "Count of libraries saved by the shutdown hook.",
		}),
	}

	for _, c := range []prometheus.Collector{m.loaded, m.loads, m.saves, m.deletes, m.shutdownSaves} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) setLoaded(n int) {
	if m != nil {
		m.loaded.Set(float64(n))
	}
}

func (m *Metrics) recordLoad(result string) {
	if m != nil {
		m.loads.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) recordSaves(n int) {
	if m != nil {
		m.saves.Add(float64(n))
	}
}

func (m *Metrics) recordDelete() {
	if m != nil {
		m.deletes.Inc()
	}
}

func (m *Metrics) recordShutdownSaves(n int) {
	if m != nil {
		m.shutdownSaves.Add(float64(n))
	}
}

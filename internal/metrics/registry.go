package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the simulator's metrics.
type Registry struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	StepsTotal       *prometheus.CounterVec
	SamplesTotal     *prometheus.CounterVec
	SpikesTotal      *prometheus.CounterVec
	DivergencesTotal *prometheus.CounterVec
	LatticeNodes     prometheus.Gauge
	StoreOperations  *prometheus.CounterVec
	PublishedSamples prometheus.Counter
	PublishFailures  prometheus.Counter

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with every metric initialized.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initSimulationMetrics()
	r.initStorageMetrics()
	r.initStreamMetrics()
	return r
}

func (r *Registry) initSimulationMetrics() {
	r.RunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "chialvo_runs_total",
			Help: "Simulation runs by topology and outcome",
		},
		[]string{"topology", "status"},
	)

	r.RunDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chialvo_run_duration_seconds",
			Help:    "Wall-clock duration of simulation runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"topology"},
	)

	r.StepsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "chialvo_steps_total",
			Help: "Integrator steps completed",
		},
		[]string{"topology"},
	)

	r.SamplesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "chialvo_samples_total",
			Help: "Recorded sampling ticks",
		},
		[]string{"topology"},
	)

	r.SpikesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "chialvo_spikes_total",
			Help: "Extracted spike events",
		},
		[]string{"topology", "rule"},
	)

	r.DivergencesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "chialvo_divergences_total",
			Help: "Runs aborted on non-finite state",
		},
		[]string{"topology"},
	)

	r.LatticeNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "chialvo_lattice_nodes",
			Help: "Node count of the most recent run",
		},
	)
}

func (r *Registry) initStorageMetrics() {
	r.StoreOperations = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "chialvo_store_operations_total",
			Help: "Run store operations",
		},
		[]string{"operation", "status"},
	)
}

func (r *Registry) initStreamMetrics() {
	r.PublishedSamples = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "chialvo_stream_samples_published_total",
			Help: "Sampling ticks published to the stream",
		},
	)

	r.PublishFailures = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "chialvo_stream_publish_failures_total",
			Help: "Sampling ticks the stream failed to publish",
		},
	)
}

// Gatherer exposes the underlying prometheus registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes every metric in the text exposition format, suitable
// for the node_exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SweepDurationBuckets covers sub-millisecond sweeps of small tables up to
// multi-second sweeps of very large ones.
var SweepDurationBuckets = []float64{
	0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10,
}

// GCMetrics holds metrics for one path-edge collector. Every metric carries
// a constant "collector" label so several collectors can share a registry.
// A nil *GCMetrics is valid and records nothing.
type GCMetrics struct {
	// ReclaimedFacts counts collection keys (procedure, source fact) removed.
	ReclaimedFacts prometheus.Counter

	// ReclaimedEdges counts path edges removed.
	ReclaimedEdges prometheus.Counter

	// Sweeps counts completed sweep passes.
	Sweeps prometheus.Counter

	// SkippedKeys counts keys kept because the reference provider failed.
	SkippedKeys prometheus.Counter

	// RemainingEdges is the path-edge count after the last sweep.
	RemainingEdges prometheus.Gauge

	// PeakEdges is the highest remaining path-edge count seen after any sweep.
	PeakEdges prometheus.Gauge

	// PeakMemoryMB is the highest heap usage sampled after any sweep.
	PeakMemoryMB prometheus.Gauge

	// SweepDuration tracks how long each sweep pass takes.
	SweepDuration prometheus.Histogram
}

// NewGCMetrics creates GC metrics registered with the default registry.
func NewGCMetrics(collector string) *GCMetrics {
	return newGCMetrics(promauto.With(prometheus.DefaultRegisterer), collector)
}

// NewGCMetricsWithRegistry creates GC metrics registered with a custom registry.
// Useful for testing to avoid conflicts with the default registry.
func NewGCMetricsWithRegistry(reg prometheus.Registerer, collector string) *GCMetrics {
	return newGCMetrics(promauto.With(reg), collector)
}

func newGCMetrics(f promauto.Factory, collector string) *GCMetrics {
	labels := prometheus.Labels{"collector": collector}
	return &GCMetrics{
		ReclaimedFacts: f.NewCounter(prometheus.CounterOpts{
			Namespace:   "edgegc",
			Subsystem:   "gc",
			Name:        "reclaimed_facts_total",
			Help:        "Total number of (procedure, source fact) contexts reclaimed.",
			ConstLabels: labels,
		}),
		ReclaimedEdges: f.NewCounter(prometheus.CounterOpts{
			Namespace:   "edgegc",
			Subsystem:   "gc",
			Name:        "reclaimed_edges_total",
			Help:        "Total number of path edges reclaimed.",
			ConstLabels: labels,
		}),
		Sweeps: f.NewCounter(prometheus.CounterOpts{
			Namespace:   "edgegc",
			Subsystem:   "gc",
			Name:        "sweeps_total",
			Help:        "Total number of completed sweep passes.",
			ConstLabels: labels,
		}),
		SkippedKeys: f.NewCounter(prometheus.CounterOpts{
			Namespace:   "edgegc",
			Subsystem:   "gc",
			Name:        "skipped_keys_total",
			Help:        "Total number of keys kept because their reference status could not be determined.",
			ConstLabels: labels,
		}),
		RemainingEdges: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   "edgegc",
			Subsystem:   "gc",
			Name:        "remaining_edges",
			Help:        "Path edges remaining after the most recent sweep.",
			ConstLabels: labels,
		}),
		PeakEdges: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   "edgegc",
			Subsystem:   "gc",
			Name:        "peak_edges",
			Help:        "Maximum path edges remaining after any sweep.",
			ConstLabels: labels,
		}),
		PeakMemoryMB: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   "edgegc",
			Subsystem:   "gc",
			Name:        "peak_memory_megabytes",
			Help:        "Maximum used heap in megabytes sampled after any sweep.",
			ConstLabels: labels,
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "edgegc",
			Subsystem:   "gc",
			Name:        "sweep_duration_seconds",
			Help:        "Duration of sweep passes in seconds.",
			Buckets:     SweepDurationBuckets,
			ConstLabels: labels,
		}),
	}
}

// RecordSweep records one completed sweep pass.
func (m *GCMetrics) RecordSweep(d time.Duration, facts, edges, skipped int64) {
	if m == nil {
		return
	}
	m.Sweeps.Inc()
	m.SweepDuration.Observe(d.Seconds())
	if facts > 0 {
		m.ReclaimedFacts.Add(float64(facts))
	}
	if edges > 0 {
		m.ReclaimedEdges.Add(float64(edges))
	}
	if skipped > 0 {
		m.SkippedKeys.Add(float64(skipped))
	}
}

// RecordDiagnostics updates the remaining and peak gauges.
func (m *GCMetrics) RecordDiagnostics(remaining, peakEdges, peakMemoryMB int64) {
	if m == nil {
		return
	}
	m.RemainingEdges.Set(float64(remaining))
	m.PeakEdges.Set(float64(peakEdges))
	m.PeakMemoryMB.Set(float64(peakMemoryMB))
}

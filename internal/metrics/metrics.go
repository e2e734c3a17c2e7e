// Package metrics exposes recalculation and event delivery metrics in the
// Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/specialistvlad/paramgrid/internal/recalc"
)

const namespace = "paramgrid"

// Recorder implements recalc.Metrics and notify.DropCounter.
type Recorder struct {
	registry *prometheus.Registry

	cascades      *prometheus.CounterVec
	recomputed    *prometheus.CounterVec
	failed        *prometheus.CounterVec
	stale         *prometheus.CounterVec
	outOfBounds   *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	droppedEvents *prometheus.CounterVec
}

// New creates a recorder with its own registry, so several recorders can
// coexist in one process (tests, multiple apps).
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		// Labels: tab, kind (set, recompute, all)
		cascades: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recalc",
			Name:      "cascades_total",
			Help:      "Total recalculation cascades",
		}, []string{"tab", "kind"}),
		recomputed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recalc",
			Name:      "recomputed_total",
			Help:      "Total calculation rule evaluations",
		}, []string{"tab"}),
		failed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recalc",
			Name:      "failed_total",
			Help:      "Total calculation rule failures",
		}, []string{"tab"}),
		stale: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recalc",
			Name:      "stale_total",
			Help:      "Total manual parameters flagged stale by a cascade",
		}, []string{"tab"}),
		outOfBounds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recalc",
			Name:      "out_of_bounds_total",
			Help:      "Total computed values outside their declared bounds",
		}, []string{"tab"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recalc",
			Name:      "cascade_duration_seconds",
			Help:      "Recalculation cascade duration in seconds",
			Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.1},
		}, []string{"tab"}),
		droppedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "dropped_events_total",
			Help:      "Total change events dropped by full subscriber channels",
		}, []string{"tab"}),
	}
}

// ObserveCascade records one cascade.
func (r *Recorder) ObserveCascade(tab string, res *recalc.Result, elapsed time.Duration) {
	kind := "all"
	switch {
	case res.Trigger == "":
	case len(res.Recomputed) > 0 && res.Recomputed[0] == res.Trigger:
		kind = "recompute"
	default:
		kind = "set"
	}
	r.cascades.WithLabelValues(tab, kind).Inc()
	r.recomputed.WithLabelValues(tab).Add(float64(len(res.Recomputed)))
	r.failed.WithLabelValues(tab).Add(float64(len(res.Failed)))
	r.stale.WithLabelValues(tab).Add(float64(len(res.Stale)))
	r.outOfBounds.WithLabelValues(tab).Add(float64(len(res.OutOfBounds)))
	r.duration.WithLabelValues(tab).Observe(elapsed.Seconds())
}

// EventDropped records an event lost by a full channel subscriber.
func (r *Recorder) EventDropped(tab string) {
	r.droppedEvents.WithLabelValues(tab).Inc()
}

// Registry returns the registry the recorder's collectors live in.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the recorder's metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

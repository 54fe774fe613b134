package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benmeehan/invoxia-agent/internal/models"
)

const (
	resultOK     = "ok"
	resultFailed = "failed"
)

// TrackerMetrics records tracker update outcomes as Prometheus metrics.
type TrackerMetrics struct {
	registry *prometheus.Registry

	updates   *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	available *prometheus.GaugeVec
	battery   *prometheus.GaugeVec
	duration  prometheus.Histogram
}

// NewTrackerMetrics creates the tracker metrics on a dedicated registry that
// also exposes the Go runtime and process collectors.
func NewTrackerMetrics() *TrackerMetrics {
	m := &TrackerMetrics{
		registry: prometheus.NewRegistry(),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoxia_tracker_updates_total",
			Help: "Tracker refreshes by outcome.",
		}, []string{"unique_id", "result"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoxia_tracker_updates_skipped_total",
			Help: "Scheduled refreshes dropped because the previous one was still pending.",
		}, []string{"unique_id"}),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "invoxia_tracker_available",
			Help: "1 when the last refresh of the tracker succeeded.",
		}, []string{"unique_id"}),
		battery: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "invoxia_tracker_battery_percent",
			Help: "Last reported battery level of the tracker.",
		}, []string{"unique_id"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "invoxia_tracker_update_duration_seconds",
			Help:    "Duration of a tracker refresh against the vendor API.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	m.registry.MustRegister(
		m.updates, m.skipped, m.available, m.battery, m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveUpdate records the outcome of one refresh.
func (m *TrackerMetrics) ObserveUpdate(state models.TrackerState, took time.Duration) {
	result := resultFailed
	available := 0.0
	if state.Available {
		result = resultOK
		available = 1
	}

	m.updates.WithLabelValues(state.UniqueID, result).Inc()
	m.available.WithLabelValues(state.UniqueID).Set(available)
	if state.Available {
		m.battery.WithLabelValues(state.UniqueID).Set(float64(state.BatteryLevel))
	}
	m.duration.Observe(took.Seconds())
}

// ObserveSkipped records a refresh dropped by the scheduler.
func (m *TrackerMetrics) ObserveSkipped(uniqueID string) {
	m.skipped.WithLabelValues(uniqueID).Inc()
}

// Forget drops the series of a tracker that is no longer registered.
func (m *TrackerMetrics) Forget(uniqueID string) {
	labels := prometheus.Labels{"unique_id": uniqueID}
	m.updates.DeletePartialMatch(labels)
	m.skipped.DeletePartialMatch(labels)
	m.available.DeletePartialMatch(labels)
	m.battery.DeletePartialMatch(labels)
}

// Registry returns the registry the metrics are registered on.
func (m *TrackerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *TrackerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ScansTotal counts completed scans by outcome (normalized, fallback,
	// abandoned) and by input source (image, text).
	ScansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "purescan",
		Subsystem: "scanner",
		Name:      "scans_total",
		Help:      "Total number of scan requests completed, labeled by outcome and input source.",
	}, []string{"outcome", "source"})

	// ScanDurationSeconds is end-to-end time per scan, measured from request
	// build to normalized result.
	ScanDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "purescan",
		Subsystem: "scanner",
		Name:      "scan_duration_seconds",
		Help:      "End-to-end time to analyze a label and normalize the result.",
		// Keep buckets fairly coarse to avoid high-cardinality time series.
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60, 120},
	}, []string{"outcome"})

	// ScansInFlight is the current number of analyses waiting on the remote
	// model.
	ScansInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "purescan",
		Subsystem: "scanner",
		Name:      "scans_in_flight",
		Help:      "Current number of scans in the ANALYZING state.",
	})

	// RemoteErrorsTotal counts remote analysis failures that triggered the
	// simulation fallback or surfaced as errors.
	RemoteErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "purescan",
		Subsystem: "scanner",
		Name:      "remote_errors_total",
		Help:      "Total number of remote analysis failures, labeled by provider.",
	}, []string{"provider"})

	// EventPublishErrorTotal counts failed scan-completed event publishes.
	EventPublishErrorTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "purescan",
		Subsystem: "scanner",
		Name:      "event_publish_error_total",
		Help:      "Total number of scan-completed event publish errors (best-effort).",
	})
)

// Register registers scanner metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ScansTotal,
			ScanDurationSeconds,
			ScansInFlight,
			RemoteErrorsTotal,
			EventPublishErrorTotal,
		)
	})
}

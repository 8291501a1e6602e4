// Package metrics defines Prometheus collectors for record operations.
// Collectors are registered on the default registry via promauto; the
// provider.Instrument decorator feeds them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the prefix for all metrics.
const Namespace = "zonedit"

var (
	// BuildInfo exposes version information as a gauge set to 1.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build information",
	}, []string{"version", "goversion"})

	// OperationsTotal counts record operations by provider, operation,
	// and outcome. The status label carries the error taxonomy class
	// ("ok", "not_found", "auth_failed", ...).
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "operations_total",
		Help:      "Record operations by provider, operation, and status",
	}, []string{"provider", "operation", "status"})

	// OperationDuration observes wall-clock operation latency in seconds.
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "operation_duration_seconds",
		Help:      "Record operation duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider", "operation"})

	// DryRunSkipsTotal counts writes that were validated but not sent.
	DryRunSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "dry_run_skips_total",
		Help:      "Write operations skipped because dry-run is enabled",
	}, []string{"provider", "operation"})
)

// SetBuildInfo records the build version gauge.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// ObserveOperation records one completed operation.
func ObserveOperation(provider, operation, status string, seconds float64) {
	OperationsTotal.WithLabelValues(provider, operation, status).Inc()
	OperationDuration.WithLabelValues(provider, operation).Observe(seconds)
}

// ObserveDryRunSkip records one write skipped by the dry-run guard.
func ObserveDryRunSkip(provider, operation string) {
	DryRunSkipsTotal.WithLabelValues(provider, operation).Inc()
}

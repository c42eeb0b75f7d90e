package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Check outcomes used as the "outcome" label.
const (
	OutcomeAllowed  = "allowed"
	OutcomeLimited  = "limited"
	OutcomeBlocked  = "blocked"
	OutcomeDegraded = "degraded"
	OutcomeRejected = "rejected" // fail-closed on store error
)

var (
	checksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shield_ratelimit_checks_total",
		Help: "Total number of rate limit checks by endpoint and outcome",
	}, []string{"endpoint", "outcome"})
	storeErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shield_ratelimit_store_errors_total",
		Help: "Total number of rate limit checks that failed on the store",
	}, []string{"endpoint"})
	auditWriteFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shield_audit_write_failures_total",
		Help: "Total number of security events that could not be persisted",
	})
	alertsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shield_alerts_dropped_total",
		Help: "Total number of security alerts dropped by the alert throttle",
	})
	activeBlocks = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "shield_active_blocks",
		Help: "Number of active IP-wide blocks by kind (temporary, permanent)",
	}, []string{"kind"})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry prometheus.Registerer) {
	registry.MustRegister(checksTotal, storeErrorsTotal, auditWriteFailuresTotal, alertsDroppedTotal, activeBlocks)
}

// IncCheck counts a rate limit check.
func IncCheck(endpoint, outcome string) { checksTotal.WithLabelValues(endpoint, outcome).Inc() }

// IncStoreError counts a store failure during a check.
func IncStoreError(endpoint string) { storeErrorsTotal.WithLabelValues(endpoint).Inc() }

// IncAuditWriteFailure counts a security event that failed to persist.
func IncAuditWriteFailure() { auditWriteFailuresTotal.Inc() }

// IncAlertDropped counts a throttled alert.
func IncAlertDropped() { alertsDroppedTotal.Inc() }

// SetActiveBlocks publishes the current block counts.
func SetActiveBlocks(temporary, permanent int64) {
	activeBlocks.WithLabelValues("temporary").Set(float64(temporary))
	activeBlocks.WithLabelValues("permanent").Set(float64(permanent))
}

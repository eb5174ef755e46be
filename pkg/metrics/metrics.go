package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthzDecisions counts authorization decisions by outcome (allow|deny|error).
	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"resource", "result"},
	)

	// CacheLookups counts decision cache lookups by result (hit|miss).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_authz_cache_lookups_total",
			Help: "Total number of decision cache lookups",
		},
		[]string{"result"},
	)

	// PolicyMutations counts policy-affecting writes by kind.
	PolicyMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_policy_mutations_total",
			Help: "Total number of policy mutations",
		},
		[]string{"kind"},
	)

	// ActiveViolations tracks currently active violation overlays per tenant.
	ActiveViolations = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aegis_active_violations",
			Help: "Number of active violation overlay tuples",
		},
		[]string{"tenant"},
	)

	// AuditWriteFailures counts audit entries that could not be persisted.
	AuditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aegis_audit_write_failures_total",
			Help: "Total number of failed audit log writes",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aegis_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	authAttempts       *prometheus.CounterVec
	permissionChecks   *prometheus.CounterVec
	decisions          *prometheus.CounterVec
	legacyFallbacks    *prometheus.CounterVec
	apiLatency         *prometheus.HistogramVec
	auditWrites        *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec
	resolverLookups    *prometheus.CounterVec
	templateUsage      *prometheus.CounterVec
	integrityRuns      *prometheus.CounterVec
	integrityDuration  prometheus.Histogram
	integrityStatus    *prometheus.GaugeVec
}

func newCollectors(namespace string) *collectors {
	buckets := prometheus.DefBuckets

	return &collectors{
		authAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Bearer token verifications by result",
			},
			[]string{"result"},
		),
		permissionChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "permission_checks_total",
				Help:      "Total number of permission checks",
			},
			[]string{"permission", "result"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "authorization_decisions_total",
				Help:      "Authorization decisions grouped by evaluation path",
			},
			[]string{"path", "resource_type"},
		),
		legacyFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "legacy_fallback_grants_total",
				Help:      "Decisions allowed only through the legacy role-name table",
			},
			[]string{"role"},
		),
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_latency_seconds",
				Help:      "API endpoint latency",
				Buckets:   buckets,
			},
			[]string{"method", "path", "status"},
		),
		auditWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_writes_total",
				Help:      "Audit entries written alongside mutations, by action and result",
			},
			[]string{"action", "result"},
		),
		cacheInvalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "permission_cache_invalidations_total",
				Help:      "Effective permission cache purges by origin",
			},
			[]string{"source"},
		),
		resolverLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "role_resolver_lookups_total",
				Help:      "Role closure lookups by cache outcome",
			},
			[]string{"outcome"},
		),
		templateUsage: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "template_applications_total",
				Help:      "Permission template applications by target kind",
			},
			[]string{"target"},
		),
		integrityRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "integrity_reports_total",
				Help:      "Integrity report evaluations by resulting status",
			},
			[]string{"status"},
		),
		integrityDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "integrity_report_duration_seconds",
				Help:      "Time spent computing an integrity report",
				Buckets:   buckets,
			},
		),
		integrityStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "integrity_status",
				Help:      "1 for the status of the most recent integrity report, 0 otherwise",
			},
			[]string{"status"},
		),
	}
}

func (c *collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.authAttempts,
		c.permissionChecks,
		c.decisions,
		c.legacyFallbacks,
		c.apiLatency,
		c.auditWrites,
		c.cacheInvalidations,
		c.resolverLookups,
		c.templateUsage,
		c.integrityRuns,
		c.integrityDuration,
		c.integrityStatus,
	}
}

// observeDuration records a duration in seconds on the supplied histogram observer.
func observeDuration(observer prometheus.Observer, d time.Duration) {
	if observer == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	observer.Observe(d.Seconds())
}

package monitoring

import (
	"strings"
	"time"
)

// RecordAuthAttempt increments the token verification counter.
func RecordAuthAttempt(result string) {
	module := ensureModule()
	if module == nil {
		return
	}
	label := normalizeLabel(result)
	module.metrics.authAttempts.WithLabelValues(label).Inc()
	module.stats.recordAuth(label)
}

// RecordPermissionCheck records the outcome of a permission evaluation.
func RecordPermissionCheck(permission, result string) {
	module := ensureModule()
	if module == nil {
		return
	}
	perm := strings.TrimSpace(permission)
	if perm == "" {
		perm = "unknown"
	}
	label := normalizeLabel(result)
	module.metrics.permissionChecks.WithLabelValues(perm, label).Inc()
	module.stats.recordPermission(label)
}

// RecordAuthorizationDecision counts a decision by the path that produced it.
// Kept apart from the audit trail; this tracks migration off the legacy table.
func RecordAuthorizationDecision(path, resourceType string) {
	module := ensureModule()
	if module == nil {
		return
	}
	path = normalizeLabel(path)
	resource := strings.ToUpper(strings.TrimSpace(resourceType))
	if resource == "" {
		resource = "UNKNOWN"
	}
	module.metrics.decisions.WithLabelValues(path, resource).Inc()
	module.stats.recordDecision(path)
}

// RecordLegacyFallback attributes a fallback grant to the legacy role name used.
func RecordLegacyFallback(roleName string) {
	module := ensureModule()
	if module == nil {
		return
	}
	role := normalizeLabel(roleName)
	module.metrics.legacyFallbacks.WithLabelValues(role).Inc()
	module.stats.recordFallbackRole(role)
}

// ObserveAPILatency captures the HTTP request latency for the supplied route.
func ObserveAPILatency(method, path, status string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = "unknown"
	}
	observeDuration(module.metrics.apiLatency.WithLabelValues(method, path, status), duration)
}

// RecordAuditWrite counts audit entries written with their mutation.
func RecordAuditWrite(action, result string) {
	module := ensureModule()
	if module == nil {
		return
	}
	result = normalizeLabel(result)
	module.metrics.auditWrites.WithLabelValues(normalizeLabel(action), result).Inc()
	module.stats.recordAudit(result)
}

// RecordCacheInvalidation counts effective-permission cache purges. Source is
// "local" for mutations on this node and "remote" for broadcasts from peers.
func RecordCacheInvalidation(source string) {
	module := ensureModule()
	if module == nil {
		return
	}
	source = normalizeLabel(source)
	module.metrics.cacheInvalidations.WithLabelValues(source).Inc()
	module.stats.recordInvalidation(source)
}

// RecordResolverLookup counts role closure lookups as hit or miss.
func RecordResolverLookup(outcome string) {
	module := ensureModule()
	if module == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	module.metrics.resolverLookups.WithLabelValues(outcome).Inc()
	module.stats.recordResolverLookup(outcome)
}

// RecordTemplateApplication counts template applications by target kind.
func RecordTemplateApplication(target string) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.templateUsage.WithLabelValues(normalizeLabel(target)).Inc()
}

// RecordIntegrityReport captures the outcome of an integrity evaluation.
func RecordIntegrityReport(report IntegrityReport, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	status := string(report.Status)
	module.metrics.integrityRuns.WithLabelValues(status).Inc()
	observeDuration(module.metrics.integrityDuration, duration)
	for _, candidate := range []IntegrityStatus{IntegrityHealthy, IntegrityDegraded, IntegrityUnhealthy} {
		value := 0.0
		if candidate == report.Status {
			value = 1
		}
		module.metrics.integrityStatus.WithLabelValues(string(candidate)).Set(value)
	}
	module.stats.recordIntegrity(IntegritySnapshot{
		Status:      report.Status,
		Message:     report.Message,
		EvaluatedAt: report.EvaluatedAt,
	})
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

func sanitizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "/" {
		return "root"
	}
	path = strings.Trim(path, "/")
	return strings.ReplaceAll(path, " ", "_")
}

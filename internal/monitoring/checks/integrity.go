package checks

import (
	"context"
	"time"

	"github.com/charlesng35/gatekeeper/internal/monitoring"
)

// IntegrityReporter produces authorization model integrity reports.
type IntegrityReporter interface {
	Report(ctx context.Context) monitoring.IntegrityReport
}

// Integrity returns a readiness probe backed by the integrity report. A
// degraded model keeps the node ready but flags it.
func Integrity(reporter IntegrityReporter) monitoring.Check {
	return monitoring.NewCheck("integrity", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if reporter == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "integrity reporter not configured",
				Duration: time.Since(start),
			}
		}

		report := reporter.Report(ctx)
		status := monitoring.StatusUp
		switch report.Status {
		case monitoring.IntegrityDegraded:
			status = monitoring.StatusDegraded
		case monitoring.IntegrityUnhealthy:
			status = monitoring.StatusDown
		}
		return monitoring.ProbeResult{
			Component: "integrity",
			Status:    status,
			Details:   report.Message,
			Duration:  time.Since(start),
		}
	})
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeeper/internal/monitoring"
	"github.com/charlesng35/gatekeeper/pkg/response"
)

// IntegrityReporter produces the authorization model self check.
type IntegrityReporter interface {
	Report(ctx context.Context) monitoring.IntegrityReport
}

// HealthHandler exposes the integrity report to operators.
type HealthHandler struct {
	reporter IntegrityReporter
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(reporter IntegrityReporter) *HealthHandler {
	return &HealthHandler{reporter: reporter}
}

// GET /health/integrity
//
// Degraded reports still answer 200; only an unhealthy model answers 503.
func (h *HealthHandler) Integrity(c *gin.Context) {
	report := h.reporter.Report(requestContext(c))
	status := http.StatusOK
	if report.Status == monitoring.IntegrityUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response.Response{
		Success: report.Status != monitoring.IntegrityUnhealthy,
		Data:    report,
	})
}

package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/gatekeeper/internal/services"
	"github.com/charlesng35/gatekeeper/pkg/errors"
	"github.com/charlesng35/gatekeeper/pkg/logger"
	"github.com/charlesng35/gatekeeper/pkg/response"
)

// AuditHandler serves the authorization audit trail.
type AuditHandler struct {
	svc *services.AuditService
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(svc *services.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// GET /api/audit
func (h *AuditHandler) List(c *gin.Context) {
	filters, err := auditFiltersFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, err := h.svc.Query(requestContext(c), services.AuditListOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "per_page", 50),
		Filters:  filters,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, page.Entries, response.NewMeta(page.Page, page.PageSize, page.Total))
}

// GET /api/audit/export?format=csv|json
func (h *AuditHandler) Export(c *gin.Context) {
	filters, err := auditFiltersFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format, err := services.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	contentType := "text/csv; charset=utf-8"
	if format == services.ExportJSON {
		contentType = "application/json; charset=utf-8"
	}
	filename := fmt.Sprintf("audit-%s.%s", time.Now().UTC().Format("20060102T150405Z"), format)

	header := c.Writer.Header()
	header.Set("Content-Type", contentType)
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	count, err := h.svc.Export(requestContext(c), filters, format, c.Writer)
	if err != nil {
		if !c.Writer.Written() {
			header.Del("Content-Type")
			header.Del("Content-Disposition")
			response.Error(c, err)
			return
		}
		// Headers are gone; the client sees a truncated body.
		logger.WithModule("audit").Error("audit export aborted",
			zap.Int("rows", count),
			zap.Error(err),
		)
		c.Abort()
	}
}

func auditFiltersFromQuery(c *gin.Context) (services.AuditFilters, error) {
	filters := services.AuditFilters{
		Action:     strings.TrimSpace(c.Query("action")),
		EntityType: strings.TrimSpace(c.Query("entity_type")),
		UserID:     strings.TrimSpace(c.Query("user_id")),
	}

	for key, dest := range map[string]**time.Time{
		"from": &filters.DateFrom,
		"to":   &filters.DateTo,
	} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return services.AuditFilters{}, errors.NewValidation("Invalid date filter", map[string]any{key: "must be RFC3339"})
		}
		*dest = &parsed
	}
	return filters, nil
}

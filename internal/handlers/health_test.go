package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gatekeeper/internal/app"
	"github.com/charlesng35/gatekeeper/internal/database/testutil"
	"github.com/charlesng35/gatekeeper/internal/models"
	"github.com/charlesng35/gatekeeper/internal/monitoring"
	"github.com/charlesng35/gatekeeper/internal/permissions"
)

type fixedReport monitoring.IntegrityReport

func (f fixedReport) Report(context.Context) monitoring.IntegrityReport {
	return monitoring.IntegrityReport(f)
}

func serveIntegrity(t *testing.T, reporter IntegrityReporter) (*httptest.ResponseRecorder, monitoring.IntegrityReport) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health/integrity", NewHealthHandler(reporter).Integrity)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/integrity", nil))

	var report monitoring.IntegrityReport
	env := decode(t, rec, &report)
	require.Equal(t, rec.Code == http.StatusOK, env.Success)
	return rec, report
}

func TestIntegrityOnSeededModel(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeeders(permissions.Sync))
	reporter, err := monitoring.NewIntegrityReporter(db, monitoring.IntegrityOptions{
		MinPermissions: int64(len(permissions.Definitions())),
		MinRoles:       int64(len(permissions.RoleBlueprints())),
	})
	require.NoError(t, err)

	rec, report := serveIntegrity(t, reporter)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, monitoring.IntegrityHealthy, report.Status)
	require.True(t, report.Checks.AdminRoleExists)

	require.NoError(t, db.Model(&models.Role{}).Where("name = ?", permissions.AdminRoleName).Update("is_active", false).Error)
	rec, report = serveIntegrity(t, reporter)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, monitoring.IntegrityUnhealthy, report.Status)
}

func TestIntegrityDegradedStillAnswersOK(t *testing.T) {
	rec, report := serveIntegrity(t, fixedReport{Status: monitoring.IntegrityDegraded, Message: "2 roles defined"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, monitoring.IntegrityDegraded, report.Status)
}

func TestMonitoringSummary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	module, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)

	cfg := &app.Config{}
	require.Nil(t, NewMonitoringHandler(module, cfg))

	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Authz.LegacyFallback.Enabled = true
	handler := NewMonitoringHandler(module, cfg)
	require.NotNil(t, handler)

	r := gin.New()
	r.GET("/summary", handler.Summary)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Prometheus struct {
			Endpoint string `json:"endpoint"`
		} `json:"prometheus"`
		LegacyFallback struct {
			Enabled bool `json:"enabled"`
		} `json:"legacy_fallback"`
		Summary json.RawMessage `json:"summary"`
	}
	decode(t, rec, &body)
	require.Equal(t, "/metrics", body.Prometheus.Endpoint)
	require.True(t, body.LegacyFallback.Enabled)
	require.NotEmpty(t, body.Summary)
}

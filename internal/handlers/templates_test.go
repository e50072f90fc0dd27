package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gatekeeper/internal/models"
	"github.com/charlesng35/gatekeeper/internal/services"
)

func templateID(t *testing.T, h *harness, name string) string {
	t.Helper()
	var tpl models.PermissionTemplate
	require.NoError(t, h.db.Where("name = ?", name).Take(&tpl).Error)
	return tpl.ID
}

func TestTemplateExportImportRoundTrip(t *testing.T) {
	h := newHarness(t)
	token := h.adminToken(t)

	rec := h.do(t, http.MethodGet, "/api/templates/"+templateID(t, h, "auditor_baseline")+"/export", token, nil)
	requireStatus(t, rec, http.StatusOK)
	var doc services.TemplateDocument
	decode(t, rec, &doc)
	require.Len(t, doc.Permissions, 6)

	doc.Name = "auditor_copy"
	doc.Permissions = append(doc.Permissions, "FOO.BAR.GLOBAL")
	rec = h.do(t, http.MethodPost, "/api/templates/import", token, doc)
	requireStatus(t, rec, http.StatusCreated)
	var result services.ImportResult
	decode(t, rec, &result)
	require.True(t, result.Created)
	require.Equal(t, []string{"FOO.BAR.GLOBAL"}, result.Unmapped)
	require.ElementsMatch(t, doc.Permissions[:6], result.Template.PermissionNames)

	rec = h.do(t, http.MethodPost, "/api/templates/import", token, doc)
	requireErrorCode(t, rec, http.StatusConflict, "ALREADY_EXISTS")

	rec = h.do(t, http.MethodPost, "/api/templates/import?update=true", token, doc)
	requireStatus(t, rec, http.StatusOK)
}

func TestTemplateApplyAndInstantiate(t *testing.T) {
	h := newHarness(t)
	token := h.adminToken(t)
	id := templateID(t, h, "viewer_baseline")

	rec := h.do(t, http.MethodPost, "/api/templates/"+id+"/apply", token, map[string]any{"user_id": "u-77"})
	requireStatus(t, rec, http.StatusOK)
	var applied services.ApplyResult
	decode(t, rec, &applied)
	require.Equal(t, 3, applied.GrantedCount)

	rec = h.do(t, http.MethodPost, "/api/templates/"+id+"/apply", token, map[string]any{"user_id": "u-77", "role_id": h.roleID(t, "viewer")})
	requireErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = h.do(t, http.MethodPost, "/api/templates/"+id+"/roles", token, map[string]any{"name": "readers", "level": 15})
	requireStatus(t, rec, http.StatusCreated)
	var role models.Role
	decode(t, rec, &role)
	require.Equal(t, "readers", role.Name)

	rec = h.do(t, http.MethodPatch, "/api/templates/"+id, token, map[string]any{"is_active": false})
	requireStatus(t, rec, http.StatusOK)

	rec = h.do(t, http.MethodPost, "/api/templates/"+id+"/apply", token, map[string]any{"role_id": role.ID})
	requireErrorCode(t, rec, http.StatusConflict, "INACTIVE")
}

func TestTemplateAuthoringEndpoints(t *testing.T) {
	h := newHarness(t)
	token := h.adminToken(t)

	rec := h.do(t, http.MethodPost, "/api/templates", token, map[string]any{
		"name":        "reporting",
		"permissions": []string{"REPORT.READ.BRANCH", "REPORT.EXPORT.BRANCH"},
	})
	requireStatus(t, rec, http.StatusCreated)
	var view services.TemplateView
	decode(t, rec, &view)
	require.Len(t, view.PermissionNames, 2)

	rec = h.do(t, http.MethodPost, "/api/templates/"+view.ID+"/clone", token, map[string]any{"name": "reporting_copy"})
	requireStatus(t, rec, http.StatusCreated)

	rec = h.do(t, http.MethodPost, "/api/roles/"+h.roleID(t, "auditor")+"/template", token, map[string]any{"name": "auditor_snapshot"})
	requireStatus(t, rec, http.StatusCreated)

	rec = h.do(t, http.MethodGet, "/api/templates", token, nil)
	requireStatus(t, rec, http.StatusOK)
	var views []services.TemplateView
	decode(t, rec, &views)
	require.Len(t, views, 8)

	rec = h.do(t, http.MethodDelete, "/api/templates/"+view.ID, token, nil)
	requireStatus(t, rec, http.StatusOK)

	rec = h.do(t, http.MethodGet, "/api/templates/"+view.ID, token, nil)
	requireErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")

	rec = h.do(t, http.MethodPost, "/api/templates", token, map[string]any{
		"name":        "broken",
		"permissions": []string{"FOO.BAR.GLOBAL"},
	})
	requireErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
}

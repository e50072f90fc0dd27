package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gatekeeper/internal/models"
)

func seedMutations(t *testing.T, h *harness, token string) {
	t.Helper()
	for _, name := range []string{"alpha", "beta", "gamma"} {
		rec := h.do(t, http.MethodPost, "/api/roles", token, map[string]any{"name": name})
		requireStatus(t, rec, http.StatusCreated)
	}
}

func TestAuditListPagesAndFilters(t *testing.T) {
	h := newHarness(t)
	token := h.adminToken(t)
	seedMutations(t, h, token)

	rec := h.do(t, http.MethodGet, "/api/audit?action=role.create&per_page=2", token, nil)
	requireStatus(t, rec, http.StatusOK)
	var entries []models.AuditEntry
	env := decode(t, rec, &entries)
	require.Len(t, entries, 2)
	require.NotNil(t, env.Meta)
	require.Equal(t, 3, env.Meta.Total)
	require.Equal(t, 2, env.Meta.TotalPages)
	require.Equal(t, "role.create", entries[0].Action)

	rec = h.do(t, http.MethodGet, "/api/audit?user_id=admin-1&page=2&per_page=2", token, nil)
	requireStatus(t, rec, http.StatusOK)
	entries = nil
	decode(t, rec, &entries)
	require.Len(t, entries, 1)

	rec = h.do(t, http.MethodGet, "/api/audit?from=yesterday", token, nil)
	requireErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestAuditExportStreamsCSV(t *testing.T) {
	h := newHarness(t)
	token := h.adminToken(t)
	seedMutations(t, h, token)

	rec := h.do(t, http.MethodGet, "/api/audit/export?action=role.create", token, nil)
	requireStatus(t, rec, http.StatusOK)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=\"audit-")

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, "id", rows[0][0])
}

func TestAuditExportJSONAndBadFormat(t *testing.T) {
	h := newHarness(t)
	token := h.adminToken(t)
	seedMutations(t, h, token)

	rec := h.do(t, http.MethodGet, "/api/audit/export?format=json&action=role.create", token, nil)
	requireStatus(t, rec, http.StatusOK)
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	var exported []models.AuditEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exported))
	require.Len(t, exported, 3)

	rec = h.do(t, http.MethodGet, "/api/audit/export?format=xml", token, nil)
	requireErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	require.Empty(t, rec.Header().Get("Content-Disposition"))
}

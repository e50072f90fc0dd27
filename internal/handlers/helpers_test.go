package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/charlesng35/gatekeeper/internal/auth"
	"github.com/charlesng35/gatekeeper/internal/database/testutil"
	"github.com/charlesng35/gatekeeper/internal/middleware"
	"github.com/charlesng35/gatekeeper/internal/models"
	"github.com/charlesng35/gatekeeper/internal/permissions"
	"github.com/charlesng35/gatekeeper/internal/services"
	"github.com/charlesng35/gatekeeper/pkg/response"
)

type harness struct {
	db     *gorm.DB
	jwt    *iauth.JWTService
	router *gin.Engine
}

// newHarness mounts every handler under /api behind token authentication but
// without permission guards; route gating is covered by the api package.
func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeeders(permissions.Sync))
	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	resolver, err := permissions.NewResolver(db, 0)
	require.NoError(t, err)
	legacy, err := permissions.DefaultLegacyTable()
	require.NoError(t, err)
	evaluator, err := permissions.NewEvaluator(resolver, permissions.WithLegacyTable(legacy))
	require.NoError(t, err)
	roleSvc, err := services.NewRoleService(db, audit, resolver)
	require.NoError(t, err)
	templateSvc, err := services.NewTemplateService(db, audit, resolver)
	require.NoError(t, err)
	permSvc, err := services.NewPermissionService(db, audit, resolver)
	require.NoError(t, err)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "handler-secret", AccessTokenTTL: time.Minute})
	require.NoError(t, err)

	guard := middleware.NewGuard(evaluator, roleSvc)
	authz := NewAuthorizeHandler(evaluator, resolver, guard)
	perms := NewPermissionHandler(permSvc)
	roles := NewRoleHandler(roleSvc)
	assignments := NewAssignmentHandler(roleSvc)
	templates := NewTemplateHandler(templateSvc)
	auditHandler := NewAuditHandler(audit)

	r := gin.New()
	api := r.Group("/api", middleware.Auth(jwtSvc))
	api.POST("/authorize", authz.Authorize)
	api.GET("/authorize/me", authz.MyPermissions)

	api.GET("/permissions", perms.List)
	api.GET("/permissions/:name", perms.Get)
	api.POST("/permissions", perms.Define)
	api.DELETE("/permissions/:name", perms.Delete)

	api.GET("/roles", roles.List)
	api.POST("/roles", roles.Create)
	api.GET("/roles/:id", roles.Get)
	api.PATCH("/roles/:id", roles.Update)
	api.DELETE("/roles/:id", roles.Delete)
	api.PUT("/roles/:id/parent", roles.SetParent)
	api.GET("/roles/:id/permissions", roles.DirectPermissions)
	api.POST("/roles/:id/permissions", roles.Grant)
	api.DELETE("/roles/:id/permissions/:permission", roles.Revoke)
	api.GET("/roles/:id/effective-permissions", roles.EffectivePermissions)
	api.POST("/roles/:id/template", templates.ExportRole)

	api.GET("/assignments", assignments.List)
	api.POST("/assignments", assignments.Assign)
	api.DELETE("/assignments/:user_id/:role_id", assignments.Unassign)

	api.GET("/templates", templates.List)
	api.POST("/templates", templates.Create)
	api.POST("/templates/import", templates.Import)
	api.GET("/templates/:id", templates.Get)
	api.PATCH("/templates/:id", templates.SetActive)
	api.DELETE("/templates/:id", templates.Delete)
	api.GET("/templates/:id/export", templates.Export)
	api.POST("/templates/:id/apply", templates.Apply)
	api.POST("/templates/:id/roles", templates.CreateRole)
	api.POST("/templates/:id/clone", templates.Clone)

	api.GET("/audit", auditHandler.List)
	api.GET("/audit/export", auditHandler.Export)

	return &harness{db: db, jwt: jwtSvc, router: r}
}

func (h *harness) roleID(t *testing.T, name string) string {
	t.Helper()
	var role models.Role
	require.NoError(t, h.db.Where("name = ?", name).Take(&role).Error)
	return role.ID
}

func (h *harness) token(t *testing.T, input iauth.TokenInput) string {
	t.Helper()
	token, err := h.jwt.IssueToken(input)
	require.NoError(t, err)
	return token
}

// adminToken carries the seeded admin role.
func (h *harness) adminToken(t *testing.T) string {
	t.Helper()
	return h.token(t, iauth.TokenInput{UserID: "admin-1", RoleIDs: []string{h.roleID(t, permissions.AdminRoleName)}})
}

func (h *harness) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Reader
	if body == nil {
		payload = bytes.NewReader(nil)
	} else if raw, ok := body.(string); ok {
		payload = bytes.NewReader([]byte(raw))
	} else {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
}

func requireErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	requireStatus(t, rec, status)
	env := decode(t, rec, nil)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	require.Equal(t, code, env.Error.Code)
}

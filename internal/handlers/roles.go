package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeeper/internal/services"
	"github.com/charlesng35/gatekeeper/pkg/response"
)

// RoleHandler manages roles, their hierarchy and their direct grants.
type RoleHandler struct {
	svc *services.RoleService
}

// NewRoleHandler constructs a RoleHandler.
func NewRoleHandler(svc *services.RoleService) *RoleHandler {
	return &RoleHandler{svc: svc}
}

// GET /api/roles
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.svc.ListRoles(requestContext(c), services.RoleListOptions{
		IncludeInactive:  parseBoolQuery(c, "include_inactive"),
		IncludeSynthetic: parseBoolQuery(c, "include_synthetic"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, roles)
}

// GET /api/roles/:id
func (h *RoleHandler) Get(c *gin.Context) {
	role, err := h.svc.GetRole(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// POST /api/roles
func (h *RoleHandler) Create(c *gin.Context) {
	var body services.CreateRoleInput
	if !bindAndValidate(c, &body) {
		return
	}

	role, err := h.svc.CreateRole(requestContext(c), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, role)
}

// PATCH /api/roles/:id
func (h *RoleHandler) Update(c *gin.Context) {
	var body services.UpdateRoleInput
	if !bindAndValidate(c, &body) {
		return
	}

	role, err := h.svc.UpdateRole(requestContext(c), c.Param("id"), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// DELETE /api/roles/:id
func (h *RoleHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteRole(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// PUT /api/roles/:id/parent
//
// A null parent_role_id detaches the role from its parent.
func (h *RoleHandler) SetParent(c *gin.Context) {
	var body struct {
		ParentRoleID *string `json:"parent_role_id"`
	}
	if !bindAndValidate(c, &body) {
		return
	}

	role, err := h.svc.SetParent(requestContext(c), c.Param("id"), body.ParentRoleID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// GET /api/roles/:id/permissions
func (h *RoleHandler) DirectPermissions(c *gin.Context) {
	perms, err := h.svc.DirectPermissions(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perms)
}

// GET /api/roles/:id/effective-permissions
func (h *RoleHandler) EffectivePermissions(c *gin.Context) {
	perms, err := h.svc.ResolveEffectivePermissions(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perms)
}

type grantRequest struct {
	Permission string `json:"permission" validate:"required"`
}

// POST /api/roles/:id/permissions
func (h *RoleHandler) Grant(c *gin.Context) {
	var body grantRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.svc.GrantPermission(requestContext(c), c.Param("id"), body.Permission, grantOptions(c)...)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// DELETE /api/roles/:id/permissions/:permission
func (h *RoleHandler) Revoke(c *gin.Context) {
	result, err := h.svc.RevokePermission(requestContext(c), c.Param("id"), c.Param("permission"), grantOptions(c)...)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func grantOptions(c *gin.Context) []services.GrantOption {
	if parseBoolQuery(c, "protect_system_roles") {
		return []services.GrantOption{services.ProtectSystemRoles()}
	}
	return nil
}

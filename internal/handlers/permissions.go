package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeeper/internal/permissions"
	"github.com/charlesng35/gatekeeper/internal/services"
	"github.com/charlesng35/gatekeeper/pkg/errors"
	"github.com/charlesng35/gatekeeper/pkg/response"
)

// PermissionHandler exposes the permission catalog.
type PermissionHandler struct {
	svc *services.PermissionService
}

// NewPermissionHandler constructs a PermissionHandler.
func NewPermissionHandler(svc *services.PermissionService) *PermissionHandler {
	return &PermissionHandler{svc: svc}
}

// GET /api/permissions
func (h *PermissionHandler) List(c *gin.Context) {
	filter := permissions.ListFilter{ResourceType: strings.ToUpper(strings.TrimSpace(c.Query("resource_type")))}
	if raw := strings.TrimSpace(c.Query("scope")); raw != "" {
		scope, err := permissions.ParseScope(raw)
		if err != nil {
			response.Error(c, errors.NewValidation("Invalid scope filter", map[string]any{"scope": raw}))
			return
		}
		filter.Scope = scope
	}

	perms, err := h.svc.List(requestContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perms)
}

// GET /api/permissions/:name
func (h *PermissionHandler) Get(c *gin.Context) {
	perm, err := h.svc.FindByName(requestContext(c), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perm)
}

// POST /api/permissions
func (h *PermissionHandler) Define(c *gin.Context) {
	var body services.DefinePermissionInput
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.svc.Define(requestContext(c), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Outcome == permissions.OutcomeCreated {
		status = http.StatusCreated
	}
	response.Success(c, status, result)
}

// DELETE /api/permissions/:name
func (h *PermissionHandler) Delete(c *gin.Context) {
	perm, err := h.svc.Delete(requestContext(c), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perm)
}

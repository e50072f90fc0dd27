package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeeper/internal/services"
	"github.com/charlesng35/gatekeeper/pkg/response"
)

// AssignmentHandler manages user to role assignments.
type AssignmentHandler struct {
	svc *services.RoleService
}

// NewAssignmentHandler constructs an AssignmentHandler.
func NewAssignmentHandler(svc *services.RoleService) *AssignmentHandler {
	return &AssignmentHandler{svc: svc}
}

// GET /api/assignments
func (h *AssignmentHandler) List(c *gin.Context) {
	assignments, err := h.svc.ListAssignments(requestContext(c), services.AssignmentFilter{
		UserID: strings.TrimSpace(c.Query("user_id")),
		RoleID: strings.TrimSpace(c.Query("role_id")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, assignments)
}

type assignRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	RoleID string `json:"role_id" validate:"required"`
}

// POST /api/assignments
func (h *AssignmentHandler) Assign(c *gin.Context) {
	var body assignRequest
	if !bindAndValidate(c, &body) {
		return
	}

	assignment, err := h.svc.AssignRole(requestContext(c), body.UserID, body.RoleID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, assignment)
}

// DELETE /api/assignments/:user_id/:role_id
func (h *AssignmentHandler) Unassign(c *gin.Context) {
	if err := h.svc.UnassignRole(requestContext(c), c.Param("user_id"), c.Param("role_id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unassigned": true})
}

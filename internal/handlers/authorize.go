package handlers

import (
	"context"
	stdErrors "errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeeper/internal/middleware"
	"github.com/charlesng35/gatekeeper/internal/models"
	"github.com/charlesng35/gatekeeper/internal/permissions"
	"github.com/charlesng35/gatekeeper/pkg/errors"
	"github.com/charlesng35/gatekeeper/pkg/response"
)

// RoleResolver exposes the cached inheritance closure of a role.
type RoleResolver interface {
	Resolve(ctx context.Context, roleID string) (*permissions.ResolvedRole, error)
}

// AuthorizeHandler answers authorization questions about the authenticated caller.
type AuthorizeHandler struct {
	authorizer middleware.Authorizer
	resolver   RoleResolver
	guard      *middleware.Guard
}

// NewAuthorizeHandler constructs an AuthorizeHandler.
func NewAuthorizeHandler(authorizer middleware.Authorizer, resolver RoleResolver, guard *middleware.Guard) *AuthorizeHandler {
	return &AuthorizeHandler{authorizer: authorizer, resolver: resolver, guard: guard}
}

type authorizeRequest struct {
	ResourceType string                `json:"resource_type" validate:"required"`
	Action       string                `json:"action" validate:"required"`
	Scope        string                `json:"scope"`
	Resource     *permissions.Resource `json:"resource"`
}

// POST /api/authorize
//
// The actor always comes from the verified token, never from the body.
func (h *AuthorizeHandler) Authorize(c *gin.Context) {
	var body authorizeRequest
	if !bindAndValidate(c, &body) {
		return
	}

	actor, err := h.guard.Actor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	decision, err := h.authorizer.Authorize(requestContext(c), actor, permissions.Request{
		ResourceType: body.ResourceType,
		Action:       body.Action,
		Scope:        permissions.Scope(body.Scope),
		Resource:     body.Resource,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, decision)
}

type callerPermissions struct {
	UserID      string              `json:"user_id"`
	RoleIDs     []string            `json:"role_ids"`
	Permissions []models.Permission `json:"permissions"`
}

// GET /api/authorize/me
//
// Lists the union of effective permissions across the caller's active roles.
func (h *AuthorizeHandler) MyPermissions(c *gin.Context) {
	actor, err := h.guard.Actor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	ctx := requestContext(c)
	seen := make(map[string]struct{})
	perms := make([]models.Permission, 0)
	for _, roleID := range actor.RoleIDs {
		resolved, err := h.resolver.Resolve(ctx, roleID)
		if err != nil {
			if stdErrors.Is(err, permissions.ErrRoleNotFound) {
				continue
			}
			response.Error(c, errors.ErrInternalServer.WithInternal(err))
			return
		}
		if !resolved.Role.IsActive {
			continue
		}
		for _, perm := range resolved.Permissions() {
			if _, ok := seen[perm.ID]; ok {
				continue
			}
			seen[perm.ID] = struct{}{}
			perms = append(perms, perm)
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })

	roleIDs := actor.RoleIDs
	if roleIDs == nil {
		roleIDs = []string{}
	}
	response.Success(c, http.StatusOK, callerPermissions{
		UserID:      actor.UserID,
		RoleIDs:     roleIDs,
		Permissions: perms,
	})
}

package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/gatekeeper/internal/permissions"
	"github.com/charlesng35/gatekeeper/pkg/errors"
	"github.com/charlesng35/gatekeeper/pkg/logger"
	"github.com/charlesng35/gatekeeper/pkg/response"
)

// Authorizer decides authorization requests.
type Authorizer interface {
	Authorize(ctx context.Context, actor permissions.Actor, req permissions.Request) (permissions.Decision, error)
}

// AssignmentLookup supplies role ids for tokens that do not carry them.
type AssignmentLookup interface {
	RoleIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// Guard gates routes on permissions held by the authenticated caller.
type Guard struct {
	authorizer  Authorizer
	assignments AssignmentLookup
}

// NewGuard builds a Guard. assignments may be nil when every token carries
// role ids.
func NewGuard(authorizer Authorizer, assignments AssignmentLookup) *Guard {
	return &Guard{authorizer: authorizer, assignments: assignments}
}

// Actor returns the authorization view of the caller. Role ids from the token
// win; otherwise the stored assignments are used. The result is memoised on
// the gin context.
func (g *Guard) Actor(c *gin.Context) (permissions.Actor, error) {
	if v, ok := c.Get(CtxActorKey); ok {
		if actor, ok := v.(permissions.Actor); ok {
			return actor, nil
		}
	}

	claims, ok := ClaimsFromContext(c)
	if !ok {
		return permissions.Actor{}, errors.ErrUnauthorized
	}
	actor := claims.Actor()
	if !claims.HasRoles() && g.assignments != nil {
		ids, err := g.assignments.RoleIDsForUser(c.Request.Context(), claims.UserID)
		if err != nil {
			return permissions.Actor{}, fmt.Errorf("load role assignments: %w", err)
		}
		actor.RoleIDs = ids
	}

	c.Set(CtxActorKey, actor)
	return actor, nil
}

// RequirePermission admits callers holding name at its scope or broader.
func RequirePermission(g *Guard, name permissions.Name) gin.HandlerFunc {
	return RequireAny(g, name)
}

// RequireAnyIf applies RequireAny only to requests for which cond reports true.
func RequireAnyIf(g *Guard, cond func(*gin.Context) bool, names ...permissions.Name) gin.HandlerFunc {
	check := RequireAny(g, names...)
	return func(c *gin.Context) {
		if cond != nil && !cond(c) {
			c.Next()
			return
		}
		check(c)
	}
}

// RequireAny admits callers holding at least one of names. Decisions are
// counted by the authorizer, not here.
func RequireAny(g *Guard, names ...permissions.Name) gin.HandlerFunc {
	label := joinNames(names)
	return func(c *gin.Context) {
		actor, err := g.Actor(c)
		if err != nil {
			if err == errors.ErrUnauthorized {
				response.Error(c, errors.ErrUnauthorized)
				c.Abort()
				return
			}
			failCheck(c, label, err)
			return
		}

		for _, name := range names {
			decision, err := g.authorizer.Authorize(c.Request.Context(), actor, permissions.Request{
				ResourceType: name.ResourceType,
				Action:       name.Action,
				Scope:        name.Scope,
			})
			if err != nil {
				failCheck(c, label, err)
				return
			}
			if decision.Allowed {
				c.Next()
				return
			}
		}

		response.Error(c, errors.ErrForbidden.WithDetails(map[string]any{"required": label}))
		c.Abort()
	}
}

func failCheck(c *gin.Context, label string, err error) {
	logger.WithModule("http").Error("permission check failed",
		zap.String("required", label),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	response.Error(c, errors.ErrInternalServer.WithMessage("permission check failed"))
	c.Abort()
}

func joinNames(names []permissions.Name) string {
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name.String()
	}
	return strings.Join(parts, "|")
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeeper/internal/handlers"
	"github.com/charlesng35/gatekeeper/internal/middleware"
	"github.com/charlesng35/gatekeeper/internal/permissions"
)

func registerRoleRoutes(api *gin.RouterGroup, handler *handlers.RoleHandler, templates *handlers.TemplateHandler, guard *middleware.Guard) {
	roles := api.Group("/roles", manage(guard, permissions.SystemRoles))
	{
		roles.GET("", handler.List)
		roles.POST("", handler.Create)
		roles.GET("/:id", handler.Get)
		roles.PATCH("/:id", handler.Update)
		roles.DELETE("/:id", handler.Delete)
		roles.PUT("/:id/parent", handler.SetParent)
		roles.GET("/:id/permissions", handler.DirectPermissions)
		roles.POST("/:id/permissions", handler.Grant)
		roles.DELETE("/:id/permissions/:permission", handler.Revoke)
		roles.GET("/:id/effective-permissions", handler.EffectivePermissions)
	}
	// Snapshotting a role creates a template, so it needs template rights too.
	roles.POST("/:id/template", manage(guard, permissions.SystemTemplates), templates.ExportRole)
}

func registerAssignmentRoutes(api *gin.RouterGroup, handler *handlers.AssignmentHandler, guard *middleware.Guard) {
	assignments := api.Group("/assignments", manage(guard, permissions.SystemAssignments))
	{
		assignments.GET("", handler.List)
		assignments.POST("", handler.Assign)
		assignments.DELETE("/:user_id/:role_id", handler.Unassign)
	}
}

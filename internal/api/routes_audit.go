package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeeper/internal/handlers"
	"github.com/charlesng35/gatekeeper/internal/middleware"
	"github.com/charlesng35/gatekeeper/internal/permissions"
)

func registerAuditRoutes(api *gin.RouterGroup, handler *handlers.AuditHandler, guard *middleware.Guard) {
	api.GET("/audit", middleware.RequirePermission(guard, permissions.AuditRead), handler.List)
	api.GET("/audit/export", middleware.RequirePermission(guard, permissions.AuditExport), handler.Export)
}

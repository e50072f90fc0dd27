package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeeper/internal/handlers"
	"github.com/charlesng35/gatekeeper/internal/middleware"
	"github.com/charlesng35/gatekeeper/internal/permissions"
)

func registerMonitoringRoutes(api *gin.RouterGroup, handler *handlers.MonitoringHandler, guard *middleware.Guard) {
	if api == nil || handler == nil || guard == nil {
		return
	}

	group := api.Group("/monitoring")
	group.GET("/summary", middleware.RequireAny(guard, permissions.SystemHealth, permissions.SystemManage), handler.Summary)
}

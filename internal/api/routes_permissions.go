package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeeper/internal/handlers"
	"github.com/charlesng35/gatekeeper/internal/middleware"
	"github.com/charlesng35/gatekeeper/internal/permissions"
)

func registerPermissionRoutes(api *gin.RouterGroup, handler *handlers.PermissionHandler, guard *middleware.Guard) {
	perms := api.Group("/permissions", manage(guard, permissions.SystemPermissions))
	{
		perms.GET("", handler.List)
		perms.POST("", handler.Define)
		perms.GET("/:name", handler.Get)
		perms.DELETE("/:name", handler.Delete)
	}
}

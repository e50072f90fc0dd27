package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/charlesng35/gatekeeper/internal/handlers"
	"github.com/charlesng35/gatekeeper/internal/middleware"
	"github.com/charlesng35/gatekeeper/internal/permissions"
)

func registerTemplateRoutes(api *gin.RouterGroup, handler *handlers.TemplateHandler, guard *middleware.Guard) {
	templates := api.Group("/templates", manage(guard, permissions.SystemTemplates))
	{
		templates.GET("", handler.List)
		templates.POST("", handler.Create)
		templates.POST("/import", handler.Import)
		templates.GET("/:id", handler.Get)
		templates.PATCH("/:id", handler.SetActive)
		templates.DELETE("/:id", handler.Delete)
		templates.GET("/:id/export", handler.Export)
		// Applying to a user also assigns the user's synthetic role.
		templates.POST("/:id/apply",
			middleware.RequireAnyIf(guard, targetsUser, permissions.SystemManage, permissions.SystemAssignments),
			handler.Apply,
		)
		templates.POST("/:id/roles", handler.CreateRole)
		templates.POST("/:id/clone", handler.Clone)
	}
}

// targetsUser peeks at an apply body. The body stays cached for the handler;
// a malformed body is left for the handler to reject.
func targetsUser(c *gin.Context) bool {
	var target struct {
		UserID string `json:"user_id"`
	}
	if err := c.ShouldBindBodyWith(&target, binding.JSON); err != nil {
		return false
	}
	return strings.TrimSpace(target.UserID) != ""
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeeper/internal/handlers"
)

// Any authenticated caller may ask about itself.
func registerAuthorizeRoutes(api *gin.RouterGroup, handler *handlers.AuthorizeHandler) {
	api.POST("/authorize", handler.Authorize)
	api.GET("/authorize/me", handler.MyPermissions)
}

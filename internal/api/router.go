package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/gatekeeper/internal/app"
	iauth "github.com/charlesng35/gatekeeper/internal/auth"
	"github.com/charlesng35/gatekeeper/internal/handlers"
	"github.com/charlesng35/gatekeeper/internal/middleware"
	"github.com/charlesng35/gatekeeper/internal/monitoring"
	"github.com/charlesng35/gatekeeper/internal/permissions"
	"github.com/charlesng35/gatekeeper/internal/services"
)

// Dependencies carries everything the HTTP surface is built from.
type Dependencies struct {
	Config      *app.Config
	JWT         *iauth.JWTService
	Evaluator   *permissions.Evaluator
	Resolver    *permissions.Resolver
	Audit       *services.AuditService
	Roles       *services.RoleService
	Templates   *services.TemplateService
	Permissions *services.PermissionService
	Integrity   handlers.IntegrityReporter
	Monitoring  *monitoring.Module
}

func (d Dependencies) validate() error {
	switch {
	case d.Config == nil:
		return fmt.Errorf("config must be provided")
	case d.JWT == nil:
		return fmt.Errorf("jwt service must be provided")
	case d.Evaluator == nil || d.Resolver == nil:
		return fmt.Errorf("evaluator and resolver must be provided")
	case d.Audit == nil || d.Roles == nil || d.Templates == nil || d.Permissions == nil:
		return fmt.Errorf("management services must be provided")
	case d.Integrity == nil:
		return fmt.Errorf("integrity reporter must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	registerHealthRoutes(r, deps.Config, deps.Monitoring, handlers.NewHealthHandler(deps.Integrity))

	guard := middleware.NewGuard(deps.Evaluator, deps.Roles)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	registerAuthorizeRoutes(api, handlers.NewAuthorizeHandler(deps.Evaluator, deps.Resolver, guard))
	registerPermissionRoutes(api, handlers.NewPermissionHandler(deps.Permissions), guard)
	registerRoleRoutes(api, handlers.NewRoleHandler(deps.Roles), handlers.NewTemplateHandler(deps.Templates), guard)
	registerAssignmentRoutes(api, handlers.NewAssignmentHandler(deps.Roles), guard)
	registerTemplateRoutes(api, handlers.NewTemplateHandler(deps.Templates), guard)
	registerAuditRoutes(api, handlers.NewAuditHandler(deps.Audit), guard)
	registerMonitoringRoutes(api, handlers.NewMonitoringHandler(deps.Monitoring, deps.Config), guard)

	if deps.Config.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(deps.Config.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		if deps.Monitoring != nil {
			r.GET(endpoint, gin.WrapH(deps.Monitoring.Handler()))
		} else {
			r.GET(endpoint, gin.WrapH(promhttp.Handler()))
		}
	}

	r.NoRoute(middleware.NotFoundHandler)
	r.NoMethod(middleware.MethodNotAllowedHandler)

	return r, nil
}

// manage admits the full administrator permission or the narrower one.
func manage(guard *middleware.Guard, narrower permissions.Name) gin.HandlerFunc {
	return middleware.RequireAny(guard, permissions.SystemManage, narrower)
}

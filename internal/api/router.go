package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aegisauth/aegis/internal/authz"
	"github.com/aegisauth/aegis/internal/handlers"
	"github.com/aegisauth/aegis/internal/middleware"
	"github.com/aegisauth/aegis/internal/services"
)

// Resources and actions guarding the engine's own management API. Tenants
// grant them to their administrator roles like any other permission.
const (
	resourceRoles      = "roles"
	resourceViolations = "violations"
	resourceAudit      = "audit"

	actionRead   = "read"
	actionManage = "manage"
)

// Services bundles the engine components the HTTP surface exposes.
type Services struct {
	Enforcer   *authz.Enforcer
	Roles      *services.RoleService
	Violations *services.ViolationService
	Audit      *services.AuditService
	Exporter   *services.AuditExporter
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(svcs Services) (*gin.Engine, error) {
	if svcs.Enforcer == nil {
		return nil, fmt.Errorf("enforcer must be provided")
	}
	if svcs.Roles == nil || svcs.Violations == nil || svcs.Audit == nil || svcs.Exporter == nil {
		return nil, fmt.Errorf("all services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Public endpoints
	r.GET("/health", handlers.Health())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Everything else requires a gateway-authenticated caller.
	api := r.Group("/api")
	api.Use(middleware.Identity())

	if err := registerCheckRoutes(api, svcs.Enforcer); err != nil {
		return nil, err
	}
	if err := registerRoleRoutes(api, svcs.Enforcer, svcs.Roles); err != nil {
		return nil, err
	}
	if err := registerViolationRoutes(api, svcs.Enforcer, svcs.Violations); err != nil {
		return nil, err
	}
	if err := registerAuditRoutes(api, svcs.Enforcer, svcs.Audit, svcs.Exporter); err != nil {
		return nil, err
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

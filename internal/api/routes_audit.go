package api

import (
	"github.com/gin-gonic/gin"

	"github.com/aegisauth/aegis/internal/authz"
	"github.com/aegisauth/aegis/internal/handlers"
	"github.com/aegisauth/aegis/internal/middleware"
	"github.com/aegisauth/aegis/internal/services"
)

func registerAuditRoutes(api *gin.RouterGroup, enforcer *authz.Enforcer, svc *services.AuditService, exporter *services.AuditExporter) error {
	auditHandler, err := handlers.NewAuditHandler(svc, exporter)
	if err != nil {
		return err
	}

	tenant := api.Group("/tenants/:tenantId/audit")
	tenant.Use(middleware.RequireAccess(enforcer, resourceAudit, actionRead))
	{
		tenant.GET("", auditHandler.List)
		tenant.GET("/export", auditHandler.Export)
		tenant.GET("/:id", auditHandler.Get)
	}

	return nil
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/aegisauth/aegis/internal/authz"
	"github.com/aegisauth/aegis/internal/handlers"
	"github.com/aegisauth/aegis/internal/middleware"
	"github.com/aegisauth/aegis/internal/services"
)

func registerViolationRoutes(api *gin.RouterGroup, enforcer *authz.Enforcer, svc *services.ViolationService) error {
	violationHandler, err := handlers.NewViolationHandler(svc, enforcer)
	if err != nil {
		return err
	}

	tenant := api.Group("/tenants/:tenantId/violations")
	{
		tenant.GET("", middleware.RequireAccess(enforcer, resourceViolations, actionRead), violationHandler.List)

		tenant.POST("/permissions", middleware.RequireAccess(enforcer, resourceViolations, actionManage), violationHandler.SuspendPermission)
		tenant.DELETE("/permissions", middleware.RequireAccess(enforcer, resourceViolations, actionManage), violationHandler.RestorePermission)

		tenant.GET("/lockdown", middleware.RequireAccess(enforcer, resourceViolations, actionRead), violationHandler.LockdownStatus)
		tenant.POST("/lockdown", middleware.RequireAccess(enforcer, resourceViolations, actionManage), violationHandler.Lockdown)
		tenant.DELETE("/lockdown", middleware.RequireAccess(enforcer, resourceViolations, actionManage), violationHandler.Unlock)
	}

	return nil
}

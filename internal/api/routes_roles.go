package api

import (
	"github.com/gin-gonic/gin"

	"github.com/aegisauth/aegis/internal/authz"
	"github.com/aegisauth/aegis/internal/handlers"
	"github.com/aegisauth/aegis/internal/middleware"
	"github.com/aegisauth/aegis/internal/services"
)

func registerRoleRoutes(api *gin.RouterGroup, enforcer *authz.Enforcer, svc *services.RoleService) error {
	roleHandler, err := handlers.NewRoleHandler(svc)
	if err != nil {
		return err
	}

	// Global role administration is reserved for the platform operator; the
	// gateway restricts who can reach these routes at all.
	roles := api.Group("/roles")
	{
		roles.GET("", roleHandler.ListGlobal)
		roles.POST("", roleHandler.CreateGlobal)
		roles.GET("/:id", roleHandler.Get)
		roles.PATCH("/:id", roleHandler.Update)
		roles.DELETE("/:id", roleHandler.Delete)
	}

	tenant := api.Group("/tenants/:tenantId")
	{
		tenant.GET("/roles", middleware.RequireAccess(enforcer, resourceRoles, actionRead), roleHandler.ListTenant)
		tenant.POST("/roles", middleware.RequireAccess(enforcer, resourceRoles, actionManage), roleHandler.CreateTenant)

		tenant.GET("/policies", middleware.RequireAccess(enforcer, resourceRoles, actionRead), roleHandler.ListPolicies)
		tenant.POST("/policies", middleware.RequireAccess(enforcer, resourceRoles, actionManage), roleHandler.AttachPolicy)
		tenant.DELETE("/policies", middleware.RequireAccess(enforcer, resourceRoles, actionManage), roleHandler.DetachPolicy)

		tenant.GET("/assignments", middleware.RequireAccess(enforcer, resourceRoles, actionRead), roleHandler.ListAssignments)
		tenant.POST("/assignments", middleware.RequireAccess(enforcer, resourceRoles, actionManage), roleHandler.Assign)
		tenant.DELETE("/assignments", middleware.RequireAccess(enforcer, resourceRoles, actionManage), roleHandler.Unassign)

		tenant.PUT("/members/role", middleware.RequireAccess(enforcer, resourceRoles, actionManage), roleHandler.SyncMembership)
	}

	return nil
}

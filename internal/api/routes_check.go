package api

import (
	"github.com/gin-gonic/gin"

	"github.com/aegisauth/aegis/internal/authz"
	"github.com/aegisauth/aegis/internal/handlers"
)

func registerCheckRoutes(api *gin.RouterGroup, enforcer *authz.Enforcer) error {
	checkHandler, err := handlers.NewCheckHandler(enforcer)
	if err != nil {
		return err
	}

	api.POST("/check", checkHandler.Check)
	api.GET("/tenants/:tenantId/permissions", checkHandler.EffectivePermissions)

	return nil
}

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aegisauth/aegis/internal/authz"
	"github.com/aegisauth/aegis/pkg/errors"
	"github.com/aegisauth/aegis/pkg/response"
)

// TenantParam is the route parameter carrying the tenant domain.
const TenantParam = "tenantId"

// RequireAccess authorizes the caller for (resource, action) in the tenant
// named by the route. A store error denies: the engine fails closed.
func RequireAccess(enforcer *authz.Enforcer, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		tenantID := strings.TrimSpace(c.Param(TenantParam))
		if tenantID == "" {
			response.Error(c, errors.NewBadRequest("tenant id is required"))
			c.Abort()
			return
		}

		allowed, err := enforcer.Authorize(c.Request.Context(), authz.Request{
			UserID:   userID,
			TenantID: tenantID,
			Resource: resource,
			Action:   action,
		})
		if err != nil {
			response.Error(c, errors.Wrap(err, "authorization check failed"))
			c.Abort()
			return
		}
		if !allowed {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

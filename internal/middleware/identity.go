package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aegisauth/aegis/internal/auditctx"
	"github.com/aegisauth/aegis/internal/models"
	"github.com/aegisauth/aegis/pkg/errors"
	"github.com/aegisauth/aegis/pkg/response"
)

// Context keys shared by middleware and handlers.
const (
	CtxUserIDKey = "userID"
)

// Headers set by the upstream gateway after it has authenticated the caller.
// The engine never authenticates; it trusts these values.
const (
	HeaderUserID    = "X-User-ID"
	HeaderActorType = "X-Actor-Type"
)

// Identity resolves the pre-authenticated caller from trusted headers and
// records the actor for audit logging downstream.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		actorType := strings.TrimSpace(c.GetHeader(HeaderActorType))
		if actorType != models.ActorTypeSystem {
			actorType = models.ActorTypeUser
		}

		c.Set(CtxUserIDKey, userID)

		actor := auditctx.Actor{
			Type:      actorType,
			ID:        userID,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// UserID returns the authenticated caller id stored by Identity.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxUserIDKey)
	if !ok {
		return "", false
	}
	userID, _ := v.(string)
	return userID, userID != ""
}

package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aegisauth/aegis/pkg/errors"
	"github.com/aegisauth/aegis/pkg/logger"
	"github.com/aegisauth/aegis/pkg/response"
)

// Recovery converts panics into the standard 500 envelope. The panicking
// caller is logged with a stack so the decision path can be reconstructed;
// the client sees no internals.
func Recovery() gin.HandlerFunc {
	log := logger.WithModule("http")
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				fields := []zap.Field{
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", r),
					zap.Stack("stack"),
				}
				if userID, ok := UserID(c); ok {
					fields = append(fields, logger.Subject(userID))
				}
				log.Error("panic recovered", fields...)

				c.Abort()
				response.Error(c, errors.ErrInternalServer)
			}
		}()
		c.Next()
	}
}

// NotFoundHandler returns the standard error envelope for unknown routes.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.NewNotFound("route not found"))
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/aegisauth/aegis/internal/auditctx"
	"github.com/aegisauth/aegis/internal/models"
)

func newIdentityRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity())
	r.GET("/whoami", func(c *gin.Context) {
		userID, _ := UserID(c)
		actor, _ := auditctx.FromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "actor_type": actor.Type})
	})
	return r
}

func TestIdentityRejectsMissingUserHeader(t *testing.T) {
	r := newIdentityRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIdentityResolvesTrustedHeaders(t *testing.T) {
	r := newIdentityRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderUserID, "alice")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"user_id":"alice"`)
	require.Contains(t, w.Body.String(), `"actor_type":"user"`)
}

func TestIdentityRecognisesSystemActors(t *testing.T) {
	r := newIdentityRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderUserID, "scheduler")
	req.Header.Set(HeaderActorType, models.ActorTypeSystem)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"actor_type":"system"`)
}

func TestIdentityNormalisesUnknownActorTypes(t *testing.T) {
	r := newIdentityRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderUserID, "alice")
	req.Header.Set(HeaderActorType, "robot")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"actor_type":"user"`)
}

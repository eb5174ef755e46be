package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aegisauth/aegis/internal/authz"
	"github.com/aegisauth/aegis/internal/database/testutil"
	"github.com/aegisauth/aegis/internal/middleware"
	"github.com/aegisauth/aegis/internal/models"
	"github.com/aegisauth/aegis/internal/policy"
)

func newCheckRouter(t *testing.T) (*gin.Engine, *policy.Store) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := policy.NewStore(db)
	require.NoError(t, err)
	cache, err := authz.NewCache(16)
	require.NoError(t, err)
	enforcer, err := authz.NewEnforcer(store, cache, "app", zap.NewNop())
	require.NoError(t, err)
	handler, err := NewCheckHandler(enforcer)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Identity())
	r.POST("/check", handler.Check)
	r.GET("/tenants/:tenantId/permissions", handler.EffectivePermissions)
	return r, store
}

func grantDocumentRead(t *testing.T, store *policy.Store, userID, tenantID string) {
	t.Helper()
	ctx := context.Background()

	role, err := store.CreateRole(ctx, policy.CreateRoleInput{ApplicationID: "app", TenantID: tenantID, Name: "reader"})
	require.NoError(t, err)
	_, err = store.AssignRole(ctx, policy.AssignRoleInput{UserID: userID, RoleID: role.ID, ApplicationID: "app", TenantID: tenantID})
	require.NoError(t, err)
	_, err = store.AddPolicy(ctx, policy.Tuple{Role: "reader", Domain: tenantID, Resource: "document", Action: "read", Effect: models.EffectAllow})
	require.NoError(t, err)
}

func postCheck(r *gin.Engine, caller, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/check", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderUserID, caller)
	r.ServeHTTP(w, req)
	return w
}

func TestCheckDefaultsToCaller(t *testing.T) {
	r, store := newCheckRouter(t)
	grantDocumentRead(t, store, "alice", "org_1")

	w := postCheck(r, "alice", `{"tenant_id":"org_1","resource":"document","action":"read"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"allowed":true`)

	w = postCheck(r, "bob", `{"tenant_id":"org_1","resource":"document","action":"read"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"allowed":false`)
}

func TestCheckOnBehalfOfSubject(t *testing.T) {
	r, store := newCheckRouter(t)
	grantDocumentRead(t, store, "alice", "org_1")

	w := postCheck(r, "svc-gateway", `{"user_id":"alice","tenant_id":"org_1","resource":"document","action":"read"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"allowed":true`)
}

func TestCheckValidatesRequest(t *testing.T) {
	r, _ := newCheckRouter(t)

	w := postCheck(r, "alice", `{"resource":"document","action":"read"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = postCheck(r, "alice", `not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEffectivePermissionsEndpoint(t *testing.T) {
	r, store := newCheckRouter(t)
	grantDocumentRead(t, store, "alice", "org_1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tenants/org_1/permissions", nil)
	req.Header.Set(middleware.HeaderUserID, "alice")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"resource":"document"`)
	require.Contains(t, w.Body.String(), `"effect":"allow"`)

	// Another caller may inspect an arbitrary subject.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/tenants/org_1/permissions?user_id=bob", nil)
	req.Header.Set(middleware.HeaderUserID, "alice")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), `"resource":"document"`)
}

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aegisauth/aegis/internal/authz"
	"github.com/aegisauth/aegis/internal/database/testutil"
	"github.com/aegisauth/aegis/internal/models"
	"github.com/aegisauth/aegis/internal/policy"
)

func newAccessRouter(t *testing.T) (*gin.Engine, *policy.Store) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := policy.NewStore(db)
	require.NoError(t, err)
	cache, err := authz.NewCache(16)
	require.NoError(t, err)
	enforcer, err := authz.NewEnforcer(store, cache, "app", zap.NewNop())
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity())
	r.GET("/tenants/:tenantId/roles", RequireAccess(enforcer, "roles", "read"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/flat", RequireAccess(enforcer, "roles", "read"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r, store
}

func grantRolesRead(t *testing.T, store *policy.Store, userID, tenantID string) {
	t.Helper()
	ctx := context.Background()

	role, err := store.CreateRole(ctx, policy.CreateRoleInput{ApplicationID: "app", TenantID: tenantID, Name: "tenant-admin"})
	require.NoError(t, err)
	_, err = store.AssignRole(ctx, policy.AssignRoleInput{UserID: userID, RoleID: role.ID, ApplicationID: "app", TenantID: tenantID})
	require.NoError(t, err)
	_, err = store.AddPolicy(ctx, policy.Tuple{Role: "tenant-admin", Domain: tenantID, Resource: "roles", Action: "read", Effect: models.EffectAllow})
	require.NoError(t, err)
}

func TestRequireAccessUnauthenticated(t *testing.T) {
	r, _ := newAccessRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tenants/org_1/roles", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAccessDeniesWithoutGrant(t *testing.T) {
	r, _ := newAccessRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tenants/org_1/roles", nil)
	req.Header.Set(HeaderUserID, "bob")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAccessAllowsGrantedUser(t *testing.T) {
	r, store := newAccessRouter(t)
	grantRolesRead(t, store, "alice", "org_1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tenants/org_1/roles", nil)
	req.Header.Set(HeaderUserID, "alice")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	// The grant is tenant-scoped.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/tenants/org_2/roles", nil)
	req.Header.Set(HeaderUserID, "alice")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAccessNeedsTenantParam(t *testing.T) {
	r, _ := newAccessRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/flat", nil)
	req.Header.Set(HeaderUserID, "alice")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

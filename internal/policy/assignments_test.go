package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aegisauth/aegis/internal/database/testutil"
)

func TestAssignRoleIdempotentDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	role, err := store.CreateRole(ctx, CreateRoleInput{ApplicationID: "app", TenantID: "org_1", Name: "editor"})
	require.NoError(t, err)

	assigned, err := store.AssignRole(ctx, AssignRoleInput{UserID: "alice", RoleID: role.ID, ApplicationID: "app", TenantID: "org_1"})
	require.NoError(t, err)
	require.True(t, assigned)

	assigned, err = store.AssignRole(ctx, AssignRoleInput{UserID: "alice", RoleID: role.ID, ApplicationID: "app", TenantID: "org_1"})
	require.NoError(t, err)
	require.False(t, assigned, "duplicate assignment must be a no-op")
}

func TestAssignRoleTenantScopeEnforced(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	role, err := store.CreateRole(ctx, CreateRoleInput{ApplicationID: "app", TenantID: "org_1", Name: "editor"})
	require.NoError(t, err)

	_, err = store.AssignRole(ctx, AssignRoleInput{UserID: "alice", RoleID: role.ID, ApplicationID: "app", TenantID: "org_2"})
	require.Error(t, err, "a tenant-scoped role must not be assignable in another tenant")

	_, err = store.AssignRole(ctx, AssignRoleInput{UserID: "alice", RoleID: role.ID, ApplicationID: "app"})
	require.Error(t, err, "a tenant-scoped role must not be assignable globally")
}

func TestGetRolesForUserInDomainUnionsGlobalAndTenant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	global, err := store.CreateRole(ctx, CreateRoleInput{ApplicationID: "app", Name: "support"})
	require.NoError(t, err)
	scoped, err := store.CreateRole(ctx, CreateRoleInput{ApplicationID: "app", TenantID: "org_1", Name: "editor"})
	require.NoError(t, err)

	_, err = store.AssignRole(ctx, AssignRoleInput{UserID: "alice", RoleID: global.ID, ApplicationID: "app"})
	require.NoError(t, err)
	_, err = store.AssignRole(ctx, AssignRoleInput{UserID: "alice", RoleID: scoped.ID, ApplicationID: "app", TenantID: "org_1"})
	require.NoError(t, err)

	names, err := store.GetRolesForUserInDomain(ctx, "app", "alice", "org_1")
	require.NoError(t, err)
	require.Equal(t, []string{"editor", "support"}, names)

	// In another tenant only the global assignment applies.
	names, err = store.GetRolesForUserInDomain(ctx, "app", "alice", "org_2")
	require.NoError(t, err)
	require.Equal(t, []string{"support"}, names)

	names, err = store.GetRolesForUserInDomain(ctx, "app", "bob", "org_1")
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestRemoveRoleReportsExistence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	role, err := store.CreateRole(ctx, CreateRoleInput{ApplicationID: "app", TenantID: "org_1", Name: "editor"})
	require.NoError(t, err)

	removed, err := store.RemoveRole(ctx, "alice", role.ID, "org_1")
	require.NoError(t, err)
	require.False(t, removed)

	_, err = store.AssignRole(ctx, AssignRoleInput{UserID: "alice", RoleID: role.ID, ApplicationID: "app", TenantID: "org_1"})
	require.NoError(t, err)

	removed, err = store.RemoveRole(ctx, "alice", role.ID, "org_1")
	require.NoError(t, err)
	require.True(t, removed)
}

func TestSyncRoleReplacesMembershipAssignment(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	store, err := NewStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	const appID = "default"

	// A custom, non-system role assignment must survive membership syncs.
	custom, err := store.CreateRole(ctx, CreateRoleInput{ApplicationID: appID, TenantID: "org_1", Name: "auditor"})
	require.NoError(t, err)
	_, err = store.AssignRole(ctx, AssignRoleInput{UserID: "alice", RoleID: custom.ID, ApplicationID: appID, TenantID: "org_1"})
	require.NoError(t, err)

	require.NoError(t, store.SyncRole(ctx, appID, "alice", "org_1", "admin", "membership-sync"))

	names, err := store.GetRolesForUserInDomain(ctx, appID, "alice", "org_1")
	require.NoError(t, err)
	require.Equal(t, []string{"admin", "auditor"}, names)

	// Syncing a different label swaps the membership role, never stacks it.
	require.NoError(t, store.SyncRole(ctx, appID, "alice", "org_1", "member", "membership-sync"))

	names, err = store.GetRolesForUserInDomain(ctx, appID, "alice", "org_1")
	require.NoError(t, err)
	require.Equal(t, []string{"auditor", "member"}, names)
}

func TestSyncRoleRejectsNonSystemRole(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	store, err := NewStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.CreateRole(ctx, CreateRoleInput{ApplicationID: "default", TenantID: "org_1", Name: "auditor"})
	require.NoError(t, err)

	err = store.SyncRole(ctx, "default", "alice", "org_1", "auditor", "")
	require.Error(t, err)

	err = store.SyncRole(ctx, "default", "alice", "org_1", "missing", "")
	require.ErrorIs(t, err, ErrRoleNotFound)
}

func TestListAssignmentsPreloadsRoles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	role, err := store.CreateRole(ctx, CreateRoleInput{ApplicationID: "app", TenantID: "org_1", Name: "editor"})
	require.NoError(t, err)

	_, err = store.AssignRole(ctx, AssignRoleInput{UserID: "alice", RoleID: role.ID, ApplicationID: "app", TenantID: "org_1", AssignedBy: "root"})
	require.NoError(t, err)

	assignments, err := store.ListAssignments(ctx, "app", "alice", "org_1")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	require.NotNil(t, assignments[0].Role)
	require.Equal(t, "editor", assignments[0].Role.Name)
	require.Equal(t, "root", assignments[0].AssignedBy)
}

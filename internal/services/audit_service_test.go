package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aegisauth/aegis/internal/auditctx"
	"github.com/aegisauth/aegis/internal/database/testutil"
	"github.com/aegisauth/aegis/internal/models"
)

func newAuditServiceTest(t *testing.T) (*AuditService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewAuditService(db)
	require.NoError(t, err)
	return svc, db
}

func TestAuditLogValidation(t *testing.T) {
	svc, _ := newAuditServiceTest(t)
	ctx := context.Background()

	err := svc.Log(ctx, AuditEntry{TenantID: "org_1"})
	require.Error(t, err, "event type is required")

	err = svc.Log(ctx, AuditEntry{EventType: "made.up", TenantID: "org_1"})
	require.Error(t, err, "unregistered event types are rejected")

	err = svc.Log(ctx, AuditEntry{EventType: EventRoleCreated})
	require.Error(t, err, "tenant id is required")
}

func TestAuditLogRecordsActorFromContext(t *testing.T) {
	svc, db := newAuditServiceTest(t)

	ctx := auditctx.WithActor(context.Background(), auditctx.Actor{
		ID:        "root",
		IPAddress: "10.0.0.1",
		UserAgent: "curl/8",
	})
	require.NoError(t, svc.Log(ctx, AuditEntry{
		EventType: EventPolicyAdded,
		TenantID:  "org_1",
		Resource:  "document",
		Action:    "read",
		Effect:    models.EffectAllow,
		Details:   map[string]any{"role": "editor"},
	}))

	var entry models.AuditLog
	require.NoError(t, db.First(&entry).Error)
	require.Equal(t, models.ActorTypeUser, entry.ActorType)
	require.Equal(t, "root", entry.ActorID)
	require.Equal(t, "10.0.0.1", entry.IPAddress)
	require.Equal(t, "curl/8", entry.UserAgent)
	require.Contains(t, string(entry.Details), "editor")

	// Without an actor in context the entry is attributed to the system.
	require.NoError(t, svc.Log(context.Background(), AuditEntry{EventType: EventPolicyRemoved, TenantID: "org_1"}))
	var system models.AuditLog
	require.NoError(t, db.Where("event_type = ?", EventPolicyRemoved).First(&system).Error)
	require.Equal(t, models.ActorTypeSystem, system.ActorType)
}

func TestQueryLogsTenantScopedAndFiltered(t *testing.T) {
	svc, _ := newAuditServiceTest(t)
	ctx := auditctx.WithActor(context.Background(), auditctx.Actor{ID: "root"})

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Log(ctx, AuditEntry{EventType: EventRoleCreated, TenantID: "org_1", Resource: "document"}))
	}
	require.NoError(t, svc.Log(ctx, AuditEntry{EventType: EventRoleDeleted, TenantID: "org_1"}))
	require.NoError(t, svc.Log(ctx, AuditEntry{EventType: EventRoleCreated, TenantID: "org_2"}))

	logs, total, err := svc.QueryLogs(ctx, "org_1", AuditListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	require.Len(t, logs, 4)

	logs, total, err = svc.QueryLogs(ctx, "org_1", AuditListOptions{Filters: AuditFilters{EventType: EventRoleCreated}})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, logs, 3)

	logs, total, err = svc.QueryLogs(ctx, "org_1", AuditListOptions{Page: 2, PageSize: 3})
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	require.Len(t, logs, 1)

	_, _, err = svc.QueryLogs(ctx, "", AuditListOptions{})
	require.Error(t, err)
}

func TestGetLogByIDTenantIsolation(t *testing.T) {
	svc, db := newAuditServiceTest(t)
	ctx := context.Background()

	require.NoError(t, svc.Log(ctx, AuditEntry{EventType: EventRoleCreated, TenantID: "org_1"}))

	var entry models.AuditLog
	require.NoError(t, db.First(&entry).Error)

	got, err := svc.GetLogByID(ctx, "org_1", entry.ID)
	require.NoError(t, err)
	require.Equal(t, entry.ID, got.ID)

	_, err = svc.GetLogByID(ctx, "org_2", entry.ID)
	require.ErrorIs(t, err, ErrAuditLogNotFound, "an entry id must not be readable from another tenant")
}

func TestCleanupOlderThan(t *testing.T) {
	svc, db := newAuditServiceTest(t)
	ctx := context.Background()

	require.NoError(t, svc.Log(ctx, AuditEntry{EventType: EventRoleCreated, TenantID: "org_1"}))
	require.NoError(t, svc.Log(ctx, AuditEntry{EventType: EventRoleDeleted, TenantID: "org_1"}))

	// Age one entry past the retention window.
	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("event_type = ?", EventRoleCreated).
		Update("created_at", time.Now().AddDate(0, 0, -120)).Error)

	_, err := svc.CleanupOlderThan(ctx, 0)
	require.Error(t, err)

	removed, err := svc.CleanupOlderThan(ctx, 90)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aegisauth/aegis/internal/authz"
	"github.com/aegisauth/aegis/internal/database/testutil"
	"github.com/aegisauth/aegis/internal/models"
	"github.com/aegisauth/aegis/internal/policy"
	"github.com/aegisauth/aegis/internal/services"
)

func newSweeperFixture(t *testing.T) (*services.ViolationService, *services.AuditService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := policy.NewStore(db)
	require.NoError(t, err)
	cache, err := authz.NewCache(16)
	require.NoError(t, err)
	enforcer, err := authz.NewEnforcer(store, cache, "app", zap.NewNop())
	require.NoError(t, err)
	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	violations, err := services.NewViolationService(db, store, enforcer.Cache(), audit, zap.NewNop())
	require.NoError(t, err)
	return violations, audit, db
}

func TestRunOnceLiftsDueSuspensions(t *testing.T) {
	violations, audit, db := newSweeperFixture(t)
	ctx := context.Background()

	expiry := time.Now().Add(time.Hour)
	created, err := violations.SuspendPermission(ctx, services.SuspendPermissionInput{
		TenantID:  "org_1",
		Resource:  "document",
		Action:    "write",
		Severity:  "high",
		Reason:    "credential leak",
		ExpiresAt: &expiry,
	})
	require.NoError(t, err)
	require.True(t, created)

	// Age the expiry so the next sweep considers it due.
	require.NoError(t, db.Model(&models.ViolationExpiry{}).
		Where("tenant_id = ?", "org_1").
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	sweeper := NewSweeper(violations, audit)
	require.NoError(t, sweeper.RunOnce(ctx))

	active, err := violations.ListViolations(ctx, "org_1")
	require.NoError(t, err)
	require.Empty(t, active, "the suspension must be lifted once its expiry passes")

	var remaining int64
	require.NoError(t, db.Model(&models.ViolationExpiry{}).Count(&remaining).Error)
	require.Zero(t, remaining)
}

func TestRunOncePrunesAgedAuditLogs(t *testing.T) {
	violations, audit, db := newSweeperFixture(t)
	ctx := context.Background()

	require.NoError(t, audit.Log(ctx, services.AuditEntry{EventType: services.EventRoleCreated, TenantID: "org_1"}))
	require.NoError(t, audit.Log(ctx, services.AuditEntry{EventType: services.EventRoleDeleted, TenantID: "org_1"}))
	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("event_type = ?", services.EventRoleCreated).
		Update("created_at", time.Now().AddDate(0, 0, -30)).Error)

	sweeper := NewSweeper(violations, audit, WithAuditRetentionDays(7))
	require.NoError(t, sweeper.RunOnce(ctx))

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	violations, audit, _ := newSweeperFixture(t)

	sweeper := NewSweeper(violations, audit, WithSweepSchedule("not a cron spec"))
	require.Error(t, sweeper.Start())
}

func TestStartAndStopWithoutJobs(t *testing.T) {
	sweeper := NewSweeper(nil, nil)
	require.NoError(t, sweeper.Start())

	done := sweeper.Stop()
	select {
	case <-done.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}

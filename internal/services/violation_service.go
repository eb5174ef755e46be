package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aegisauth/aegis/internal/auditctx"
	"github.com/aegisauth/aegis/internal/authz"
	"github.com/aegisauth/aegis/internal/models"
	"github.com/aegisauth/aegis/internal/policy"
	apperrors "github.com/aegisauth/aegis/pkg/errors"
	"github.com/aegisauth/aegis/pkg/metrics"
)

// Violation severities accepted by the violation service.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

func validSeverity(severity string) bool {
	switch severity {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ViolationService overlays emergency deny policy on top of role-based
// policy using wildcard-role deny tuples. Severity and reason travel only in
// the audit trail; expiry additionally lands in a side table so the sweeper
// can restore suspensions without replaying audit history.
type ViolationService struct {
	db    *gorm.DB
	store *policy.Store
	cache authz.Invalidator
	audit *AuditService
	log   *zap.Logger
	now   func() time.Time
}

// NewViolationService constructs a ViolationService with its collaborators injected.
func NewViolationService(db *gorm.DB, store *policy.Store, cache authz.Invalidator, audit *AuditService, log *zap.Logger) (*ViolationService, error) {
	if db == nil {
		return nil, errors.New("violation service: db is required")
	}
	if store == nil {
		return nil, errors.New("violation service: policy store is required")
	}
	if cache == nil {
		return nil, errors.New("violation service: cache invalidator is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ViolationService{
		db:    db,
		store: store,
		cache: cache,
		audit: audit,
		log:   log,
		now:   time.Now,
	}, nil
}

// SuspendPermissionInput describes a single-permission suspension.
type SuspendPermissionInput struct {
	TenantID  string
	Resource  string
	Action    string
	Severity  string
	Reason    string
	ExpiresAt *time.Time
}

// SuspendPermission adds a wildcard-role deny tuple for (tenant, resource,
// action). Returns false when an equivalent suspension already exists.
func (s *ViolationService) SuspendPermission(ctx context.Context, input SuspendPermissionInput) (bool, error) {
	ctx = ensureContext(ctx)

	if !validSeverity(strings.TrimSpace(input.Severity)) {
		return false, apperrors.NewBadRequest("severity must be low, medium, high or critical")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return false, apperrors.NewBadRequest("reason is required")
	}
	if input.ExpiresAt != nil && !input.ExpiresAt.After(s.now()) {
		return false, apperrors.NewBadRequest("expiry must be in the future")
	}

	added, err := s.store.AddPolicy(ctx, policy.Tuple{
		Role:      models.WildcardRole,
		Domain:    input.TenantID,
		Resource:  input.Resource,
		Action:    input.Action,
		Effect:    models.EffectDeny,
		Condition: models.ConditionNone,
	})
	if err != nil || !added {
		if err == nil {
			// No-op, but the live count may have drifted across instances.
			s.refreshViolationGauge(ctx, input.TenantID)
		}
		return added, err
	}

	// The deny tuple is committed at this point: even when recording the
	// expiry fails below, the suspension must be invalidated and audited.
	var expiryErr error
	if input.ExpiresAt != nil {
		expiryErr = s.upsertExpiry(ctx, input.TenantID, input.Resource, input.Action, *input.ExpiresAt)
	}

	s.cache.InvalidateTenant(input.TenantID)
	s.refreshViolationGauge(ctx, input.TenantID)

	details := map[string]any{
		"severity": strings.TrimSpace(input.Severity),
		"reason":   strings.TrimSpace(input.Reason),
	}
	if input.ExpiresAt != nil {
		details["expires_at"] = input.ExpiresAt.UTC().Format(time.RFC3339)
	}
	recordAudit(s.audit, ctx, s.log, AuditEntry{
		EventType: EventPermissionSuspended,
		TenantID:  strings.TrimSpace(input.TenantID),
		Resource:  strings.TrimSpace(input.Resource),
		Action:    strings.TrimSpace(input.Action),
		Effect:    models.EffectDeny,
		Details:   details,
	})
	return true, expiryErr
}

// RestorePermission removes the wildcard-role deny tuple for (tenant,
// resource, action). Returns false when no such suspension exists.
func (s *ViolationService) RestorePermission(ctx context.Context, tenantID, resource, action string) (bool, error) {
	ctx = ensureContext(ctx)

	removed, err := s.store.RemovePolicy(ctx, policy.Tuple{
		Role:     models.WildcardRole,
		Domain:   tenantID,
		Resource: resource,
		Action:   action,
		Effect:   models.EffectDeny,
	})
	if err != nil || !removed {
		if err == nil {
			s.refreshViolationGauge(ctx, tenantID)
		}
		return removed, err
	}

	expiryErr := s.deleteExpiry(ctx, tenantID, resource, action)

	s.cache.InvalidateTenant(tenantID)
	s.refreshViolationGauge(ctx, tenantID)

	recordAudit(s.audit, ctx, s.log, AuditEntry{
		EventType: EventPermissionRestored,
		TenantID:  strings.TrimSpace(tenantID),
		Resource:  strings.TrimSpace(resource),
		Action:    strings.TrimSpace(action),
		Details:   map[string]any{},
	})
	return true, expiryErr
}

// SuspendOrganization records the lockdown sentinel tuple for the tenant.
// The sentinel is a recorded flag: callers wanting lockdown enforcement must
// check it explicitly, it does not automatically deny other resource/action
// pairs.
func (s *ViolationService) SuspendOrganization(ctx context.Context, tenantID, severity, reason string) (bool, error) {
	ctx = ensureContext(ctx)

	if !validSeverity(strings.TrimSpace(severity)) {
		return false, apperrors.NewBadRequest("severity must be low, medium, high or critical")
	}
	if strings.TrimSpace(reason) == "" {
		return false, apperrors.NewBadRequest("reason is required")
	}

	added, err := s.store.AddPolicy(ctx, policy.Tuple{
		Role:      models.WildcardRole,
		Domain:    tenantID,
		Resource:  authz.LockdownResource,
		Action:    authz.LockdownAction,
		Effect:    models.EffectDeny,
		Condition: models.ConditionNone,
	})
	if err != nil || !added {
		return added, err
	}

	s.cache.InvalidateTenant(tenantID)
	s.refreshViolationGauge(ctx, tenantID)

	recordAudit(s.audit, ctx, s.log, AuditEntry{
		EventType: EventOrgSuspended,
		TenantID:  strings.TrimSpace(tenantID),
		Resource:  authz.LockdownResource,
		Action:    authz.LockdownAction,
		Effect:    models.EffectDeny,
		Details: map[string]any{
			"severity": strings.TrimSpace(severity),
			"reason":   strings.TrimSpace(reason),
		},
	})
	return true, nil
}

// RestoreOrganization lifts the lockdown sentinel for the tenant.
func (s *ViolationService) RestoreOrganization(ctx context.Context, tenantID string) (bool, error) {
	ctx = ensureContext(ctx)

	removed, err := s.store.RemovePolicy(ctx, policy.Tuple{
		Role:     models.WildcardRole,
		Domain:   tenantID,
		Resource: authz.LockdownResource,
		Action:   authz.LockdownAction,
		Effect:   models.EffectDeny,
	})
	if err != nil || !removed {
		return removed, err
	}

	s.cache.InvalidateTenant(tenantID)
	s.refreshViolationGauge(ctx, tenantID)

	recordAudit(s.audit, ctx, s.log, AuditEntry{
		EventType: EventOrgRestored,
		TenantID:  strings.TrimSpace(tenantID),
		Resource:  authz.LockdownResource,
		Action:    authz.LockdownAction,
		Details:   map[string]any{},
	})
	return true, nil
}

// ListViolations returns the tenant's active wildcard-role deny tuples.
func (s *ViolationService) ListViolations(ctx context.Context, tenantID string) ([]models.PolicyRule, error) {
	return s.store.GetFilteredPolicies(ensureContext(ctx), tenantID, policy.PolicyFilter{
		Role:   models.WildcardRole,
		Effect: models.EffectDeny,
	})
}

// SweepExpired restores every suspension whose expiry has passed. Errors for
// individual suspensions are aggregated so one failure does not stall the
// rest of the sweep.
func (s *ViolationService) SweepExpired(ctx context.Context) (int, error) {
	ctx = auditctx.WithActor(ensureContext(ctx), auditctx.System())

	var due []models.ViolationExpiry
	if err := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now()).
		Find(&due).Error; err != nil {
		return 0, fmt.Errorf("violation service: load due expiries: %w", err)
	}

	restored := 0
	var errs error
	for _, expiry := range due {
		ok, err := s.RestorePermission(ctx, expiry.TenantID, expiry.Resource, expiry.Action)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("restore %s/%s in %s: %w", expiry.Resource, expiry.Action, expiry.TenantID, err))
			continue
		}
		if !ok {
			// The tuple was already restored by hand; drop the stale expiry row.
			if err := s.deleteExpiry(ctx, expiry.TenantID, expiry.Resource, expiry.Action); err != nil {
				errs = multierr.Append(errs, err)
			}
			continue
		}
		restored++
	}
	return restored, errs
}

// refreshViolationGauge sets the per-tenant gauge from the live overlay
// count. Paired Inc/Dec would drift across restarts or when another instance
// mutates the same tenant.
func (s *ViolationService) refreshViolationGauge(ctx context.Context, tenantID string) {
	rules, err := s.ListViolations(ctx, tenantID)
	if err != nil {
		s.log.Warn("violation gauge refresh failed", zap.String("tenant_id", strings.TrimSpace(tenantID)), zap.Error(err))
		return
	}
	metrics.ActiveViolations.WithLabelValues(strings.TrimSpace(tenantID)).Set(float64(len(rules)))
}

func (s *ViolationService) upsertExpiry(ctx context.Context, tenantID, resource, action string, expiresAt time.Time) error {
	expiry := models.ViolationExpiry{
		TenantID:  strings.TrimSpace(tenantID),
		Resource:  strings.TrimSpace(resource),
		Action:    strings.TrimSpace(action),
		ExpiresAt: expiresAt.UTC(),
	}
	err := s.db.WithContext(ctx).
		Where(models.ViolationExpiry{TenantID: expiry.TenantID, Resource: expiry.Resource, Action: expiry.Action}).
		Assign(map[string]any{"expires_at": expiry.ExpiresAt}).
		FirstOrCreate(&models.ViolationExpiry{}).Error
	if err != nil {
		return fmt.Errorf("violation service: record expiry: %w", err)
	}
	return nil
}

func (s *ViolationService) deleteExpiry(ctx context.Context, tenantID, resource, action string) error {
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND resource = ? AND action = ?",
			strings.TrimSpace(tenantID), strings.TrimSpace(resource), strings.TrimSpace(action)).
		Delete(&models.ViolationExpiry{}).Error
	if err != nil {
		return fmt.Errorf("violation service: delete expiry: %w", err)
	}
	return nil
}

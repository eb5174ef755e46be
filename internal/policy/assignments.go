package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aegisauth/aegis/internal/models"
	apperrors "github.com/aegisauth/aegis/pkg/errors"
)

// AssignRoleInput describes a user/role assignment.
type AssignRoleInput struct {
	UserID        string
	RoleID        string
	ApplicationID string
	TenantID      string // empty applies the role across all tenants
	AssignedBy    string
}

// AssignRole links a user to a role. Duplicate assignments are idempotent
// no-ops reported as false.
func (s *Store) AssignRole(ctx context.Context, input AssignRoleInput) (bool, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return false, apperrors.NewBadRequest("user id is required")
	}

	role, err := s.GetRole(ctx, strings.TrimSpace(input.RoleID))
	if err != nil {
		return false, err
	}

	tenant := tenantPtr(input.TenantID)
	if role.TenantID != nil && (tenant == nil || *tenant != *role.TenantID) {
		return false, apperrors.NewBadRequest("tenant-scoped roles can only be assigned within their tenant")
	}

	assignment := models.UserRole{
		UserID:        userID,
		RoleID:        role.ID,
		ApplicationID: role.ApplicationID,
		TenantID:      tenant,
		AssignedBy:    strings.TrimSpace(input.AssignedBy),
		AssignedAt:    time.Now().UTC(),
	}

	var count int64
	query := s.db.WithContext(ctx).Model(&models.UserRole{}).
		Where("user_id = ? AND role_id = ? AND application_id = ?", userID, role.ID, role.ApplicationID)
	if tenant != nil {
		query = query.Where("tenant_id = ?", *tenant)
	} else {
		query = query.Where("tenant_id IS NULL")
	}
	if err := query.Count(&count).Error; err != nil {
		return false, wrap("check assignment", err)
	}
	if count > 0 {
		return false, nil
	}

	if err := s.db.WithContext(ctx).Create(&assignment).Error; err != nil {
		if isUniqueConstraintError(err) {
			return false, nil
		}
		return false, wrap("assign role", err)
	}
	return true, nil
}

// RemoveRole deletes a user/role assignment, reporting whether one existed.
func (s *Store) RemoveRole(ctx context.Context, userID, roleID, tenantID string) (bool, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, apperrors.NewBadRequest("user id is required")
	}

	query := s.db.WithContext(ctx).Where("user_id = ? AND role_id = ?", userID, strings.TrimSpace(roleID))
	if tenant := tenantPtr(tenantID); tenant != nil {
		query = query.Where("tenant_id = ?", *tenant)
	} else {
		query = query.Where("tenant_id IS NULL")
	}

	result := query.Delete(&models.UserRole{})
	if result.Error != nil {
		return false, wrap("remove role", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetRolesForUserInDomain resolves the user's effective role names in a
// tenant: global assignments united with tenant-scoped ones.
func (s *Store) GetRolesForUserInDomain(ctx context.Context, appID, userID, tenantID string) ([]string, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}
	tenant := tenantPtr(tenantID)
	if tenant == nil {
		return nil, apperrors.NewBadRequest("tenant id is required")
	}

	var assignments []models.UserRole
	if err := s.db.WithContext(ctx).
		Preload("Role").
		Where("user_id = ? AND application_id = ?", userID, strings.TrimSpace(appID)).
		Where("tenant_id = ? OR tenant_id IS NULL", *tenant).
		Find(&assignments).Error; err != nil {
		return nil, wrap("resolve user roles", err)
	}

	seen := make(map[string]struct{}, len(assignments))
	names := make([]string, 0, len(assignments))
	for _, assignment := range assignments {
		if assignment.Role == nil {
			continue
		}
		name := assignment.Role.Name
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ListAssignments returns a user's assignments within a tenant, including
// global ones, with roles preloaded.
func (s *Store) ListAssignments(ctx context.Context, appID, userID, tenantID string) ([]models.UserRole, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).
		Preload("Role").
		Where("user_id = ? AND application_id = ?", strings.TrimSpace(userID), strings.TrimSpace(appID))
	if tenant := tenantPtr(tenantID); tenant != nil {
		query = query.Where("tenant_id = ? OR tenant_id IS NULL", *tenant)
	}

	var assignments []models.UserRole
	if err := query.Order("assigned_at ASC").Find(&assignments).Error; err != nil {
		return nil, wrap("list assignments", err)
	}
	return assignments, nil
}

// SyncRole reconciles the single membership role label supplied by the
// external membership system with this engine's assignments: inside one
// transaction it drops any prior system-role assignment for (user, tenant)
// and installs the assignment matching roleName, so the two systems can
// never diverge into two simultaneous membership roles.
func (s *Store) SyncRole(ctx context.Context, appID, userID, tenantID, roleName, assignedBy string) error {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apperrors.NewBadRequest("user id is required")
	}
	tenant := tenantPtr(tenantID)
	if tenant == nil {
		return apperrors.NewBadRequest("tenant id is required")
	}

	return s.Transaction(ctx, func(tx *Store) error {
		role, err := tx.GetRoleByName(ctx, appID, *tenant, roleName)
		if err != nil {
			return err
		}
		if !role.IsSystem {
			return apperrors.NewBadRequest("membership sync only applies to system roles")
		}

		// Drop the previous membership assignment, whichever system role it was.
		if err := tx.db.
			Where("user_id = ? AND application_id = ? AND tenant_id = ?", userID, role.ApplicationID, *tenant).
			Where("role_id IN (?)", tx.db.Model(&models.Role{}).Select("id").
				Where("application_id = ? AND is_system = ?", role.ApplicationID, true)).
			Delete(&models.UserRole{}).Error; err != nil {
			return fmt.Errorf("drop previous membership assignment: %w", err)
		}

		assignment := models.UserRole{
			UserID:        userID,
			RoleID:        role.ID,
			ApplicationID: role.ApplicationID,
			TenantID:      tenant,
			AssignedBy:    strings.TrimSpace(assignedBy),
			AssignedAt:    time.Now().UTC(),
		}
		if err := tx.db.Create(&assignment).Error; err != nil {
			return fmt.Errorf("create membership assignment: %w", err)
		}
		return nil
	})
}

package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/aegisauth/aegis/internal/models"
	apperrors "github.com/aegisauth/aegis/pkg/errors"
)

// CreateRoleInput describes the payload accepted by CreateRole.
type CreateRoleInput struct {
	ApplicationID string
	TenantID      string // empty for a global role
	Name          string
	Description   string
	IsSystem      bool
	CreatedBy     string
}

// CreateRole registers a new role scoped to an application and optional tenant.
func (s *Store) CreateRole(ctx context.Context, input CreateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	appID := strings.TrimSpace(input.ApplicationID)
	if appID == "" {
		return nil, apperrors.NewBadRequest("application id is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("role name is required")
	}
	if name == models.WildcardRole {
		return nil, apperrors.NewBadRequest("role name is reserved")
	}

	role := &models.Role{
		ApplicationID: appID,
		TenantID:      tenantPtr(input.TenantID),
		Name:          name,
		Description:   strings.TrimSpace(input.Description),
		IsSystem:      input.IsSystem,
		CreatedBy:     strings.TrimSpace(input.CreatedBy),
	}

	if role.TenantID == nil {
		// NULL tenant ids compare distinct in the unique index, so global
		// scope uniqueness has to be checked here.
		taken, err := s.globalNameTaken(ctx, appID, name)
		if err != nil {
			return nil, wrap("create role", err)
		}
		if taken {
			return nil, apperrors.NewConflict("role name already exists in this scope")
		}
	}

	if err := s.db.WithContext(ctx).Create(role).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("role name already exists in this scope")
		}
		return nil, wrap("create role", err)
	}

	return role, nil
}

func (s *Store) globalNameTaken(ctx context.Context, appID, name string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Role{}).
		Where("application_id = ? AND tenant_id IS NULL AND name = ?", appID, name).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetRole loads a role by identifier.
func (s *Store) GetRole(ctx context.Context, roleID string) (*models.Role, error) {
	ctx = ensureContext(ctx)

	var role models.Role
	if err := s.db.WithContext(ctx).First(&role, "id = ?", roleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, wrap("get role", err)
	}
	return &role, nil
}

// GetRoleByName resolves a role by name within (application, tenant); when no
// tenant-scoped role matches it falls back to a global role of the same name.
func (s *Store) GetRoleByName(ctx context.Context, appID, tenantID, name string) (*models.Role, error) {
	ctx = ensureContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequest("role name is required")
	}

	var role models.Role
	query := s.db.WithContext(ctx).Where("application_id = ? AND name = ?", strings.TrimSpace(appID), name)
	if tenant := tenantPtr(tenantID); tenant != nil {
		query = query.Where("tenant_id = ? OR tenant_id IS NULL", *tenant).
			Order("tenant_id IS NULL") // tenant-scoped role shadows the global one
	} else {
		query = query.Where("tenant_id IS NULL")
	}

	if err := query.First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, wrap("get role by name", err)
	}
	return &role, nil
}

// ListGlobalRoles returns roles visible in every tenant of the application.
func (s *Store) ListGlobalRoles(ctx context.Context, appID string) ([]models.Role, error) {
	ctx = ensureContext(ctx)

	var roles []models.Role
	if err := s.db.WithContext(ctx).
		Where("application_id = ? AND tenant_id IS NULL", strings.TrimSpace(appID)).
		Order("created_at ASC").
		Find(&roles).Error; err != nil {
		return nil, wrap("list global roles", err)
	}
	return roles, nil
}

// ListTenantRoles returns roles scoped to a single tenant.
func (s *Store) ListTenantRoles(ctx context.Context, appID, tenantID string) ([]models.Role, error) {
	ctx = ensureContext(ctx)

	tenant := tenantPtr(tenantID)
	if tenant == nil {
		return nil, apperrors.NewBadRequest("tenant id is required")
	}

	var roles []models.Role
	if err := s.db.WithContext(ctx).
		Where("application_id = ? AND tenant_id = ?", strings.TrimSpace(appID), *tenant).
		Order("created_at ASC").
		Find(&roles).Error; err != nil {
		return nil, wrap("list tenant roles", err)
	}
	return roles, nil
}

// UpdateRoleInput describes mutable fields on a role.
type UpdateRoleInput struct {
	Name        string
	Description *string
}

// UpdateRole modifies role metadata. System roles cannot be renamed.
func (s *Store) UpdateRole(ctx context.Context, roleID string, input UpdateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if name := strings.TrimSpace(input.Name); name != "" && name != role.Name {
		if role.IsSystem {
			return nil, ErrSystemRoleProtected
		}
		if role.TenantID == nil {
			taken, err := s.globalNameTaken(ctx, role.ApplicationID, name)
			if err != nil {
				return nil, wrap("update role", err)
			}
			if taken {
				return nil, apperrors.NewConflict("role name already exists in this scope")
			}
		}
		updates["name"] = name
	}
	if input.Description != nil {
		if desc := strings.TrimSpace(*input.Description); desc != role.Description {
			updates["description"] = desc
		}
	}

	if len(updates) == 0 {
		return role, nil
	}

	err = s.Transaction(ctx, func(tx *Store) error {
		if err := tx.db.Model(&models.Role{}).Where("id = ?", role.ID).Updates(updates).Error; err != nil {
			return err
		}
		// Tuples reference roles by name, so a rename must follow them.
		if newName, ok := updates["name"]; ok {
			rules := tx.db.Model(&models.PolicyRule{}).Where("role = ?", role.Name)
			if role.TenantID != nil {
				rules = rules.Where("domain = ?", *role.TenantID)
			} else {
				// A same-named tenant role owns the tuples in its own domain;
				// the global rename must not follow those.
				rules = rules.Where("domain NOT IN (?)", tx.shadowedDomains(role))
			}
			if err := rules.Update("role", newName).Error; err != nil {
				return fmt.Errorf("rename role tuples: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("role name already exists in this scope")
		}
		return nil, wrap("update role", err)
	}

	return s.GetRole(ctx, roleID)
}

// shadowedDomains selects the tenant ids that carry their own role with the
// same name as the global role. Tuples in those domains belong to the
// tenant-scoped role, not the global one.
func (s *Store) shadowedDomains(role *models.Role) *gorm.DB {
	return s.db.Model(&models.Role{}).
		Select("tenant_id").
		Where("application_id = ? AND name = ? AND tenant_id IS NOT NULL", role.ApplicationID, role.Name)
}

// DeleteRole removes a non-system role along with its permission tuples and
// user assignments.
func (s *Store) DeleteRole(ctx context.Context, roleID string) (*models.Role, error) {
	ctx = ensureContext(ctx)

	var deleted *models.Role
	err := s.Transaction(ctx, func(tx *Store) error {
		role, err := tx.GetRole(ctx, roleID)
		if err != nil {
			return err
		}
		if role.IsSystem {
			return ErrSystemRoleProtected
		}

		tuples := tx.db.Where("role = ?", role.Name)
		if role.TenantID != nil {
			// Tenant-scoped roles only own tuples in their own domain; a
			// same-named role in another tenant must be untouched.
			tuples = tuples.Where("domain = ?", *role.TenantID)
		} else {
			tuples = tuples.Where("domain NOT IN (?)", tx.shadowedDomains(role))
		}
		if err := tuples.Delete(&models.PolicyRule{}).Error; err != nil {
			return fmt.Errorf("delete role tuples: %w", err)
		}
		if err := tx.db.Where("role_id = ?", role.ID).Delete(&models.UserRole{}).Error; err != nil {
			return fmt.Errorf("delete role assignments: %w", err)
		}
		if err := tx.db.Delete(role).Error; err != nil {
			return fmt.Errorf("delete role: %w", err)
		}

		deleted = role
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) || errors.Is(err, ErrSystemRoleProtected) {
			return nil, err
		}
		return nil, wrap("delete role", err)
	}
	return deleted, nil
}

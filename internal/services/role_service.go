package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/aegisauth/aegis/internal/auditctx"
	"github.com/aegisauth/aegis/internal/authz"
	"github.com/aegisauth/aegis/internal/models"
	"github.com/aegisauth/aegis/internal/policy"
	apperrors "github.com/aegisauth/aegis/pkg/errors"
	"github.com/aegisauth/aegis/pkg/metrics"
)

// AuditTenantGlobal marks audit entries for mutations that are not scoped to
// a single tenant, such as global role assignments.
const AuditTenantGlobal = "*"

// RoleService orchestrates role lifecycle, permission attachment and user
// assignment on top of the policy store. It is the sole trigger of cache
// invalidation and audit writes for these mutations: invalidation happens
// before a mutation reports success, audit writes are best-effort after it.
type RoleService struct {
	store *policy.Store
	cache authz.Invalidator
	audit *AuditService
	appID string
	log   *zap.Logger
}

// NewRoleService constructs a RoleService with its collaborators injected.
func NewRoleService(store *policy.Store, cache authz.Invalidator, audit *AuditService, appID string, log *zap.Logger) (*RoleService, error) {
	if store == nil {
		return nil, errors.New("role service: policy store is required")
	}
	if cache == nil {
		return nil, errors.New("role service: cache invalidator is required")
	}
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return nil, errors.New("role service: application id is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RoleService{store: store, cache: cache, audit: audit, appID: appID, log: log}, nil
}

// CreateRoleInput describes the payload accepted by CreateRole.
type CreateRoleInput struct {
	TenantID    string
	Name        string
	Description string
	IsSystem    bool
}

// CreateRole registers a new role in the service's application scope.
func (s *RoleService) CreateRole(ctx context.Context, input CreateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	createdBy := ""
	if actor, ok := auditctx.FromContext(ctx); ok {
		createdBy = actor.ID
	}

	role, err := s.store.CreateRole(ctx, policy.CreateRoleInput{
		ApplicationID: s.appID,
		TenantID:      input.TenantID,
		Name:          input.Name,
		Description:   input.Description,
		IsSystem:      input.IsSystem,
		CreatedBy:     createdBy,
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, s.log, AuditEntry{
		EventType: EventRoleCreated,
		TenantID:  s.auditTenant(role.TenantID),
		Resource:  role.ID,
		Details:   map[string]any{"name": role.Name, "is_system": role.IsSystem},
	})
	return role, nil
}

// UpdateRole modifies role metadata. A rename is propagated to the role's
// permission tuples inside the store, so the whole scope is invalidated.
func (s *RoleService) UpdateRole(ctx context.Context, roleID string, input policy.UpdateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	role, err := s.store.UpdateRole(ctx, roleID, input)
	if err != nil {
		return nil, err
	}

	s.invalidateRoleScope(role)

	recordAudit(s.audit, ctx, s.log, AuditEntry{
		EventType: EventRoleUpdated,
		TenantID:  s.auditTenant(role.TenantID),
		Resource:  role.ID,
		Details:   map[string]any{"name": role.Name},
	})
	return role, nil
}

// DeleteRole removes a non-system role, its tuples and its assignments.
func (s *RoleService) DeleteRole(ctx context.Context, roleID string) error {
	ctx = ensureContext(ctx)

	role, err := s.store.DeleteRole(ctx, roleID)
	if err != nil {
		return err
	}

	s.invalidateRoleScope(role)

	recordAudit(s.audit, ctx, s.log, AuditEntry{
		EventType: EventRoleDeleted,
		TenantID:  s.auditTenant(role.TenantID),
		Resource:  role.ID,
		Details:   map[string]any{"name": role.Name},
	})
	return nil
}

// GetRole loads a role by identifier.
func (s *RoleService) GetRole(ctx context.Context, roleID string) (*models.Role, error) {
	return s.store.GetRole(ensureContext(ctx), roleID)
}

// ListGlobalRoles returns the application's cross-tenant roles.
func (s *RoleService) ListGlobalRoles(ctx context.Context) ([]models.Role, error) {
	return s.store.ListGlobalRoles(ensureContext(ctx), s.appID)
}

// ListTenantRoles returns roles scoped to one tenant.
func (s *RoleService) ListTenantRoles(ctx context.Context, tenantID string) ([]models.Role, error) {
	return s.store.ListTenantRoles(ensureContext(ctx), s.appID, tenantID)
}

// AddPolicyInput describes a permission tuple attachment.
type AddPolicyInput struct {
	Role      string
	TenantID  string
	Resource  string
	Action    string
	Effect    string
	Condition string
}

// AddPolicy attaches a permission tuple to a role. Duplicates are idempotent
// no-ops reported as false.
func (s *RoleService) AddPolicy(ctx context.Context, input AddPolicyInput) (bool, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(input.Role) == models.WildcardRole {
		// Wildcard tuples are reserved for the violation overlay path.
		return false, apperrors.NewBadRequest("wildcard role tuples are managed by the violation service")
	}

	added, err := s.store.AddPolicy(ctx, policy.Tuple{
		Role:      input.Role,
		Domain:    input.TenantID,
		Resource:  input.Resource,
		Action:    input.Action,
		Effect:    input.Effect,
		Condition: input.Condition,
	})
	if err != nil || !added {
		return added, err
	}

	// Membership of the role is not cheaply enumerable, so the whole tenant
	// is invalidated before the caller sees success.
	s.cache.InvalidateTenant(input.TenantID)
	metrics.PolicyMutations.WithLabelValues("policy_add").Inc()

	recordAudit(s.audit, ctx, s.log, AuditEntry{
		EventType: EventPolicyAdded,
		TenantID:  strings.TrimSpace(input.TenantID),
		Resource:  strings.TrimSpace(input.Resource),
		Action:    strings.TrimSpace(input.Action),
		Effect:    strings.TrimSpace(input.Effect),
		Details:   map[string]any{"role": strings.TrimSpace(input.Role), "condition": input.Condition},
	})
	return true, nil
}

// RemovePolicy detaches a permission tuple from a role.
func (s *RoleService) RemovePolicy(ctx context.Context, input AddPolicyInput) (bool, error) {
	ctx = ensureContext(ctx)

	removed, err := s.store.RemovePolicy(ctx, policy.Tuple{
		Role:      input.Role,
		Domain:    input.TenantID,
		Resource:  input.Resource,
		Action:    input.Action,
		Effect:    input.Effect,
		Condition: input.Condition,
	})
	if err != nil || !removed {
		return removed, err
	}

	s.cache.InvalidateTenant(input.TenantID)
	metrics.PolicyMutations.WithLabelValues("policy_remove").Inc()

	recordAudit(s.audit, ctx, s.log, AuditEntry{
		EventType: EventPolicyRemoved,
		TenantID:  strings.TrimSpace(input.TenantID),
		Resource:  strings.TrimSpace(input.Resource),
		Action:    strings.TrimSpace(input.Action),
		Effect:    strings.TrimSpace(input.Effect),
		Details:   map[string]any{"role": strings.TrimSpace(input.Role)},
	})
	return true, nil
}

// AssignRoleInput describes a user/role assignment request.
type AssignRoleInput struct {
	UserID   string
	RoleID   string
	TenantID string // empty assigns the role across all tenants
}

// AssignRole links a user to a role and invalidates the affected cache scope
// before reporting success.
func (s *RoleService) AssignRole(ctx context.Context, input AssignRoleInput) (bool, error) {
	ctx = ensureContext(ctx)

	assignedBy := ""
	if actor, ok := auditctx.FromContext(ctx); ok {
		assignedBy = actor.ID
	}

	assigned, err := s.store.AssignRole(ctx, policy.AssignRoleInput{
		UserID:        input.UserID,
		RoleID:        input.RoleID,
		ApplicationID: s.appID,
		TenantID:      input.TenantID,
		AssignedBy:    assignedBy,
	})
	if err != nil || !assigned {
		return assigned, err
	}

	s.invalidateAssignment(input.UserID, input.TenantID)
	metrics.PolicyMutations.WithLabelValues("role_assign").Inc()

	recordAudit(s.audit, ctx, s.log, AuditEntry{
		EventType: EventRoleAssigned,
		TenantID:  s.auditTenantString(input.TenantID),
		Resource:  strings.TrimSpace(input.RoleID),
		Details:   map[string]any{"user_id": strings.TrimSpace(input.UserID)},
	})
	return true, nil
}

// RemoveRole deletes a user/role assignment.
func (s *RoleService) RemoveRole(ctx context.Context, input AssignRoleInput) (bool, error) {
	ctx = ensureContext(ctx)

	removed, err := s.store.RemoveRole(ctx, input.UserID, input.RoleID, input.TenantID)
	if err != nil || !removed {
		return removed, err
	}

	s.invalidateAssignment(input.UserID, input.TenantID)
	metrics.PolicyMutations.WithLabelValues("role_remove").Inc()

	recordAudit(s.audit, ctx, s.log, AuditEntry{
		EventType: EventRoleRemoved,
		TenantID:  s.auditTenantString(input.TenantID),
		Resource:  strings.TrimSpace(input.RoleID),
		Details:   map[string]any{"user_id": strings.TrimSpace(input.UserID)},
	})
	return true, nil
}

// SyncRole reconciles the membership system's single role label with this
// engine's assignments for (user, tenant).
func (s *RoleService) SyncRole(ctx context.Context, userID, tenantID, roleLabel string) error {
	ctx = ensureContext(ctx)

	assignedBy := "membership-sync"
	if actor, ok := auditctx.FromContext(ctx); ok && actor.ID != "" {
		assignedBy = actor.ID
	}

	if err := s.store.SyncRole(ctx, s.appID, userID, tenantID, roleLabel, assignedBy); err != nil {
		return err
	}

	s.cache.InvalidateUser(strings.TrimSpace(userID), strings.TrimSpace(tenantID))
	metrics.PolicyMutations.WithLabelValues("role_sync").Inc()

	recordAudit(s.audit, ctx, s.log, AuditEntry{
		EventType: EventRoleSynced,
		TenantID:  strings.TrimSpace(tenantID),
		Details:   map[string]any{"user_id": strings.TrimSpace(userID), "role": strings.TrimSpace(roleLabel)},
	})
	return nil
}

// ListPolicies returns the permission tuples attached to roles in a tenant.
func (s *RoleService) ListPolicies(ctx context.Context, tenantID string, filter policy.PolicyFilter) ([]models.PolicyRule, error) {
	return s.store.GetFilteredPolicies(ensureContext(ctx), tenantID, filter)
}

// ListAssignments returns a user's assignments in a tenant, including global ones.
func (s *RoleService) ListAssignments(ctx context.Context, userID, tenantID string) ([]models.UserRole, error) {
	return s.store.ListAssignments(ensureContext(ctx), s.appID, userID, tenantID)
}

func (s *RoleService) invalidateRoleScope(role *models.Role) {
	if role == nil {
		return
	}
	if role.TenantID != nil {
		s.cache.InvalidateTenant(*role.TenantID)
		return
	}
	// Global roles can be assigned in any tenant.
	s.cache.InvalidateAll()
}

func (s *RoleService) invalidateAssignment(userID, tenantID string) {
	userID = strings.TrimSpace(userID)
	if tenant := strings.TrimSpace(tenantID); tenant != "" {
		s.cache.InvalidateUser(userID, tenant)
		return
	}
	// Global assignments affect the user's entry in every tenant.
	s.cache.InvalidateAll()
}

func (s *RoleService) auditTenant(tenantID *string) string {
	if tenantID == nil || *tenantID == "" {
		return AuditTenantGlobal
	}
	return *tenantID
}

func (s *RoleService) auditTenantString(tenantID string) string {
	if tenantID = strings.TrimSpace(tenantID); tenantID == "" {
		return AuditTenantGlobal
	}
	return tenantID
}

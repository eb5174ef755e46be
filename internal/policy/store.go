package policy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/aegisauth/aegis/internal/models"
	apperrors "github.com/aegisauth/aegis/pkg/errors"
)

var (
	// ErrRoleNotFound indicates the requested role does not exist.
	ErrRoleNotFound = apperrors.New("ROLE_NOT_FOUND", "Role not found", http.StatusNotFound)
	// ErrSystemRoleProtected prevents destructive operations on system roles.
	ErrSystemRoleProtected = apperrors.New("ROLE_IMMUTABLE", "System roles cannot be modified", http.StatusBadRequest)
	// ErrAssignmentNotFound indicates the user/role assignment does not exist.
	ErrAssignmentNotFound = apperrors.New("ASSIGNMENT_NOT_FOUND", "Role assignment not found", http.StatusNotFound)
)

// Store is the sole persistence gateway for roles, permission tuples and
// user-role assignments. Every query it issues is scoped by tenant domain.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a policy store backed by the provided database.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("policy store: db is required")
	}
	return &Store{db: db}, nil
}

func validEffect(effect string) bool {
	return effect == models.EffectAllow || effect == models.EffectDeny
}

func validCondition(condition string) bool {
	switch condition {
	case models.ConditionNone, models.ConditionOwner, models.ConditionShared:
		return true
	}
	return false
}

func tenantPtr(tenantID string) *string {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil
	}
	return &tenantID
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// Transaction runs fn inside a database transaction using a store bound to it.
// Services use this to make multi-step mutations atomic.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	ctx = ensureContext(ctx)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func wrap(op string, err error) error {
	return fmt.Errorf("policy store: %s: %w", op, err)
}

package policy

import (
	"context"
	"strings"

	"github.com/aegisauth/aegis/internal/models"
	apperrors "github.com/aegisauth/aegis/pkg/errors"
)

// Tuple identifies a single permission rule.
type Tuple struct {
	Role      string
	Domain    string
	Resource  string
	Action    string
	Effect    string
	Condition string
}

func (t *Tuple) normalise() {
	t.Role = strings.TrimSpace(t.Role)
	t.Domain = strings.TrimSpace(t.Domain)
	t.Resource = strings.TrimSpace(t.Resource)
	t.Action = strings.TrimSpace(t.Action)
	t.Effect = strings.TrimSpace(t.Effect)
	t.Condition = strings.TrimSpace(t.Condition)
	if t.Condition == "" {
		t.Condition = models.ConditionNone
	}
}

func (t *Tuple) validate() error {
	switch {
	case t.Role == "":
		return apperrors.NewBadRequest("role is required")
	case t.Domain == "":
		return apperrors.NewBadRequest("tenant domain is required")
	case t.Resource == "":
		return apperrors.NewBadRequest("resource is required")
	case t.Action == "":
		return apperrors.NewBadRequest("action is required")
	case !validEffect(t.Effect):
		return apperrors.NewBadRequest("effect must be allow or deny")
	case !validCondition(t.Condition):
		return apperrors.NewBadRequest("condition must be none, owner or shared")
	}
	return nil
}

// AddPolicy inserts a permission tuple. Adding a tuple that already exists is
// an idempotent no-op reported as false.
func (s *Store) AddPolicy(ctx context.Context, tuple Tuple) (bool, error) {
	ctx = ensureContext(ctx)

	tuple.normalise()
	if err := tuple.validate(); err != nil {
		return false, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.PolicyRule{}).
		Where("role = ? AND domain = ? AND resource = ? AND action = ? AND effect = ?",
			tuple.Role, tuple.Domain, tuple.Resource, tuple.Action, tuple.Effect).
		Count(&count).Error; err != nil {
		return false, wrap("check tuple", err)
	}
	if count > 0 {
		return false, nil
	}

	rule := models.PolicyRule{
		Role:      tuple.Role,
		Domain:    tuple.Domain,
		Resource:  tuple.Resource,
		Action:    tuple.Action,
		Effect:    tuple.Effect,
		Condition: tuple.Condition,
	}
	if err := s.db.WithContext(ctx).Create(&rule).Error; err != nil {
		if isUniqueConstraintError(err) {
			// Lost a race with a concurrent identical add; still a no-op.
			return false, nil
		}
		return false, wrap("add tuple", err)
	}
	return true, nil
}

// RemovePolicy deletes a permission tuple, reporting whether one existed.
func (s *Store) RemovePolicy(ctx context.Context, tuple Tuple) (bool, error) {
	ctx = ensureContext(ctx)

	tuple.normalise()
	if err := tuple.validate(); err != nil {
		return false, err
	}

	result := s.db.WithContext(ctx).
		Where("role = ? AND domain = ? AND resource = ? AND action = ? AND effect = ?",
			tuple.Role, tuple.Domain, tuple.Resource, tuple.Action, tuple.Effect).
		Delete(&models.PolicyRule{})
	if result.Error != nil {
		return false, wrap("remove tuple", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// PolicyFilter narrows GetFilteredPolicies results. Zero values match everything.
type PolicyFilter struct {
	Role     string
	Resource string
	Action   string
	Effect   string
}

// GetFilteredPolicies returns tuples in a tenant domain matching the filter.
func (s *Store) GetFilteredPolicies(ctx context.Context, domain string, filter PolicyFilter) ([]models.PolicyRule, error) {
	ctx = ensureContext(ctx)

	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, apperrors.NewBadRequest("tenant domain is required")
	}

	query := s.db.WithContext(ctx).Where("domain = ?", domain)
	if role := strings.TrimSpace(filter.Role); role != "" {
		query = query.Where("role = ?", role)
	}
	if resource := strings.TrimSpace(filter.Resource); resource != "" {
		query = query.Where("resource = ?", resource)
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		query = query.Where("action = ?", action)
	}
	if effect := strings.TrimSpace(filter.Effect); effect != "" {
		query = query.Where("effect = ?", effect)
	}

	var rules []models.PolicyRule
	if err := query.Order("created_at ASC").Find(&rules).Error; err != nil {
		return nil, wrap("filter tuples", err)
	}
	return rules, nil
}

// GetPoliciesForRoles returns the tuples in a domain whose role is in the
// supplied set or is the wildcard overlay role. The decision engine is the
// only caller.
func (s *Store) GetPoliciesForRoles(ctx context.Context, domain string, roles []string) ([]models.PolicyRule, error) {
	ctx = ensureContext(ctx)

	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, apperrors.NewBadRequest("tenant domain is required")
	}

	names := make([]string, 0, len(roles)+1)
	for _, role := range roles {
		if role = strings.TrimSpace(role); role != "" {
			names = append(names, role)
		}
	}
	names = append(names, models.WildcardRole)

	var rules []models.PolicyRule
	if err := s.db.WithContext(ctx).
		Where("domain = ? AND role IN ?", domain, names).
		Find(&rules).Error; err != nil {
		return nil, wrap("load tuples for roles", err)
	}
	return rules, nil
}

package authz

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/aegisauth/aegis/internal/models"
	"github.com/aegisauth/aegis/internal/policy"
	"github.com/aegisauth/aegis/pkg/logger"
	"github.com/aegisauth/aegis/pkg/metrics"
)

// Sentinel tuple recorded by an organization lockdown. The sentinel is a
// flag, not an automatic all-resource deny: callers that want lockdown
// enforcement must check it explicitly alongside their own resource/action.
const (
	LockdownResource = "organization"
	LockdownAction   = "lockdown"
)

// Request carries one authorization question.
type Request struct {
	UserID          string
	TenantID        string
	Resource        string
	Action          string
	ResourceOwnerID string
}

// Enforcer is the decision engine. It resolves a user's effective roles in a
// tenant, evaluates the matching permission tuples with deny-overrides
// precedence, and fails closed on missing rules and on store errors.
type Enforcer struct {
	store *policy.Store
	cache *Cache
	appID string
	log   *zap.Logger
}

// NewEnforcer constructs the decision engine with its collaborators injected.
func NewEnforcer(store *policy.Store, cache *Cache, appID string, log *zap.Logger) (*Enforcer, error) {
	if store == nil {
		return nil, errors.New("authz: policy store is required")
	}
	if cache == nil {
		return nil, errNilCache
	}
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return nil, errors.New("authz: application id is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Enforcer{store: store, cache: cache, appID: appID, log: log}, nil
}

// Cache exposes the invalidation contract for mutation paths.
func (e *Enforcer) Cache() Invalidator {
	return e.cache
}

// Authorize answers allow (true) or deny (false) for the request. A deny is
// a normal outcome, not an error; any error reading policy state also denies.
func (e *Enforcer) Authorize(ctx context.Context, req Request) (bool, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.TenantID = strings.TrimSpace(req.TenantID)
	req.Resource = strings.TrimSpace(req.Resource)
	req.Action = strings.TrimSpace(req.Action)

	if req.UserID == "" || req.TenantID == "" || req.Resource == "" || req.Action == "" {
		metrics.AuthzDecisions.WithLabelValues(req.Resource, "deny").Inc()
		return false, nil
	}

	roles, err := e.resolveRoles(ctx, req.UserID, req.TenantID)
	if err != nil {
		metrics.AuthzDecisions.WithLabelValues(req.Resource, "error").Inc()
		return false, err
	}

	rules, err := e.store.GetPoliciesForRoles(ctx, req.TenantID, roles)
	if err != nil {
		metrics.AuthzDecisions.WithLabelValues(req.Resource, "error").Inc()
		return false, err
	}

	allowed := false
	for i := range rules {
		rule := &rules[i]
		if rule.Resource != req.Resource || rule.Action != req.Action {
			continue
		}
		if !conditionSatisfied(rule.Condition, req.UserID, req.ResourceOwnerID) {
			continue
		}
		if rule.Effect == models.EffectDeny {
			// Deny always wins, regardless of tuple order or allow count.
			e.log.Debug("deny tuple matched",
				logger.Tenant(req.TenantID),
				logger.Subject(req.UserID),
				zap.String("resource", req.Resource),
				zap.String("action", req.Action),
				zap.String("role", rule.Role),
			)
			metrics.AuthzDecisions.WithLabelValues(req.Resource, "deny").Inc()
			return false, nil
		}
		if rule.Effect == models.EffectAllow {
			allowed = true
		}
	}

	result := "deny"
	if allowed {
		result = "allow"
	}
	metrics.AuthzDecisions.WithLabelValues(req.Resource, result).Inc()
	return allowed, nil
}

// IsTenantLockedDown reports whether the lockdown sentinel tuple is present
// for the tenant.
func (e *Enforcer) IsTenantLockedDown(ctx context.Context, tenantID string) (bool, error) {
	rules, err := e.store.GetFilteredPolicies(ctx, tenantID, policy.PolicyFilter{
		Role:     models.WildcardRole,
		Resource: LockdownResource,
		Action:   LockdownAction,
		Effect:   models.EffectDeny,
	})
	if err != nil {
		return false, err
	}
	return len(rules) > 0, nil
}

// EffectivePermission is one entry of a "what can I do" listing.
type EffectivePermission struct {
	Resource  string `json:"resource"`
	Action    string `json:"action"`
	Effect    string `json:"effect"`
	Condition string `json:"condition"`
}

// EffectivePermissions merges the tuples of all the user's roles in a tenant
// into a display listing. Deny tuples are pinned; among allows an
// unconditioned tuple beats a conditioned one, since ownership cannot be
// evaluated generically here. This is a display heuristic only and must never
// gate an actual request.
func (e *Enforcer) EffectivePermissions(ctx context.Context, userID, tenantID string) ([]EffectivePermission, error) {
	userID = strings.TrimSpace(userID)
	tenantID = strings.TrimSpace(tenantID)

	roles, err := e.resolveRoles(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}

	rules, err := e.store.GetPoliciesForRoles(ctx, tenantID, roles)
	if err != nil {
		return nil, err
	}

	type key struct{ resource, action string }
	merged := make(map[key]EffectivePermission, len(rules))
	for i := range rules {
		rule := &rules[i]
		k := key{rule.Resource, rule.Action}
		current, seen := merged[k]

		switch {
		case seen && current.Effect == models.EffectDeny:
			// Pinned.
			continue
		case rule.Effect == models.EffectDeny:
			merged[k] = EffectivePermission{rule.Resource, rule.Action, rule.Effect, rule.Condition}
		case !seen:
			merged[k] = EffectivePermission{rule.Resource, rule.Action, rule.Effect, rule.Condition}
		case current.Condition != models.ConditionNone && rule.Condition == models.ConditionNone:
			merged[k] = EffectivePermission{rule.Resource, rule.Action, rule.Effect, rule.Condition}
		}
	}

	out := make([]EffectivePermission, 0, len(merged))
	for _, perm := range merged {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out, nil
}

func (e *Enforcer) resolveRoles(ctx context.Context, userID, tenantID string) ([]string, error) {
	if roles, ok := e.cache.GetRoles(userID, tenantID); ok {
		return roles, nil
	}

	version := e.cache.Snapshot(userID, tenantID)
	roles, err := e.store.GetRolesForUserInDomain(ctx, e.appID, userID, tenantID)
	if err != nil {
		return nil, err
	}
	e.cache.StoreRoles(userID, tenantID, roles, version)
	return roles, nil
}

// conditionSatisfied evaluates a tuple condition against the live request.
// The shared condition is reserved for future group ownership semantics and
// is never satisfied.
func conditionSatisfied(condition, userID, ownerID string) bool {
	switch condition {
	case models.ConditionNone, "":
		return true
	case models.ConditionOwner:
		return ownerID != "" && ownerID == userID
	default:
		return false
	}
}

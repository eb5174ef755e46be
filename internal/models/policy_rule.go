package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Permission effects.
const (
	EffectAllow = "allow"
	EffectDeny  = "deny"
)

// Permission conditions. ConditionShared is reserved for group ownership
// semantics and is never satisfied at decision time.
const (
	ConditionNone   = "none"
	ConditionOwner  = "owner"
	ConditionShared = "shared"
)

// WildcardRole matches every role assigned in a tenant. It is reserved for
// violation overlays written by the violation service.
const WildcardRole = "*"

// PolicyRule is a single authorization tuple: role X may (or may not)
// perform Action on Resource within the tenant Domain, subject to Condition.
// The composite unique index makes duplicate adds detectable so they can be
// treated as idempotent no-ops.
type PolicyRule struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Role      string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_policy_rules_tuple,priority:1" json:"role"`
	Domain    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_policy_rules_tuple,priority:2;index" json:"domain"`
	Resource  string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_policy_rules_tuple,priority:3" json:"resource"`
	Action    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_policy_rules_tuple,priority:4" json:"action"`
	Effect    string    `gorm:"type:varchar(8);not null;uniqueIndex:idx_policy_rules_tuple,priority:5" json:"effect"`
	Condition string    `gorm:"type:varchar(16);not null;default:none" json:"condition"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (p *PolicyRule) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// TableName overrides the default table name for GORM.
func (PolicyRule) TableName() string {
	return "policy_rules"
}

package models

import "time"

// ViolationExpiry tracks the expiry of a temporary permission suspension so
// the sweeper can restore it without replaying audit history. Severity and
// reason intentionally live only in the audit trail.
type ViolationExpiry struct {
	BaseModel

	TenantID  string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_violation_expiries_key,priority:1" json:"tenant_id"`
	Resource  string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_violation_expiries_key,priority:2" json:"resource"`
	Action    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_violation_expiries_key,priority:3" json:"action"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
}

// TableName overrides the default table name for GORM.
func (ViolationExpiry) TableName() string {
	return "violation_expiries"
}

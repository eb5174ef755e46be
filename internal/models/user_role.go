package models

import "time"

// UserRole links a user to a role within an application and, optionally, a
// tenant. A nil TenantID applies the role in every tenant.
type UserRole struct {
	BaseModel

	UserID        string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_user_roles_assignment,priority:1;index" json:"user_id"`
	RoleID        string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_roles_assignment,priority:2" json:"role_id"`
	ApplicationID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_user_roles_assignment,priority:3" json:"application_id"`
	TenantID      *string   `gorm:"type:varchar(64);uniqueIndex:idx_user_roles_assignment,priority:4;index" json:"tenant_id"`
	AssignedBy    string    `gorm:"type:varchar(64)" json:"assigned_by"`
	AssignedAt    time.Time `json:"assigned_at"`

	Role *Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

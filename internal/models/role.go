package models

// Role is a named bundle of permissions scoped to an application and,
// optionally, a single tenant. A nil TenantID denotes a global role that is
// visible in every tenant of the application.
type Role struct {
	BaseModel

	ApplicationID string  `gorm:"type:varchar(64);not null;uniqueIndex:idx_roles_scope_name,priority:1" json:"application_id"`
	TenantID      *string `gorm:"type:varchar(64);uniqueIndex:idx_roles_scope_name,priority:2" json:"tenant_id"`
	Name          string  `gorm:"type:varchar(128);not null;uniqueIndex:idx_roles_scope_name,priority:3" json:"name"`
	Description   string  `json:"description"`
	IsSystem      bool    `gorm:"default:false" json:"is_system"`
	CreatedBy     string  `gorm:"type:varchar(64)" json:"created_by"`
}

// IsGlobal reports whether the role applies across all tenants.
func (r *Role) IsGlobal() bool {
	return r.TenantID == nil || *r.TenantID == ""
}

package database

import (
	"gorm.io/gorm"

	"github.com/aegisauth/aegis/internal/models"
)

// DefaultApplicationID scopes seeded roles when no application is configured.
const DefaultApplicationID = "default"

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Role{},
		&models.PolicyRule{},
		&models.UserRole{},
		&models.ViolationExpiry{},
		&models.AuditLog{},
	)
}

// SeedData populates the global system roles every application starts with.
func SeedData(db *gorm.DB) error {
	roles := []models.Role{
		{
			BaseModel:     models.BaseModel{ID: "role-owner"},
			ApplicationID: DefaultApplicationID,
			Name:          "owner",
			Description:   "Organization owner with full control",
			IsSystem:      true,
			CreatedBy:     "system",
		},
		{
			BaseModel:     models.BaseModel{ID: "role-admin"},
			ApplicationID: DefaultApplicationID,
			Name:          "admin",
			Description:   "Administrator with management access",
			IsSystem:      true,
			CreatedBy:     "system",
		},
		{
			BaseModel:     models.BaseModel{ID: "role-member"},
			ApplicationID: DefaultApplicationID,
			Name:          "member",
			Description:   "Standard member access",
			IsSystem:      true,
			CreatedBy:     "system",
		},
		{
			BaseModel:     models.BaseModel{ID: "role-viewer"},
			ApplicationID: DefaultApplicationID,
			Name:          "viewer",
			Description:   "Read-only access",
			IsSystem:      true,
			CreatedBy:     "system",
		},
	}

	for _, role := range roles {
		if err := db.Where(models.Role{BaseModel: models.BaseModel{ID: role.ID}}).
			Attrs(role).
			FirstOrCreate(&models.Role{}).Error; err != nil {
			return err
		}
	}

	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actor types recorded on audit entries.
const (
	ActorTypeUser   = "user"
	ActorTypeSystem = "system"
)

// AuditLog records one policy-affecting mutation or decision. Entries are
// append-only: nothing in the engine updates or deletes them except the
// retention cleanup.
type AuditLog struct {
	ID        string         `gorm:"primaryKey;type:uuid" json:"id"`
	EventType string         `gorm:"type:varchar(64);not null;index" json:"event_type"`
	TenantID  string         `gorm:"type:varchar(64);not null;index" json:"tenant_id"`
	ActorType string         `gorm:"type:varchar(16);not null;default:user" json:"actor_type"`
	ActorID   string         `gorm:"type:varchar(64);index" json:"actor_id"`
	IPAddress string         `json:"ip_address"`
	UserAgent string         `json:"user_agent"`
	Resource  string         `gorm:"type:varchar(128);index" json:"resource"`
	Action    string         `gorm:"type:varchar(64)" json:"action"`
	Effect    string         `gorm:"type:varchar(8)" json:"effect"`
	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

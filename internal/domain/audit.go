package domain

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog is an append-only record of a caregiver action. EntityID is kept
// as plain text (no FK) so entries survive deletion of the entity.
type AuditLog struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	At         time.Time      `json:"at"          gorm:"not null;index"`
	Action     string         `json:"action"      gorm:"type:varchar(64);not null"`
	EntityType string         `json:"entity_type" gorm:"type:varchar(32);not null"`
	EntityID   string         `json:"entity_id,omitempty" gorm:"type:char(36)"`
	ActorRole  string         `json:"actor_role,omitempty" gorm:"type:varchar(32)"`
	Meta       datatypes.JSON `json:"meta,omitempty"`
}

// TableName returns the database table name for AuditLog.
func (AuditLog) TableName() string { return "audit_log" }

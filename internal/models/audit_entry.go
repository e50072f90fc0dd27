package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEntry is an append-only record of a single authorization-model mutation.
type AuditEntry struct {
	ID           string            `gorm:"primaryKey;type:uuid" json:"id"`
	Action       string            `gorm:"type:varchar(64);not null;index" json:"action"`
	EntityType   string            `gorm:"type:varchar(32);not null;index" json:"entity_type"`
	EntityID     string            `gorm:"type:varchar(128);index" json:"entity_id"`
	ActorUserID  string            `gorm:"type:varchar(128);index" json:"actor_user_id"`
	TargetUserID string            `gorm:"type:varchar(128);index" json:"target_user_id,omitempty"`
	TargetRoleID string            `gorm:"type:varchar(128)" json:"target_role_id,omitempty"`
	PermissionID string            `gorm:"type:varchar(128)" json:"permission_id,omitempty"`
	Details      datatypes.JSONMap `json:"details,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	IPAddress    string            `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	Timestamp    time.Time         `gorm:"not null;index" json:"timestamp"`
}

func (a *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	return nil
}

// BeforeUpdate rejects in-place modification of audit records.
func (a *AuditEntry) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

// BeforeDelete rejects removal of audit records.
func (a *AuditEntry) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditImmutable
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoleAssignment records that a user holds a role.
type RoleAssignment struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_user_role,priority:1" json:"user_id"`
	RoleID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_role,priority:2;index" json:"role_id"`
	AssignedAt time.Time `gorm:"not null" json:"assigned_at"`
	AssignedBy string    `gorm:"type:varchar(128)" json:"assigned_by"`

	Role *Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

func (a *RoleAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

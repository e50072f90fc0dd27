package models

import "time"

// RolePermission links a role to a directly granted permission.
type RolePermission struct {
	RoleID       string    `gorm:"primaryKey;type:uuid" json:"role_id"`
	PermissionID string    `gorm:"primaryKey;type:uuid;index" json:"permission_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName overrides the default table name for GORM.
func (RolePermission) TableName() string {
	return "role_permissions"
}

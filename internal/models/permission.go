package models

import "gorm.io/gorm"

// Permission is a catalog entry identified by its (resource_type, action, scope) triple.
// Name is the canonical RESOURCE.ACTION.SCOPE rendering of the same triple.
type Permission struct {
	BaseModel

	ResourceType string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_permission_triple,priority:1" json:"resource_type"`
	Action       string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_permission_triple,priority:2" json:"action"`
	Scope        string         `gorm:"type:varchar(16);not null;uniqueIndex:idx_permission_triple,priority:3" json:"scope"`
	Name         string         `gorm:"type:varchar(160);not null;uniqueIndex" json:"name"`
	Description  string         `json:"description"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

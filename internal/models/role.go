package models

import "gorm.io/datatypes"

// Role groups permissions and may inherit from a single parent role.
type Role struct {
	BaseModel

	Name                 string                      `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	DisplayName          string                      `json:"display_name"`
	Description          string                      `json:"description"`
	Level                int                         `gorm:"not null" json:"level"`
	ParentRoleID         *string                     `gorm:"type:uuid;index" json:"parent_role_id"`
	IsSystemRole         bool                        `gorm:"not null;index" json:"is_system_role"`
	IsSynthetic          bool                        `gorm:"not null" json:"is_synthetic"`
	// OwnerUserID is the exact user id a synthetic role belongs to.
	OwnerUserID          *string                     `gorm:"type:varchar(128);index" json:"owner_user_id,omitempty"`
	DepartmentRestricted bool                        `gorm:"not null" json:"department_restricted"`
	BranchRestricted     bool                        `gorm:"not null" json:"branch_restricted"`
	AllowedDepartments   datatypes.JSONSlice[string] `json:"allowed_departments"`
	AllowedBranches      datatypes.JSONSlice[string] `json:"allowed_branches"`
	IsActive             bool                        `gorm:"not null;index" json:"is_active"`
}

package models

import "sort"

// Template types.
const (
	TemplateTypeRole   = "role"
	TemplateTypeCustom = "custom"
)

// PermissionTemplate is a named, reusable bundle of permissions.
type PermissionTemplate struct {
	BaseModel

	Name             string `gorm:"type:varchar(120);uniqueIndex;not null" json:"name"`
	Description      string `json:"description"`
	TemplateType     string `gorm:"type:varchar(16);not null" json:"template_type"`
	IsSystemTemplate bool   `gorm:"not null" json:"is_system_template"`
	IsActive         bool   `gorm:"not null" json:"is_active"`
	UsageCount       int    `gorm:"not null" json:"usage_count"`
	CreatedBy        string `gorm:"type:varchar(128)" json:"created_by"`

	Permissions []TemplatePermission `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"-"`
}

// TemplatePermission keeps the ordered membership of a template.
type TemplatePermission struct {
	TemplateID   string `gorm:"primaryKey;type:uuid"`
	PermissionID string `gorm:"primaryKey;type:uuid;index"`
	Position     int    `gorm:"not null"`
}

// PermissionIDs returns the template's permission identifiers in insertion order.
func (t *PermissionTemplate) PermissionIDs() []string {
	if t == nil || len(t.Permissions) == 0 {
		return []string{}
	}
	entries := append([]TemplatePermission(nil), t.Permissions...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Position < entries[j].Position
	})
	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.PermissionID
	}
	return ids
}

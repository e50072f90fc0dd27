package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeeper/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Permission{},
		&models.Role{},
		&models.RolePermission{},
		&models.RoleAssignment{},
		&models.PermissionTemplate{},
		&models.TemplatePermission{},
		&models.AuditEntry{},
	)
}

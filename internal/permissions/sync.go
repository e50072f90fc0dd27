package permissions

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/gatekeeper/internal/models"
	"github.com/charlesng35/gatekeeper/pkg/logger"
)

// SystemActor is recorded as the actor of start-up seeding.
const SystemActor = "system"

// SyncReport summarises what Sync wrote.
type SyncReport struct {
	PermissionsCreated  int `json:"permissions_created"`
	PermissionsUpdated  int `json:"permissions_updated"`
	PermissionsRestored int `json:"permissions_restored"`
	RolesCreated        int `json:"roles_created"`
	GrantsCreated       int `json:"grants_created"`
	TemplatesCreated    int `json:"templates_created"`
}

// Changed reports whether Sync wrote anything.
func (r SyncReport) Changed() bool {
	return r != SyncReport{}
}

// Sync persists registered definitions, seed roles and seed templates. It
// matches database.Seeder so it can run right after migrations.
func Sync(ctx context.Context, db *gorm.DB) error {
	report, err := SyncWithReport(ctx, db)
	if err != nil {
		return err
	}
	if report.Changed() {
		logger.WithModule("permissions").Info("authorization model seeded",
			zap.Int("permissions_created", report.PermissionsCreated),
			zap.Int("permissions_updated", report.PermissionsUpdated),
			zap.Int("permissions_restored", report.PermissionsRestored),
			zap.Int("roles_created", report.RolesCreated),
			zap.Int("templates_created", report.TemplatesCreated),
		)
	}
	return nil
}

// SyncWithReport is Sync returning the summary of changes. Existing seed roles
// and templates are left untouched so administrator edits survive restarts.
func SyncWithReport(ctx context.Context, db *gorm.DB) (SyncReport, error) {
	var report SyncReport
	if db == nil {
		return report, errors.New("permission: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report = SyncReport{}
		catalog := &Catalog{db: tx}

		ids := make(map[Name]string)
		for _, def := range Definitions() {
			perm, outcome, err := catalog.Define(ctx, def)
			if err != nil {
				return fmt.Errorf("permission: sync %s: %w", def.Name, err)
			}
			ids[def.Name] = perm.ID
			switch outcome {
			case OutcomeCreated:
				report.PermissionsCreated++
			case OutcomeUpdated:
				report.PermissionsUpdated++
			case OutcomeRestored:
				report.PermissionsRestored++
			}
		}

		roleIDs := make(map[string]string)
		for _, bp := range RoleBlueprints() {
			created, role, err := seedRole(tx, bp, roleIDs)
			if err != nil {
				return err
			}
			roleIDs[bp.Name] = role.ID
			if !created {
				continue
			}
			report.RolesCreated++

			grants := make([]models.RolePermission, 0, len(bp.Permissions))
			for _, name := range bp.Permissions {
				grants = append(grants, models.RolePermission{RoleID: role.ID, PermissionID: ids[name]})
			}
			if len(grants) > 0 {
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&grants).Error; err != nil {
					return fmt.Errorf("permission: seed grants for %s: %w", bp.Name, err)
				}
				report.GrantsCreated += len(grants)
			}
		}

		for _, bp := range TemplateBlueprints() {
			created, err := seedTemplate(tx, bp, ids)
			if err != nil {
				return err
			}
			if created {
				report.TemplatesCreated++
			}
		}

		if !report.Changed() {
			return nil
		}
		entry := models.AuditEntry{
			Action:      "system.seed",
			EntityType:  "system",
			EntityID:    "authorization_model",
			ActorUserID: SystemActor,
			Details: datatypes.JSONMap{
				"permissions_created":  report.PermissionsCreated,
				"permissions_updated":  report.PermissionsUpdated,
				"permissions_restored": report.PermissionsRestored,
				"roles_created":        report.RolesCreated,
				"grants_created":       report.GrantsCreated,
				"templates_created":    report.TemplatesCreated,
			},
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("permission: record seed audit: %w", err)
		}
		return nil
	})
	if err != nil {
		return SyncReport{}, err
	}
	return report, nil
}

func seedRole(tx *gorm.DB, bp RoleBlueprint, roleIDs map[string]string) (bool, *models.Role, error) {
	role := models.Role{
		Name:                 bp.Name,
		DisplayName:          bp.DisplayName,
		Description:          bp.Description,
		Level:                bp.Level,
		IsSystemRole:         true,
		DepartmentRestricted: bp.DepartmentRestricted,
		BranchRestricted:     bp.BranchRestricted,
		IsActive:             true,
	}
	if bp.Parent != "" {
		parentID := roleIDs[bp.Parent]
		role.ParentRoleID = &parentID
	}

	result := tx.Where("name = ?", bp.Name).Attrs(role).FirstOrCreate(&role)
	if result.Error != nil {
		return false, nil, fmt.Errorf("permission: seed role %s: %w", bp.Name, result.Error)
	}
	return result.RowsAffected > 0, &role, nil
}

func seedTemplate(tx *gorm.DB, bp TemplateBlueprint, ids map[Name]string) (bool, error) {
	tmpl := models.PermissionTemplate{
		Name:             bp.Name,
		Description:      bp.Description,
		TemplateType:     bp.TemplateType,
		IsSystemTemplate: true,
		IsActive:         true,
		CreatedBy:        SystemActor,
	}
	for i, name := range bp.Permissions {
		tmpl.Permissions = append(tmpl.Permissions, models.TemplatePermission{
			PermissionID: ids[name],
			Position:     i,
		})
	}

	var existing models.PermissionTemplate
	err := tx.Where("name = ?", bp.Name).Take(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("permission: lookup template %s: %w", bp.Name, err)
	}
	if err := tx.Create(&tmpl).Error; err != nil {
		return false, fmt.Errorf("permission: seed template %s: %w", bp.Name, err)
	}
	return true, nil
}

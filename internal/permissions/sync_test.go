package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gatekeeper/internal/database/testutil"
	"github.com/charlesng35/gatekeeper/internal/models"
)

func TestSyncSeedsCatalogRolesAndTemplates(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	report, err := SyncWithReport(context.Background(), db)
	require.NoError(t, err)
	require.Equal(t, len(Definitions()), report.PermissionsCreated)
	require.Equal(t, len(RoleBlueprints()), report.RolesCreated)
	require.Equal(t, len(TemplateBlueprints()), report.TemplatesCreated)

	manager := roleNamed(t, db, "branch_manager")
	require.True(t, manager.IsSystemRole)
	require.True(t, manager.IsActive)
	require.Equal(t, 80, manager.Level)
	require.NotNil(t, manager.ParentRoleID)
	require.Equal(t, roleNamed(t, db, "department_head").ID, *manager.ParentRoleID)

	var grants int64
	require.NoError(t, db.Model(&models.RolePermission{}).Where("role_id = ?", manager.ID).Count(&grants).Error)
	require.Equal(t, int64(len(RoleBlueprints()[4].Permissions)), grants)

	var tmpl models.PermissionTemplate
	require.NoError(t, db.Preload("Permissions").Where("name = ?", "branch_manager_baseline").Take(&tmpl).Error)
	require.True(t, tmpl.IsSystemTemplate)
	require.Equal(t, models.TemplateTypeRole, tmpl.TemplateType)
	require.Len(t, tmpl.PermissionIDs(), int(grants))

	var audits []models.AuditEntry
	require.NoError(t, db.Find(&audits).Error)
	require.Len(t, audits, 1)
	require.Equal(t, "system.seed", audits[0].Action)
	require.Equal(t, SystemActor, audits[0].ActorUserID)
}

func TestSyncIsIdempotentAndKeepsAdminEdits(t *testing.T) {
	ctx := context.Background()
	db := seededDB(t)

	viewer := roleNamed(t, db, "viewer")
	require.NoError(t, db.Where("role_id = ?", viewer.ID).Delete(&models.RolePermission{}).Error)
	require.NoError(t, db.Model(&viewer).Update("display_name", "Read Only").Error)

	report, err := SyncWithReport(ctx, db)
	require.NoError(t, err)
	require.False(t, report.Changed())

	var grants int64
	require.NoError(t, db.Model(&models.RolePermission{}).Where("role_id = ?", viewer.ID).Count(&grants).Error)
	require.Zero(t, grants)
	require.Equal(t, "Read Only", roleNamed(t, db, "viewer").DisplayName)

	var audits int64
	require.NoError(t, db.Model(&models.AuditEntry{}).Count(&audits).Error)
	require.Equal(t, int64(1), audits)
}

func TestSyncRestoresDeletedBuiltIns(t *testing.T) {
	ctx := context.Background()
	db := seededDB(t)
	catalog, err := NewCatalog(db)
	require.NoError(t, err)

	_, err = catalog.Delete(ctx, SystemManage)
	require.NoError(t, err)

	report, err := SyncWithReport(ctx, db)
	require.NoError(t, err)
	require.Equal(t, 1, report.PermissionsRestored)

	_, err = catalog.Find(ctx, SystemManage)
	require.NoError(t, err)
}

func TestSyncRequiresDB(t *testing.T) {
	require.Error(t, Sync(context.Background(), nil))
}

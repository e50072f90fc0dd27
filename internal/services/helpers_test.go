package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeeper/internal/auditctx"
	"github.com/charlesng35/gatekeeper/internal/database/testutil"
	"github.com/charlesng35/gatekeeper/internal/models"
	"github.com/charlesng35/gatekeeper/internal/permissions"
)

type fixture struct {
	db        *gorm.DB
	audit     *AuditService
	resolver  *permissions.Resolver
	roles     *RoleService
	templates *TemplateService
	perms     *PermissionService
}

func newFixture(t *testing.T, opts ...RoleServiceOption) *fixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithSeeders(permissions.Sync))
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	resolver, err := permissions.NewResolver(db, 0)
	require.NoError(t, err)
	roles, err := NewRoleService(db, audit, resolver, opts...)
	require.NoError(t, err)
	templates, err := NewTemplateService(db, audit, resolver)
	require.NoError(t, err)
	perms, err := NewPermissionService(db, audit, resolver)
	require.NoError(t, err)

	return &fixture{db: db, audit: audit, resolver: resolver, roles: roles, templates: templates, perms: perms}
}

func adminCtx() context.Context {
	return auditctx.WithActor(context.Background(), auditctx.Actor{
		UserID:    "admin-1",
		IPAddress: "10.0.0.5",
		Reason:    "access review",
	})
}

func (f *fixture) auditCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.AuditEntry{}).Count(&count).Error)
	return count
}

func (f *fixture) lastAudit(t *testing.T) models.AuditEntry {
	t.Helper()
	var entry models.AuditEntry
	require.NoError(t, f.db.Order("timestamp DESC").Order("id DESC").Take(&entry).Error)
	return entry
}

func (f *fixture) roleNamed(t *testing.T, name string) models.Role {
	t.Helper()
	var role models.Role
	require.NoError(t, f.db.Where("name = ?", name).Take(&role).Error)
	return role
}

func (f *fixture) templateNamed(t *testing.T, name string) models.PermissionTemplate {
	t.Helper()
	var tpl models.PermissionTemplate
	require.NoError(t, f.db.Where("name = ?", name).Take(&tpl).Error)
	return tpl
}

func (f *fixture) grantCount(t *testing.T, roleID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.RolePermission{}).Where("role_id = ?", roleID).Count(&count).Error)
	return count
}

var errAuditStoreDown = errors.New("audit store down")

// failAuditWrites makes every insert into audit_entries fail on db.
func failAuditWrites(t *testing.T, db *gorm.DB) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_audit", func(tx *gorm.DB) {
		if tx.Statement.Table == "audit_entries" {
			_ = tx.AddError(errAuditStoreDown)
		}
	})
	require.NoError(t, err)
}

func names(perms []models.Permission) []string {
	out := make([]string, len(perms))
	for i, perm := range perms {
		out[i] = perm.Name
	}
	return out
}

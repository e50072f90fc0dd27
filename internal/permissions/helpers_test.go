package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeeper/internal/database/testutil"
	"github.com/charlesng35/gatekeeper/internal/models"
)

func seededDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithSeeders(Sync))
}

func newRole(t *testing.T, db *gorm.DB, name string, mutate ...func(*models.Role)) models.Role {
	t.Helper()
	role := models.Role{Name: name, DisplayName: name, Level: 50, IsActive: true}
	for _, fn := range mutate {
		fn(&role)
	}
	require.NoError(t, db.Create(&role).Error)
	return role
}

func withParent(parent models.Role) func(*models.Role) {
	return func(r *models.Role) {
		id := parent.ID
		r.ParentRoleID = &id
	}
}

func grantNames(t *testing.T, db *gorm.DB, role models.Role, names ...string) {
	t.Helper()
	catalog, err := NewCatalog(db)
	require.NoError(t, err)
	for _, name := range names {
		perm, err := catalog.FindByName(context.Background(), name)
		require.NoError(t, err)
		require.NoError(t, db.Create(&models.RolePermission{RoleID: role.ID, PermissionID: perm.ID}).Error)
	}
}

func roleNamed(t *testing.T, db *gorm.DB, name string) models.Role {
	t.Helper()
	var role models.Role
	require.NoError(t, db.Where("name = ?", name).Take(&role).Error)
	return role
}

func permissionNames(perms []models.Permission) []string {
	out := make([]string, len(perms))
	for i, perm := range perms {
		out[i] = perm.Name
	}
	return out
}

// isolateRegistry swaps in an empty registry for the duration of the test.
func isolateRegistry(t *testing.T) {
	t.Helper()
	previous := globalRegistry
	globalRegistry = newRegistry()
	t.Cleanup(func() {
		globalRegistry = previous
	})
}

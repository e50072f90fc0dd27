package permissions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeeper/internal/database/testutil"
	"github.com/charlesng35/gatekeeper/internal/models"
)

func TestCatalogDefineIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	catalog, err := NewCatalog(db)
	require.NoError(t, err)

	def := Definition{Name: MustParseName("LOAN.CLOSE.BRANCH"), Description: "Close loans in branch"}
	first, outcome, err := catalog.Define(ctx, def)
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, outcome)
	require.Equal(t, "LOAN.CLOSE.BRANCH", first.Name)

	second, outcome, err := catalog.Define(ctx, def)
	require.NoError(t, err)
	require.Equal(t, OutcomeUnchanged, outcome)
	require.False(t, outcome.Changed())
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Permission{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestCatalogDefineRefreshesDescription(t *testing.T) {
	ctx := context.Background()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	catalog, err := NewCatalog(db)
	require.NoError(t, err)

	name := MustParseName("LOAN.CLOSE.OWN")
	created, _, err := catalog.Define(ctx, Definition{Name: name, Description: "old"})
	require.NoError(t, err)

	updated, outcome, err := catalog.Define(ctx, Definition{Name: name, Description: "new"})
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, outcome)
	require.Equal(t, created.ID, updated.ID)

	// an empty description never clears the stored one
	_, outcome, err = catalog.Define(ctx, Definition{Name: name})
	require.NoError(t, err)
	require.Equal(t, OutcomeUnchanged, outcome)

	stored, err := catalog.Find(ctx, name)
	require.NoError(t, err)
	require.Equal(t, "new", stored.Description)
}

func TestCatalogDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	catalog, err := NewCatalog(db)
	require.NoError(t, err)

	name := MustParseName("LOAN.CLOSE.TEAM")
	created, _, err := catalog.Define(ctx, Definition{Name: name, Description: "close"})
	require.NoError(t, err)

	_, err = catalog.Delete(ctx, name)
	require.NoError(t, err)

	_, err = catalog.Find(ctx, name)
	require.ErrorIs(t, err, ErrPermissionNotFound)
	_, err = catalog.Delete(ctx, name)
	require.ErrorIs(t, err, ErrPermissionNotFound)

	restored, outcome, err := catalog.Define(ctx, Definition{Name: name})
	require.NoError(t, err)
	require.Equal(t, OutcomeRestored, outcome)
	require.Equal(t, created.ID, restored.ID)

	found, err := catalog.FindByName(ctx, "loan.close.team")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
}

func TestCatalogFindByNameRejectsMalformed(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	catalog, err := NewCatalog(db)
	require.NoError(t, err)

	_, err = catalog.FindByName(context.Background(), "LOAN.CLOSE")
	require.ErrorIs(t, err, ErrInvalidName)

	_, err = catalog.FindByName(context.Background(), "LOAN.CLOSE.GLOBAL")
	require.ErrorIs(t, err, ErrPermissionNotFound)
}

func TestCatalogListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	db := seededDB(t)
	catalog, err := NewCatalog(db)
	require.NoError(t, err)

	all, err := catalog.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, len(Definitions()))

	reports, err := catalog.List(ctx, ListFilter{ResourceType: "report"})
	require.NoError(t, err)
	require.Equal(t, []string{
		"REPORT.EXPORT.BRANCH",
		"REPORT.EXPORT.DEPARTMENT",
		"REPORT.EXPORT.GLOBAL",
		"REPORT.READ.BRANCH",
		"REPORT.READ.DEPARTMENT",
		"REPORT.READ.GLOBAL",
	}, permissionNames(reports))

	globals, err := catalog.List(ctx, ListFilter{ResourceType: "REPORT", Scope: ScopeGlobal})
	require.NoError(t, err)
	require.Len(t, globals, 2)
}

func TestCatalogFindByNamesSkipsUnknown(t *testing.T) {
	ctx := context.Background()
	db := seededDB(t)
	catalog, err := NewCatalog(db)
	require.NoError(t, err)

	known := MustParseName("AUDIT.READ.GLOBAL")
	unknown := MustParseName("FOO.BAR.GLOBAL")
	found, err := catalog.FindByNames(ctx, []Name{known, unknown})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "AUDIT.READ.GLOBAL", found[known].Name)

	byID, err := catalog.FindByIDs(ctx, []string{found[known].ID, "missing"})
	require.NoError(t, err)
	require.Len(t, byID, 1)
}

func TestCatalogWithDBJoinsTransaction(t *testing.T) {
	ctx := context.Background()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	catalog, err := NewCatalog(db)
	require.NoError(t, err)

	_ = db.Transaction(func(tx *gorm.DB) error {
		_, _, err := catalog.WithDB(tx).Define(ctx, Definition{Name: MustParseName("LOAN.CLOSE.OWN")})
		require.NoError(t, err)
		return errRollback
	})

	_, err = catalog.Find(ctx, MustParseName("LOAN.CLOSE.OWN"))
	require.ErrorIs(t, err, ErrPermissionNotFound)
}

var errRollback = errors.New("rollback")

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeeper/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Exec("SELECT 1").Error)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestAutoMigrateAndSeedRunsSeedersInOrder(t *testing.T) {
	db := openTestDB(t)

	var calls []string
	first := func(ctx context.Context, tx *gorm.DB) error {
		calls = append(calls, "first")
		return tx.Create(&models.Role{Name: "seeded", IsActive: true}).Error
	}
	second := func(ctx context.Context, tx *gorm.DB) error {
		calls = append(calls, "second")
		return nil
	}

	require.NoError(t, AutoMigrateAndSeed(context.Background(), db, first, nil, second))
	require.Equal(t, []string{"first", "second"}, calls)

	var count int64
	require.NoError(t, db.Model(&models.Role{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestAutoMigrateAndSeedStopsOnError(t *testing.T) {
	db := openTestDB(t)

	boom := errors.New("boom")
	err := AutoMigrateAndSeed(context.Background(), db, func(context.Context, *gorm.DB) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestAutoMigrateCreatesAuthorizationTables(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	migrator := db.Migrator()
	for _, table := range []any{
		&models.Permission{},
		&models.Role{},
		&models.RolePermission{},
		&models.RoleAssignment{},
		&models.PermissionTemplate{},
		&models.TemplatePermission{},
		&models.AuditEntry{},
	} {
		require.True(t, migrator.HasTable(table), "expected table for %T to exist", table)
	}
}

func TestIsUniqueConstraintError(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	require.NoError(t, db.Create(&models.Role{Name: "dup", IsActive: true}).Error)
	err := db.Create(&models.Role{Name: "dup", IsActive: true}).Error
	require.Error(t, err)
	require.True(t, IsUniqueConstraintError(err))
	require.False(t, IsUniqueConstraintError(nil))
	require.False(t, IsUniqueConstraintError(errors.New("connection refused")))
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite", DSN: "file:" + t.Name() + "?mode=memory&cache=shared&_foreign_keys=1"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

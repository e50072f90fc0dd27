package models

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	require.NoError(t, base.BeforeCreate(nil))
	require.NotEmpty(t, base.ID)
}

func TestEmbeddedModelsUseBaseBeforeCreate(t *testing.T) {
	cases := []struct {
		name  string
		model func() *BaseModel
	}{
		{"role", func() *BaseModel { return &(&Role{}).BaseModel }},
		{"permission", func() *BaseModel { return &(&Permission{}).BaseModel }},
		{"template", func() *BaseModel { return &(&PermissionTemplate{}).BaseModel }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			base := tc.model()
			require.NoError(t, base.BeforeCreate(nil))
			require.NotEmpty(t, base.ID)
		})
	}
}

func TestPermissionIDsFollowPosition(t *testing.T) {
	tpl := &PermissionTemplate{Permissions: []TemplatePermission{
		{PermissionID: "c", Position: 2},
		{PermissionID: "a", Position: 0},
		{PermissionID: "b", Position: 1},
	}}
	require.Equal(t, []string{"a", "b", "c"}, tpl.PermissionIDs())
	require.Empty(t, (*PermissionTemplate)(nil).PermissionIDs())
}

func TestAuditEntryIsAppendOnly(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:models_audit?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&AuditEntry{}))

	entry := AuditEntry{Action: "role.create", EntityType: "role", EntityID: "r1"}
	require.NoError(t, db.Create(&entry).Error)
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.Timestamp.IsZero())

	entry.Reason = "rewrite"
	require.ErrorIs(t, db.Save(&entry).Error, ErrAuditImmutable)
	require.ErrorIs(t, db.Delete(&entry).Error, ErrAuditImmutable)

	var count int64
	require.NoError(t, db.Model(&AuditEntry{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

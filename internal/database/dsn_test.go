package database

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "gatekeeper", Name: "authz"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=gatekeeper dbname=authz application_name=gatekeeper sslmode=disable", dsn)
}

func TestBuildPostgresDSNWithOptions(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "user",
		Name:     "db",
		Host:     "db.example.com",
		Port:     6543,
		Password: "pass",
		Options: map[string]string{
			"sslmode":     "require",
			"search_path": "authz",
		},
	})
	require.NoError(t, err)
	for _, part := range []string{"host=db.example.com", "port=6543", "password=pass", "sslmode=require", "search_path=authz"} {
		require.Contains(t, dsn, part)
	}
	require.NotContains(t, dsn, "sslmode=disable")
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	_, err := buildPostgresDSN(Config{})
	require.Error(t, err)
}

func TestBuildPostgresDSNOverride(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "postgres://x"})
	require.NoError(t, err)
	require.Equal(t, "postgres://x", dsn)
}

func TestBuildMySQLDSNDefaults(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "gatekeeper", Name: "authz"})
	require.NoError(t, err)
	require.Equal(t, "gatekeeper@tcp(127.0.0.1:3306)/authz?charset=utf8mb4&loc=UTC&parseTime=True", dsn)
}

func TestBuildMySQLDSNWithOptions(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "user",
		Password: "secret",
		Name:     "db",
		Host:     "db.example.com",
		Port:     3307,
		Options:  map[string]string{"tls": "skip-verify"},
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "user:secret@tcp(db.example.com:3307)/db?")
	require.Contains(t, dsn, "tls=skip-verify")
}

func TestBuildMySQLDSNRequiresUserAndName(t *testing.T) {
	_, err := buildMySQLDSN(Config{Host: "localhost"})
	require.Error(t, err)
}

func TestBuildSQLiteDSNMemory(t *testing.T) {
	dsn, err := buildSQLiteDSN(Config{})
	require.NoError(t, err)
	require.Equal(t, "file::memory:?_foreign_keys=1&cache=shared", dsn)
}

func TestBuildSQLiteDSNFileWithOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "authz.sqlite")

	dsn, err := buildSQLiteDSN(Config{
		Path:    path,
		Options: map[string]string{"_busy_timeout": "100", "mode": "rwc"},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dsn, "file:"+filepath.ToSlash(path)+"?"))
	require.Contains(t, dsn, "_busy_timeout=100")
	require.Contains(t, dsn, "_journal_mode=WAL")
	require.Contains(t, dsn, "mode=rwc")
	require.NotContains(t, dsn, "_busy_timeout=5000")
	require.DirExists(t, filepath.Dir(path))
}

func TestBuildSQLiteDSNRejectsEmptyOption(t *testing.T) {
	_, err := buildSQLiteDSN(Config{Options: map[string]string{" ": "x"}})
	require.Error(t, err)
}

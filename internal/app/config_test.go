package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gatekeeper/internal/auth"
	"github.com/charlesng35/gatekeeper/internal/cache"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata", "config.yaml"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)
	require.Equal(t, 20, cfg.Database.MaxOpenConns)

	require.Equal(t, 4096, cfg.Cache.EffectivePermissionsSize)
	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "redis.example.com:6380", cfg.Cache.Redis.Address)
	require.Equal(t, 2, cfg.Cache.Redis.DB)
	require.Equal(t, 2*time.Second, cfg.Cache.Redis.Timeout)

	require.False(t, cfg.Authz.LegacyFallback.Enabled)
	require.True(t, cfg.Authz.ProtectSystemRoleMatrix)
	require.Equal(t, "admin", cfg.Authz.AdminRole)
	require.Equal(t, "SYSTEM.MANAGE.GLOBAL", cfg.Authz.CorePermission)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "gatekeeper-test", cfg.Auth.JWT.Issuer)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)

	require.False(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.True(t, cfg.Monitoring.Health.Enabled)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("GATEKEEPER_SERVER_PORT", "7070")
	t.Setenv("GATEKEEPER_AUTH_JWT_SECRET", "from-env")
	t.Setenv("GATEKEEPER_CACHE_REDIS_ENABLED", "false")

	cfg, err := LoadConfig(filepath.Join("testdata", "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "from-env", cfg.Auth.JWT.Secret)
	require.False(t, cfg.Cache.Redis.Enabled)
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	t.Setenv("GATEKEEPER_AUTH_JWT_SECRET", "s3cret")

	cfg, err := LoadConfig("", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/gatekeeper.sqlite", cfg.Database.Path)
	require.Equal(t, 1024, cfg.Cache.EffectivePermissionsSize)
	require.True(t, cfg.Authz.LegacyFallback.Enabled)
	require.False(t, cfg.Authz.ProtectSystemRoleMatrix)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Config{
		Server:   ServerConfig{Port: 0},
		Database: DatabaseConfig{Driver: "oracle"},
		Cache:    CacheConfig{Redis: RedisCacheConfig{Enabled: true}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	for _, fragment := range []string{
		"server.port",
		"database.driver",
		"auth.jwt.secret",
		"cache.redis.address",
		"authz.admin_role",
	} {
		require.Contains(t, err.Error(), fragment)
	}
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := AuthConfig{JWT: JWTSettings{Secret: "secret", Issuer: "issuer", TTL: 30 * time.Minute}}
	require.Equal(t, auth.JWTConfig{
		Secret:         "secret",
		Issuer:         "issuer",
		AccessTokenTTL: 30 * time.Minute,
	}, cfg.JWTServiceConfig())

	var empty AuthConfig
	require.Equal(t, auth.DefaultAccessTokenTTL, empty.JWTServiceConfig().AccessTokenTTL)
}

func TestCacheConfigAdapters(t *testing.T) {
	cfg := CacheConfig{Redis: RedisCacheConfig{Address: " localhost:6379 ", Password: "pw", DB: 3, Timeout: time.Second}}
	require.Equal(t, cache.RedisConfig{
		Address:  "localhost:6379",
		Password: "pw",
		DB:       3,
		Timeout:  time.Second,
	}, cfg.RedisClientConfig())
	require.Equal(t, cache.DefaultChannel, cfg.InvalidationChannel())

	cfg.Redis.Channel = "custom"
	require.Equal(t, "custom", cfg.InvalidationChannel())
}

func TestDatabaseConnectionConfig(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: "MySQL",
		MySQL:  DBAuthConfig{Host: "mysql", Port: 3306, Database: "authz", Username: "u", Password: "p"},
	}
	conn := cfg.ConnectionConfig()
	require.Equal(t, "mysql", conn.Driver)
	require.Equal(t, "mysql", conn.Host)
	require.Equal(t, "authz", conn.Name)
	require.Equal(t, "u", conn.User)

	sqlite := DatabaseConfig{Driver: "sqlite", Path: "/tmp/a.db", Postgres: DBAuthConfig{Host: "ignored"}}.ConnectionConfig()
	require.Equal(t, "/tmp/a.db", sqlite.Path)
	require.Empty(t, sqlite.Host)
}

func TestAuthzLegacyTable(t *testing.T) {
	table, err := AuthzConfig{}.LegacyTable()
	require.NoError(t, err)
	require.Nil(t, table)

	table, err = AuthzConfig{LegacyFallback: LegacyFallbackConfig{Enabled: true}}.LegacyTable()
	require.NoError(t, err)
	require.NotNil(t, table)
	require.NotEmpty(t, table.Roles())

	_, err = AuthzConfig{LegacyFallback: LegacyFallbackConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "none.yaml")}}.LegacyTable()
	require.Error(t, err)
}

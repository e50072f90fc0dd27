package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/gatekeeper/internal/app"
	"github.com/charlesng35/gatekeeper/internal/models"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()

	return &app.Config{
		Server: app.ServerConfig{Port: 0, LogLevel: "error"},
		Database: app.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "gatekeeper.sqlite"),
		},
		Cache: app.CacheConfig{EffectivePermissionsSize: 64},
		Authz: app.AuthzConfig{
			LegacyFallback: app.LegacyFallbackConfig{Enabled: true},
			AdminRole:      "admin",
			CorePermission: "SYSTEM.MANAGE.GLOBAL",
		},
		Auth: app.AuthConfig{JWT: app.JWTSettings{Secret: "bootstrap-secret", Issuer: "gatekeeper"}},
		Monitoring: app.MonitoringConfig{
			Health: app.HealthConfig{Enabled: true},
		},
	}
}

func startStack(t *testing.T, cfg *app.Config) *runtimeStack {
	t.Helper()

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })
	return stack
}

func TestBootstrapRuntimeServesSeededModel(t *testing.T) {
	stack := startStack(t, testConfig(t))

	require.NotNil(t, stack.Evaluator)
	require.True(t, stack.Evaluator.FallbackEnabled())
	require.Nil(t, stack.Broadcaster)

	rec := httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/integrity", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, "healthy", body.Data.Status)

	rec = httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/roles", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBootstrapRuntimeLegacyFallbackDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Authz.LegacyFallback.Enabled = false

	stack := startStack(t, cfg)
	require.False(t, stack.Evaluator.FallbackEnabled())
}

func TestBootstrapRuntimeRejectsBadLegacyTable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Authz.LegacyFallback.Path = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "legacy fallback")
}

func TestBootstrapRuntimeRemoteInvalidation(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Cache.Redis = app.RedisCacheConfig{
		Enabled: true,
		Address: mr.Addr(),
		Channel: "authz:bootstrap",
		Timeout: time.Second,
	}

	stack := startStack(t, cfg)
	require.NotNil(t, stack.Broadcaster)
	require.Equal(t, "authz:bootstrap", stack.Broadcaster.Channel())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, stack.Listen(ctx))

	var admin models.Role
	require.NoError(t, stack.DB.Where("name = ?", "admin").First(&admin).Error)
	_, err := stack.Resolver.Resolve(ctx, admin.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stack.Resolver.Len())

	peer := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = peer.Close() })
	require.NoError(t, peer.Publish(ctx, "authz:bootstrap", "another-node").Err())

	require.Eventually(t, func() bool {
		return stack.Resolver.Len() == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestBootstrapRuntimeRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t)
	cfg.Cache.Redis = app.RedisCacheConfig{Enabled: true, Address: addr, Timeout: 200 * time.Millisecond}

	stack := startStack(t, cfg)
	require.Nil(t, stack.Redis)
	require.Nil(t, stack.Broadcaster)
	require.NoError(t, stack.Listen(context.Background()))
}

func TestLoadApplicationConfig(t *testing.T) {
	t.Setenv("GATEKEEPER_AUTH_JWT_SECRET", "from-env")

	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")

	dir := t.TempDir()
	contents := []byte("server:\n  port: 9191\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), contents, 0o600))

	cfg, err := loadApplicationConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.Server.Port)
	require.Equal(t, "from-env", cfg.Auth.JWT.Secret)

	cfg, err = loadApplicationConfig(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.Server.Port)
}

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeeper/internal/api"
	"github.com/charlesng35/gatekeeper/internal/app"
	iauth "github.com/charlesng35/gatekeeper/internal/auth"
	"github.com/charlesng35/gatekeeper/internal/cache"
	"github.com/charlesng35/gatekeeper/internal/database"
	"github.com/charlesng35/gatekeeper/internal/monitoring"
	"github.com/charlesng35/gatekeeper/internal/monitoring/checks"
	"github.com/charlesng35/gatekeeper/internal/permissions"
	"github.com/charlesng35/gatekeeper/internal/services"
	"github.com/charlesng35/gatekeeper/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Resolver    *permissions.Resolver
	Evaluator   *permissions.Evaluator
	Broadcaster *cache.Broadcaster
	Integrity   *monitoring.IntegrityReporter
	Monitoring  *monitoring.Module
	Router      *gin.Engine
}

// bootstrapRuntime initialises the database, the authorization engine, its
// management services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	stack.Resolver, err = permissions.NewResolver(stack.DB, cfg.Cache.EffectivePermissionsSize)
	if err != nil {
		return nil, fmt.Errorf("initialise resolver: %w", err)
	}

	legacy, err := cfg.Authz.LegacyTable()
	if err != nil {
		return nil, fmt.Errorf("load legacy fallback table: %w", err)
	}
	evalOpts := []permissions.EvaluatorOption{permissions.WithLogger(logger.WithModule("authz"))}
	if legacy != nil {
		evalOpts = append(evalOpts, permissions.WithLegacyTable(legacy))
		log.Info("legacy fallback enabled",
			zap.String("source", legacy.Source()),
			zap.Int("version", legacy.Version()),
			zap.Strings("roles", legacy.Roles()),
		)
	}
	stack.Evaluator, err = permissions.NewEvaluator(stack.Resolver, evalOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise evaluator: %w", err)
	}

	var invalidator services.CacheInvalidator = stack.Resolver
	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisClient(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; cache invalidation stays local", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}
	if stack.Redis != nil {
		stack.Broadcaster = cache.NewBroadcaster(stack.Redis, stack.Resolver, cfg.Cache.InvalidationChannel())
		invalidator = stack.Broadcaster
	}

	auditSvc, err := services.NewAuditService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}

	roleSvc, err := services.NewRoleService(stack.DB, auditSvc, stack.Resolver,
		services.WithInvalidator(invalidator),
		services.WithSystemRoleMatrixProtection(cfg.Authz.ProtectSystemRoleMatrix),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise role service: %w", err)
	}

	templateSvc, err := services.NewTemplateService(stack.DB, auditSvc, invalidator,
		services.WithTemplateMatrixProtection(cfg.Authz.ProtectSystemRoleMatrix),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise template service: %w", err)
	}

	permissionSvc, err := services.NewPermissionService(stack.DB, auditSvc, invalidator)
	if err != nil {
		return nil, fmt.Errorf("initialise permission service: %w", err)
	}

	stack.Integrity, err = monitoring.NewIntegrityReporter(stack.DB, monitoring.IntegrityOptions{
		AdminRole:      cfg.Authz.AdminRole,
		CorePermission: cfg.Authz.CorePermission,
		MinPermissions: int64(len(permissions.Definitions())),
		MinRoles:       int64(len(permissions.RoleBlueprints())),
	})
	if err != nil {
		return nil, fmt.Errorf("initialise integrity reporter: %w", err)
	}

	stack.Monitoring, err = monitoring.NewModule(monitoring.Options{})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(stack.Monitoring)
	registerHealthChecks(stack, cfg)

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:      cfg,
		JWT:         jwtSvc,
		Evaluator:   stack.Evaluator,
		Resolver:    stack.Resolver,
		Audit:       auditSvc,
		Roles:       roleSvc,
		Templates:   templateSvc,
		Permissions: permissionSvc,
		Integrity:   stack.Integrity,
		Monitoring:  stack.Monitoring,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func registerHealthChecks(stack *runtimeStack, cfg *app.Config) {
	health := stack.Monitoring.Health()
	health.RegisterLiveness(monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	health.RegisterReadiness(checks.Database(stack.DB, 0))

	var pinger checks.RedisPinger
	if stack.Redis != nil {
		pinger = cache.Pinger{Client: stack.Redis}
	}
	health.RegisterReadiness(checks.Redis(pinger, cfg.Cache.Redis.Enabled, cfg.Cache.Redis.Timeout))
	health.RegisterReadiness(checks.Integrity(stack.Integrity))
}

// Listen starts receiving invalidations published by other replicas. It is a
// no-op when Redis is not in use.
func (s *runtimeStack) Listen(ctx context.Context) error {
	if s == nil || s.Broadcaster == nil {
		return nil
	}
	return s.Broadcaster.Listen(ctx)
}

// Shutdown releases the Redis connection and the database pool.
func (s *runtimeStack) Shutdown(_ context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(ctx context.Context, cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(ctx, db, permissions.Sync); err != nil {
		closeDatabase(db, logger.WithModule("database"))
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}

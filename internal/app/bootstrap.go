// Package app wires the repository, service, and scheduler layers into a
// runnable process and exposes the operator-facing HTTP surface
// (health/status endpoints only; the management UI lives elsewhere).
package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"comradarr/internal/adapter/connector"
	"comradarr/internal/adapter/credential"
	"comradarr/internal/adapter/repo/postgres"
	"comradarr/internal/config"
	"comradarr/internal/domain"
	"comradarr/internal/service/dispatcher"
	"comradarr/internal/service/reconnect"
	"comradarr/internal/service/registry"
	"comradarr/internal/service/scheduler"
	"comradarr/internal/service/selector"
	"comradarr/internal/service/throttle"
	"comradarr/pkg/clock"
)

// App holds every long-lived collaborator built at startup. main only needs
// to run App.Scheduler and serve App.Router.
type App struct {
	Config    config.Config
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Scheduler *scheduler.Scheduler
	Router    *Router
}

// Bootstrap validates cfg, opens the database (and, if configured, Redis)
// connections, and wires every service named in the module map into a
// running Scheduler. Callers are responsible for calling Close.
func Bootstrap(ctx domain.Context, cfg config.Config) (*App, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("op=app.bootstrap.validateConfig: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("op=app.bootstrap.dbConnect: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("op=app.bootstrap.parseRedisURL: %w", err)
		}
		redisClient = redis.NewClient(opts)
	}

	connectors := postgres.NewConnectorRepo(pool)
	throttleRepo := postgres.NewThrottleRepo(pool)

	presets, err := cfg.ThrottlePresets()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("op=app.bootstrap.throttlePresets: %w", err)
	}
	profiles := make([]domain.ThrottleProfile, 0, len(presets))
	for _, p := range presets {
		profiles = append(profiles, domain.ThrottleProfile{
			Name:                  p.Name,
			RequestsPerMinute:     p.RequestsPerMinute,
			DailyBudget:           p.DailyBudget,
			BatchSize:             p.BatchSize,
			BatchCooldownSeconds:  p.BatchCooldownSeconds,
			RateLimitPauseSeconds: p.RateLimitPauseSeconds,
			IsDefault:             p.IsDefault,
		})
	}
	if seeded, err := throttleRepo.SeedProfiles(ctx, profiles); err != nil {
		slog.Warn("throttle profile seeding failed", slog.Any("error", err))
	} else if seeded > 0 {
		slog.Info("seeded throttle profiles", slog.Int("inserted", seeded))
	}
	registryRepo := postgres.NewRegistryRepo(pool)
	contentRepo := postgres.NewContentRepo(pool)
	historyRepo := postgres.NewHistoryRepo(pool)
	syncRepo := postgres.NewSyncRepo(pool)

	creds, err := credential.New(cfg.SecretKey)
	if err != nil {
		// A missing or malformed SECRET_KEY is fatal once any connector is
		// configured: every dispatch pass would fail at decrypt time, so
		// refuse to start instead of reporting ready and failing at runtime.
		existing, listErr := connectors.List(ctx)
		if listErr != nil {
			pool.Close()
			return nil, fmt.Errorf("op=app.bootstrap.listConnectors: %w", listErr)
		}
		if len(existing) > 0 {
			pool.Close()
			return nil, fmt.Errorf("op=app.bootstrap.credentials: %d connectors configured but SECRET_KEY is unusable: %w", len(existing), err)
		}
		slog.Warn("credential provider disabled: connector dispatch will fail until SECRET_KEY is set", slog.Any("error", err))
	}

	var clientFactory *connector.Factory
	if creds != nil {
		clientFactory = connector.NewFactory(creds, cfg.UpstreamRequestTimeout)
	}

	var precheck *throttle.RedisPrecheck
	if redisClient != nil {
		precheck = throttle.NewRedisPrecheck(redisClient)
	}
	enforcer := throttle.NewEnforcer(throttleRepo, precheck)

	reconnectSvc := reconnect.NewService(syncRepo, connectors, clientFactoryAdapter{clientFactory},
		clock.BackoffShape{
			Base:       cfg.ReconnectBaseDelay,
			Max:        cfg.ReconnectMaxDelay,
			Multiplier: cfg.ReconnectMultiplier,
			Jitter:     cfg.ReconnectJitter,
		},
		domain.SyncHealthThresholds{DegradedAt: cfg.SyncDegradedThreshold, UnhealthyAt: cfg.SyncUnhealthyThreshold})

	registrySvc := registry.NewService(registryRepo, historyRepo, cfg.CooldownTiers, cfg.RegistryMaxAttempts, cfg.ErrorCooldown)

	selectorSvc := selector.New(contentRepo, registryRepo, registrySvc, cfg.DispatchPassSelectCap)

	disp := dispatcher.New(registryRepo, contentRepo, enforcer, registrySvc, nil,
		dispatcher.BatchingLimits{
			MaxEpisodesPerSearch: cfg.MaxEpisodesPerSearch,
			MaxMoviesPerSearch:   cfg.MaxMoviesPerSearch,
			MinMissingCount:      cfg.SeasonSearchMinMissingCount,
			MinMissingPercent:    cfg.SeasonSearchMinMissingPercent,
		}, cfg.DispatchPassSelectCap)

	queueRepo := postgres.NewQueueRepo(pool)

	sched := scheduler.New(connectors, enforcer, reconnectSvc, selectorSvc, disp, queueRepo, clientFactoryAdapter{clientFactory},
		scheduler.Intervals{
			Throttle:  cfg.ThrottleTickInterval,
			Reconnect: cfg.ReconnectTickInterval,
			Dispatch:  cfg.DispatchTickInterval,
		}, slog.Default())

	if cfg.DataRetentionDays > 0 {
		cleanupSvc := postgres.NewCleanupService(pool, cfg.DataRetentionDays)
		go cleanupSvc.RunPeriodic(ctx, cfg.CleanupInterval)
	}

	router := newRouter(cfg, pool, redisClient)

	return &App{
		Config:    cfg,
		Pool:      pool,
		Redis:     redisClient,
		Scheduler: sched,
		Router:    router,
	}, nil
}

// Close releases the database and cache connections. Safe to call on a
// partially-constructed App.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}

// clientFactoryAdapter lets Bootstrap pass a possibly-nil *connector.Factory
// to services expecting the shared ConnectorClientFactory interface, surfacing
// the SECRET_KEY misconfiguration as a per-call error instead of a nil-pointer
// panic.
type clientFactoryAdapter struct{ f *connector.Factory }

func (a clientFactoryAdapter) Build(ctx domain.Context, conn domain.Connector) (domain.ConnectorClient, error) {
	if a.f == nil {
		return nil, fmt.Errorf("op=app.clientFactory.build: %w", errCredentialProviderUnconfigured)
	}
	return a.f.Build(ctx, conn)
}

var errCredentialProviderUnconfigured = errors.New("SECRET_KEY not configured")

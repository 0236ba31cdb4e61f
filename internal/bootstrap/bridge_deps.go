package bootstrap

import (
	"fmt"
	"time"

	"exchange_bridge/adapter/out/cache"
	"exchange_bridge/adapter/out/persistence"
	"exchange_bridge/adapter/out/provider"
	"exchange_bridge/adapter/out/provider/ews"
	"exchange_bridge/config"
	"exchange_bridge/core/port/in"
	"exchange_bridge/core/port/out"
	"exchange_bridge/core/service/calendar"
	"exchange_bridge/infra/database"
	"exchange_bridge/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Dependencies holds every wired component.
type Dependencies struct {
	DB    *pgxpool.Pool
	Redis *redis.Client

	Provider        out.CalendarProviderPort
	Coordinator     *calendar.Coordinator
	CalendarService in.CalendarService
	DefaultZone     *time.Location
}

// NewDependencies wires the provider, optional stores, coordinator and
// service. The returned cleanup closes the store connections.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	log := logger.Default()

	zone, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load default timezone: %w", err)
	}

	ewsClient, err := ews.NewClient(ews.Config{
		AuthType:     cfg.AuthType,
		Server:       cfg.Server,
		Email:        cfg.Email,
		Username:     cfg.EffectiveUsername(),
		Password:     cfg.Password,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TenantID:     cfg.TenantID,
		InsecureSSL:  cfg.AllowInsecureSSL,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create EWS client: %w", err)
	}

	ewsAdapter := provider.NewEWSCalendarAdapter(ewsClient, zone, log)

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	deps := &Dependencies{
		Provider:    ewsAdapter,
		DefaultZone: zone,
	}

	// Optional refresh-state persistence.
	var refreshRepo out.RefreshStateRepository
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)
		deps.DB = pool

		sqlxDB := sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
		repo, err := persistence.NewRefreshStateAdapter(sqlxDB)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		refreshRepo = repo
		log.Info("refresh-state persistence enabled")
	}

	// Optional snapshot cache.
	var snapshotCache out.SnapshotCachePort
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		cleanups = append(cleanups, func() { _ = redisClient.Close() })
		deps.Redis = redisClient
		snapshotCache = cache.NewSnapshotCache(redisClient)
		log.Info("snapshot cache enabled")
	}

	deps.Coordinator = calendar.NewCoordinator(calendar.CoordinatorConfig{
		Provider:    ewsAdapter,
		Repo:        refreshRepo,
		Cache:       snapshotCache,
		Logger:      log,
		Interval:    cfg.UpdateInterval,
		DaysToFetch: cfg.DaysToFetch,
		MaxEvents:   cfg.MaxEvents,
	})
	deps.CalendarService = calendar.NewService(deps.Coordinator, ewsAdapter, zone, cfg.ReadOnly, log)

	return deps, cleanup, nil
}

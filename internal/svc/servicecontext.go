package svc

import (
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "equilibrium-api/internal/cache"
	"equilibrium-api/internal/config"
	"equilibrium-api/internal/model"
	enginepersist "equilibrium-api/internal/persistence/engine"
	marketpersist "equilibrium-api/internal/persistence/market"
	"equilibrium-api/internal/persistence/reports"
	enginepkg "equilibrium-api/pkg/engine"
	marketpkg "equilibrium-api/pkg/market"
	_ "equilibrium-api/pkg/market/exchanges/binance"
)

type ServiceContext struct {
	Config config.Config

	// Hydrated section configs; nil when the section is absent.
	MarketConfig *marketpkg.Config
	EngineConfig *enginepkg.Config

	MarketProviders map[string]marketpkg.Provider
	DefaultMarket   marketpkg.Provider

	// Postgres handles; nil without a DSN.
	DBConn           sqlx.SqlConn
	SyncCursorsModel model.SyncCursorsModel

	RawStore    *marketpersist.Store
	MetricStore *enginepersist.Store

	// Reports is the Redis seam shared by the engine (publish, locks) and
	// the serving layer (reads); nil without Redis.
	Reports *reports.Store

	TTL cachekeys.TTLSet

	// Runner is wired when every engine dependency is configured; the API
	// can serve cached reports without it.
	Runner *enginepkg.Runner
}

func NewServiceContext(c config.Config) *ServiceContext {
	svc := &ServiceContext{
		Config:       c,
		MarketConfig: c.Market.Value,
		EngineConfig: c.Engine.Value,
		TTL:          cachekeys.NewTTLSet(c.TTL),
	}

	if svc.MarketConfig != nil {
		providers, err := svc.MarketConfig.BuildProviders()
		if err != nil {
			log.Fatalf("failed to build market providers: %v", err)
		}
		svc.MarketProviders = providers
		if svc.MarketConfig.Default != "" {
			svc.DefaultMarket = providers[svc.MarketConfig.Default]
		}
	}

	if c.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		raw, err := conn.RawDB()
		if err != nil {
			log.Fatalf("failed to open postgres handle: %v", err)
		}
		raw.SetMaxOpenConns(c.Postgres.MaxOpen)
		raw.SetMaxIdleConns(c.Postgres.MaxIdle)
		svc.DBConn = conn
		svc.SyncCursorsModel = model.NewSyncCursorsModel(conn)
		svc.RawStore = marketpersist.NewStore(conn)
		svc.MetricStore = enginepersist.NewStore(conn)
	}

	if c.HasRedis() {
		client := redis.MustNewRedis(c.Redis)
		var lockTTL time.Duration
		if svc.EngineConfig != nil {
			lockTTL = svc.EngineConfig.LockTTL
		}
		svc.Reports = reports.NewStore(client, lockTTL)
	}

	if svc.EngineConfig != nil && svc.DefaultMarket != nil && svc.RawStore != nil && svc.MetricStore != nil && svc.Reports != nil {
		runner, err := enginepkg.NewRunner(*svc.EngineConfig, enginepkg.Dependencies{
			Source:  svc.DefaultMarket,
			Raw:     svc.RawStore,
			Metrics: svc.MetricStore,
			Reports: svc.Reports,
			Locks:   svc.Reports,
		})
		if err != nil {
			log.Fatalf("failed to build engine runner: %v", err)
		}
		svc.Runner = runner
	}

	return svc
}

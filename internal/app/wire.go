package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quantrove/tickbot/internal/arbitrage"
	"github.com/quantrove/tickbot/internal/basket"
	s3blob "github.com/quantrove/tickbot/internal/blob/s3"
	"github.com/quantrove/tickbot/internal/cache/redis"
	"github.com/quantrove/tickbot/internal/config"
	"github.com/quantrove/tickbot/internal/domain"
	"github.com/quantrove/tickbot/internal/engine"
	"github.com/quantrove/tickbot/internal/fairvalue"
	"github.com/quantrove/tickbot/internal/store/postgres"
	"github.com/quantrove/tickbot/internal/strategy"
)

// Dependencies bundles everything the operating modes need. It is
// constructed by Wire and torn down by the returned cleanup function. The
// persistence fields are nil when their backend is disabled; nothing in the
// tick path requires them.
type Dependencies struct {
	Engine     *engine.Orchestrator
	TickStore  domain.TickRecordStore
	StateCache domain.StateCache
	Archiver   *s3blob.Archiver
}

// Wire constructs the engine and every enabled backend from the given
// configuration. The cleanup function must be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	specs, err := BuildSpecs(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: build instrument specs: %w", err)
	}
	eng, err := engine.New(specs, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: engine: %w", err)
	}
	deps.Engine = eng

	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
		deps.TickStore = postgres.NewTickRecordStore(pgClient.Pool())
	}

	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.StateCache = redis.NewStateCache(redisClient)
	}

	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if deps.TickStore == nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3 archive requires the postgres store: %w", domain.ErrInvalidConfig)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.TickStore, logger)
	}

	return deps, cleanup, nil
}

// BuildSpecs resolves the validated instrument configuration into fully
// typed engine specs. Validation has already rejected unknown strategy
// kinds, so the mapping here is mechanical.
func BuildSpecs(cfg *config.Config) ([]engine.InstrumentSpec, error) {
	specs := make([]engine.InstrumentSpec, 0, len(cfg.Instruments))
	for _, ic := range cfg.Instruments {
		kind := domain.StrategyKind(strings.ToLower(ic.Strategy))
		if !kind.Valid() {
			return nil, fmt.Errorf("instrument %s: unknown strategy %q: %w", ic.Symbol, ic.Strategy, domain.ErrInvalidConfig)
		}

		maker := strategy.MakerConfig{
			FairValue:   ic.FairValue,
			SLInventory: ic.SLInventory,
			SLSpread:    ic.SLSpread,
			MMSpread:    ic.MMSpread,
			OrderSkew:   ic.OrderSkew,
		}

		spec := engine.InstrumentSpec{
			Instrument: domain.Instrument{
				Symbol:        ic.Symbol,
				PositionLimit: ic.PositionLimit,
				StorageCost:   ic.StorageCost,
			},
			Kind:  kind,
			Maker: maker,
			Regression: fairvalue.RegressionConfig{
				MinWindow:    ic.MinWindowSize,
				MaxWindow:    ic.MaxWindowSize,
				PredictShift: ic.PredictShift,
				TickDuration: cfg.Engine.TickDuration,
			},
			Arbitrage: arbitrage.Config{
				ExpStorageTime: ic.ExpStorageTime,
				MinEdge:        ic.MinEdge,
				MMEdge:         ic.MMEdge,
			},
		}

		if kind == domain.StrategyBasket {
			spec.Basket = basket.Config{
				PremiumMean:          ic.PremiumMean,
				PremiumStd:           ic.PremiumStd,
				LinearSensitivity:    ic.LinearSensitivity,
				QuadraticSensitivity: ic.QuadraticSensitivity,
				SLTarget:             ic.SLTarget,
				Maker:                maker,
			}
			for _, cc := range ic.Constituents {
				spec.Constituents = append(spec.Constituents, domain.Instrument{
					Symbol:        cc.Symbol,
					PositionLimit: cc.PositionLimit,
					PerBasket:     cc.PerBasket,
				})
			}
		}

		specs = append(specs, spec)
	}
	return specs, nil
}

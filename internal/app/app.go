// Package app assembles the ledger from configuration: store, lease,
// metrics and the trimming strategy.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/item-ledger/internal/adapter/storage"
	"github.com/rl1809/item-ledger/internal/config"
	"github.com/rl1809/item-ledger/internal/core/service"
	"github.com/rl1809/item-ledger/internal/port"
	"github.com/rl1809/item-ledger/internal/telemetry"
)

type App struct {
	Config  config.Config
	Store   *storage.SQLAdapter
	Ledger  *service.LedgerService
	Audit   *service.AuditTrail
	Reaper  *service.Reaper
	Sweeper *service.Sweeper // nil in inline mode

	logger  *slog.Logger
	redis   *redis.Client
	metrics *telemetry.Provider
}

func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}

	provider, err := telemetry.InitMetrics(cfg.MetricsEnabled, 0)
	if err != nil {
		return nil, err
	}
	a.metrics = provider

	metrics, err := telemetry.NewMetrics(provider.Meter)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	opts := service.Options{Logger: logger, Metrics: metrics}

	switch cfg.Driver {
	case config.DriverMySQL:
		a.Store, err = storage.OpenMySQL(ctx, cfg.DSN, storage.PoolConfig{
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime(),
		})
	default:
		a.Store, err = storage.OpenSQLite(ctx, cfg.DSN)
	}
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	logger.Info("connected to store", "driver", a.Store.Dialect())

	var lease port.LeaseRepository
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		lease = storage.NewRedisAdapter(a.redis)
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
	}

	a.Reaper = service.NewReaper(a.Store, service.ReaperConfig{
		Probability: cfg.Reaper.Probability,
		Threshold:   cfg.Reaper.Threshold,
		Batch:       cfg.Reaper.Batch,
		Lease:       lease,
		LeaseTTL:    cfg.Reaper.LeaseTTL(),
	}, opts)

	var housekeeper service.Housekeeper = a.Reaper
	if cfg.Reaper.Mode == config.TrimModeBackground {
		a.Sweeper, err = service.NewSweeper(a.Reaper, service.SweeperConfig{Schedule: cfg.Reaper.Schedule}, opts)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		housekeeper = a.Sweeper
	}

	a.Audit = service.NewAuditTrail(a.Store, opts)
	a.Ledger = service.NewLedgerService(a.Store, service.NewSupplyQuery(a.Store), a.Audit, housekeeper, opts)

	return a, nil
}

// Migrate creates the ledger tables.
func (a *App) Migrate(ctx context.Context) error {
	return a.Store.Migrate(ctx)
}

// Start runs background housekeeping when configured.
func (a *App) Start(ctx context.Context) {
	if a.Sweeper != nil {
		a.Sweeper.Start(ctx)
	}
}

func (a *App) Close(ctx context.Context) {
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.Store != nil {
		a.Store.DB().Close()
	}
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics shutdown failed", "error", err)
		}
	}
	a.logger.Info("connections closed")
}

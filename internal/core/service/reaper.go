package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/rl1809/item-ledger/internal/core/domain"
	"github.com/rl1809/item-ledger/internal/port"
	"github.com/rl1809/item-ledger/internal/telemetry"
)

const (
	DefaultTrimProbability    = 0.05
	DefaultRetentionThreshold = 250
	DefaultTrimBatch          = 100
	DefaultLeaseTTL           = 30 * time.Second

	reaperLeaseKey = "itemledger:reaper"
)

type ReaperConfig struct {
	// Probability of checking the history size after a mutation.
	Probability float64
	// Threshold is the row count above which a trim happens.
	Threshold int64
	// Batch is how many of the oldest rows one trim removes.
	Batch int

	// Lease, when set, keeps concurrent processes from trimming at once.
	Lease    port.LeaseRepository
	LeaseTTL time.Duration

	// Rand returns a float in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
}

// Reaper bounds the size of the history table by deleting the oldest rows.
type Reaper struct {
	history     port.HistoryRepository
	lease       port.LeaseRepository
	leaseTTL    time.Duration
	probability float64
	threshold   int64
	batch       int
	rand        func() float64
	logger      *slog.Logger
	metrics     *telemetry.Metrics
}

func NewReaper(history port.HistoryRepository, cfg ReaperConfig, opts Options) *Reaper {
	opts = opts.withDefaults()

	r := &Reaper{
		history:     history,
		lease:       cfg.Lease,
		leaseTTL:    cfg.LeaseTTL,
		probability: cfg.Probability,
		threshold:   cfg.Threshold,
		batch:       cfg.Batch,
		rand:        cfg.Rand,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
	if r.probability <= 0 {
		r.probability = DefaultTrimProbability
	}
	if r.threshold <= 0 {
		r.threshold = DefaultRetentionThreshold
	}
	if r.batch <= 0 {
		r.batch = DefaultTrimBatch
	}
	if r.leaseTTL <= 0 {
		r.leaseTTL = DefaultLeaseTTL
	}
	if r.rand == nil {
		r.rand = rand.Float64
	}
	return r
}

// ShouldTrim rolls the dice once.
func (r *Reaper) ShouldTrim() bool {
	return r.rand() < r.probability
}

// MaybeTrim trims with the configured probability. Errors are logged only.
func (r *Reaper) MaybeTrim(ctx context.Context) {
	if !r.ShouldTrim() {
		return
	}
	r.trimAndLog(ctx)
}

func (r *Reaper) AfterMutation(ctx context.Context) {
	r.MaybeTrim(ctx)
}

// Trim deletes the oldest batch of rows when the table exceeds the threshold
// and returns how many were removed.
func (r *Reaper) Trim(ctx context.Context) (int64, error) {
	if r.lease != nil {
		token, ok, err := r.lease.AcquireLease(ctx, reaperLeaseKey, r.leaseTTL)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", domain.ErrReaperFailure, err)
		}
		if !ok {
			r.logger.Debug("reaper lease held elsewhere, skipping trim")
			return 0, nil
		}
		defer func() {
			if err := r.lease.ReleaseLease(context.WithoutCancel(ctx), reaperLeaseKey, token); err != nil {
				r.logger.Warn("failed to release reaper lease", "error", err)
			}
		}()
	}

	count, err := r.history.CountHistory(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrReaperFailure, err)
	}
	if count <= r.threshold {
		return 0, nil
	}

	deleted, err := r.history.DeleteOldestHistory(ctx, r.batch)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrReaperFailure, err)
	}

	r.metrics.ReaperTrimmed.Add(ctx, deleted)
	r.logger.Info("trimmed history", "rows_before", count, "deleted", deleted)
	return deleted, nil
}

func (r *Reaper) trimAndLog(ctx context.Context) {
	if _, err := r.Trim(ctx); err != nil {
		r.metrics.ReaperFailures.Add(ctx, 1)
		r.logger.Error("failed to trim history", "error", err)
	}
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rl1809/item-ledger/internal/core/domain"
	"github.com/rl1809/item-ledger/internal/port"
	"github.com/rl1809/item-ledger/internal/telemetry"
)

// AuditTrail appends one history entry per balance change.
type AuditTrail struct {
	history port.HistoryRepository
	logger  *slog.Logger
	metrics *telemetry.Metrics
	clock   func() time.Time
}

func NewAuditTrail(history port.HistoryRepository, opts Options) *AuditTrail {
	opts = opts.withDefaults()
	return &AuditTrail{
		history: history,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		clock:   opts.Clock,
	}
}

// Record inserts an entry stamped with the current second and reports whether
// exactly one row was written. Failures are surfaced as anomalies in logs and
// metrics; they never reach the caller.
func (a *AuditTrail) Record(ctx context.Context, owner, itemCode string, delta, runningTotal int64, reason string) bool {
	if reason == "" {
		reason = domain.DefaultReason
	}

	entry := domain.HistoryEntry{
		Owner:        owner,
		ItemCode:     itemCode,
		Change:       delta,
		RunningTotal: runningTotal,
		Reason:       reason,
		OccurredAt:   a.clock().Unix(),
	}

	rows, err := a.history.InsertHistory(ctx, entry)
	if err != nil {
		a.Anomaly(ctx, fmt.Errorf("%w: %w", domain.ErrAuditAnomaly, err), entry)
		return false
	}
	if rows != 1 {
		a.Anomaly(ctx, fmt.Errorf("%w: inserted %d rows", domain.ErrAuditAnomaly, rows), entry)
		return false
	}

	return true
}

// Anomaly reports a history entry that could not be written.
func (a *AuditTrail) Anomaly(ctx context.Context, err error, entry domain.HistoryEntry) {
	a.metrics.AuditAnomalies.Add(ctx, 1)
	a.logger.Error("history entry not recorded",
		"owner", entry.Owner,
		"item_code", entry.ItemCode,
		"change", entry.Change,
		"running_total", entry.RunningTotal,
		"reason", entry.Reason,
		"error", err,
	)
}

func (a *AuditTrail) RowCount(ctx context.Context) (int64, error) {
	count, err := a.history.CountHistory(ctx)
	if err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}

// List returns entries newest first.
func (a *AuditTrail) List(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryEntry, error) {
	if filter.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", domain.ErrInvalidArgument)
	}

	entries, err := a.history.ListHistory(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

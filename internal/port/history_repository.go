package port

import (
	"context"

	"github.com/rl1809/item-ledger/internal/core/domain"
)

type HistoryRepository interface {
	// InsertHistory appends one entry and reports the rows affected
	InsertHistory(ctx context.Context, entry domain.HistoryEntry) (int64, error)

	// CountHistory returns the number of stored entries
	CountHistory(ctx context.Context) (int64, error)

	// DeleteOldestHistory removes up to limit entries, oldest first
	DeleteOldestHistory(ctx context.Context, limit int) (int64, error)

	// ListHistory returns entries newest first
	ListHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryEntry, error)
}

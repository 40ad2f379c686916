package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/item-ledger/internal/core/domain"
)

func TestAuditTrail_Record(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	ok := env.audit.Record(ctx, "U1", "ORE", -4, 6, "craft")
	assert.True(t, ok)

	count, err := env.audit.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	entries := env.history(t)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.HistoryEntry{
		ID:           entries[0].ID,
		Owner:        "U1",
		ItemCode:     "ORE",
		Change:       -4,
		RunningTotal: 6,
		Reason:       "craft",
		OccurredAt:   testEpoch,
	}, entries[0])
}

func TestAuditTrail_RowMismatchIsAnomaly(t *testing.T) {
	store := newSQLiteStore(t)
	opts, reader := newTestOptions(t)
	audit := NewAuditTrail(&faultyHistory{HistoryRepository: store, insertRows: 2}, opts)

	ok := audit.Record(context.Background(), "U1", "ORE", 1, 1, "reward")
	assert.False(t, ok)
	assert.Equal(t, int64(1), counterValue(t, reader, "itemledger.audit.anomalies"))
}

func TestAuditTrail_ListRejectsNegativeLimit(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	_, err := env.audit.List(context.Background(), domain.HistoryFilter{Limit: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

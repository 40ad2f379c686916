package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_SignalTriggersTrim(t *testing.T) {
	store := newSQLiteStore(t)
	opts, _ := newTestOptions(t)
	seedHistory(t, store, 300)

	sweeper, err := NewSweeper(NewReaper(store, ReaperConfig{Rand: always}, opts), SweeperConfig{}, opts)
	require.NoError(t, err)

	sweeper.Start(context.Background())
	defer sweeper.Stop()

	assert.True(t, sweeper.Signal())

	require.Eventually(t, func() bool {
		count, err := store.CountHistory(context.Background())
		return err == nil && count == 200
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSweeper_SignalNeverBlocks(t *testing.T) {
	store := newSQLiteStore(t)
	opts, _ := newTestOptions(t)

	sweeper, err := NewSweeper(NewReaper(store, ReaperConfig{}, opts), SweeperConfig{QueueSize: 1}, opts)
	require.NoError(t, err)

	// Not started: the first signal fills the queue, the second is dropped.
	assert.True(t, sweeper.Signal())
	assert.False(t, sweeper.Signal())
}

func TestSweeper_BackgroundModeThroughLedger(t *testing.T) {
	store := newSQLiteStore(t)
	opts, _ := newTestOptions(t)
	seedHistory(t, store, 260)

	sweeper, err := NewSweeper(NewReaper(store, ReaperConfig{Rand: always}, opts), SweeperConfig{}, opts)
	require.NoError(t, err)
	ledger := NewLedgerService(store, NewSupplyQuery(store), NewAuditTrail(store, opts), sweeper, opts)

	sweeper.Start(context.Background())
	defer sweeper.Stop()

	_, err = ledger.Add(context.Background(), "U1", "ORE", 1, "reward")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		count, err := store.CountHistory(context.Background())
		return err == nil && count == 161
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSweeper_Schedule(t *testing.T) {
	store := newSQLiteStore(t)
	opts, _ := newTestOptions(t)
	seedHistory(t, store, 300)

	sweeper, err := NewSweeper(NewReaper(store, ReaperConfig{}, opts), SweeperConfig{Schedule: "@every 1s"}, opts)
	require.NoError(t, err)

	sweeper.Start(context.Background())
	defer sweeper.Stop()

	require.Eventually(t, func() bool {
		count, err := store.CountHistory(context.Background())
		return err == nil && count <= 250
	}, 5*time.Second, 50*time.Millisecond)
}

func TestSweeper_InvalidSchedule(t *testing.T) {
	opts, _ := newTestOptions(t)

	_, err := NewSweeper(NewReaper(newSQLiteStore(t), ReaperConfig{}, opts), SweeperConfig{Schedule: "not a schedule"}, opts)
	assert.Error(t, err)
}

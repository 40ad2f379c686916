package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/rl1809/item-ledger/internal/adapter/storage"
	"github.com/rl1809/item-ledger/internal/core/domain"
	"github.com/rl1809/item-ledger/internal/port"
	"github.com/rl1809/item-ledger/internal/telemetry"
)

const testEpoch = int64(1_700_000_000)

type testEnv struct {
	store   *storage.SQLAdapter
	ledger  *LedgerService
	audit   *AuditTrail
	reader  *sdkmetric.ManualReader
	options Options
}

func newTestOptions(t *testing.T) (Options, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { mp.Shutdown(context.Background()) })

	metrics, err := telemetry.NewMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return Options{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: metrics,
		Clock:   func() time.Time { return time.Unix(testEpoch, 0) },
	}, reader
}

func newSQLiteStore(t *testing.T) *storage.SQLAdapter {
	t.Helper()

	ctx := context.Background()
	store, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.DB().Close() })
	require.NoError(t, store.Migrate(ctx))
	return store
}

// newTestEnv wires a ledger over SQLite. history may wrap the store to inject
// faults; nil uses the store directly.
func newTestEnv(t *testing.T, history port.HistoryRepository, housekeeper Housekeeper) *testEnv {
	t.Helper()

	store := newSQLiteStore(t)
	opts, reader := newTestOptions(t)
	if history == nil {
		history = store
	}

	audit := NewAuditTrail(history, opts)
	ledger := NewLedgerService(store, NewSupplyQuery(store), audit, housekeeper, opts)

	return &testEnv{store: store, ledger: ledger, audit: audit, reader: reader, options: opts}
}

func (e *testEnv) history(t *testing.T) []domain.HistoryEntry {
	t.Helper()
	entries, err := e.store.ListHistory(context.Background(), domain.HistoryFilter{Limit: 500})
	require.NoError(t, err)
	return entries
}

func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

// faultyHistory wraps a real history repository and overrides inserts.
type faultyHistory struct {
	port.HistoryRepository
	insertErr  error
	insertRows int64
	countErr   error
	deleteErr  error
}

func (f *faultyHistory) InsertHistory(ctx context.Context, e domain.HistoryEntry) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	if f.insertRows != 1 {
		return f.insertRows, nil
	}
	return f.HistoryRepository.InsertHistory(ctx, e)
}

func (f *faultyHistory) CountHistory(ctx context.Context) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.HistoryRepository.CountHistory(ctx)
}

func (f *faultyHistory) DeleteOldestHistory(ctx context.Context, limit int) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return f.HistoryRepository.DeleteOldestHistory(ctx, limit)
}

// mockLease is an in-process lease store.
type mockLease struct {
	mu       sync.Mutex
	held     map[string]string
	acquired int
	released int
}

func newMockLease() *mockLease {
	return &mockLease{held: make(map[string]string)}
}

func (m *mockLease) AcquireLease(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.held[key]; ok {
		return "", false, nil
	}
	m.acquired++
	token := key + "-token"
	m.held[key] = token
	return token, true, nil
}

func (m *mockLease) ReleaseLease(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held[key] == token {
		delete(m.held, key)
		m.released++
	}
	return nil
}

func seedHistory(t *testing.T, store *storage.SQLAdapter, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, err := store.InsertHistory(ctx, domain.HistoryEntry{
			Owner: "seed", ItemCode: "ORE", Change: 1, RunningTotal: int64(i + 1), Reason: "seed", OccurredAt: testEpoch + int64(i),
		})
		require.NoError(t, err)
	}
}

func always() float64 { return 0 }

func never() float64 { return 0.99 }

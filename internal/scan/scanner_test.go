package scan

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Jpatching/ghostprotocol/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScanner(t *testing.T) (*SimulatedScanner, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return NewSimulatedScanner(st, zap.NewNop()), st
}

func TestScanSeedsOnce(t *testing.T) {
	scanner, st := newTestScanner(t)
	ctx := context.Background()

	result, err := scanner.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(len(detectedSubscriptions)), result.SubscriptionsFound)
	require.Greater(t, result.TotalMonthly, 0.0)
	require.InDelta(t, result.TotalMonthly*12, result.TotalAnnual, 0.001)

	// A second scan recomputes totals without duplicating rows
	result2, err := scanner.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, result.SubscriptionsFound, result2.SubscriptionsFound)

	count, err := st.CountSubscriptions(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(len(detectedSubscriptions)), count)
}

func TestScanCountsOnlyActive(t *testing.T) {
	scanner, st := newTestScanner(t)
	ctx := context.Background()

	first, err := scanner.Scan(ctx)
	require.NoError(t, err)

	subs, err := st.ActiveSubscriptions(ctx)
	require.NoError(t, err)
	require.NoError(t, st.PutCancellationReceipt(ctx, subs[0].ID, nil))

	second, err := scanner.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, first.SubscriptionsFound-1, second.SubscriptionsFound)
	require.InDelta(t, first.TotalMonthly-subs[0].Amount, second.TotalMonthly, 0.001)
}

func TestScanRecordsActivity(t *testing.T) {
	scanner, st := newTestScanner(t)
	ctx := context.Background()

	_, err := scanner.Scan(ctx)
	require.NoError(t, err)

	entries, err := st.Activities(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	require.Equal(t, "scan_completed", entries[0].Action)
}

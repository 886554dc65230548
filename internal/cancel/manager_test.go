package cancel

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestManagerStartAndGet(t *testing.T) {
	lc := &fakeLedger{balance: 5_000_000}
	m := NewManager(testDeps(t, lc, &fakeGenerator{}, &fakeReceipts{}))

	p := m.Start(testIntent())
	got, err := m.Get(p.ID())
	require.NoError(t, err)
	require.Equal(t, p, got)

	_, err = m.Get(uuid.New())
	require.ErrorIs(t, err, ErrRunNotFound)

	// Begin runs in the background; the run settles in review
	require.Eventually(t, func() bool {
		return p.State() == StateReview
	}, 5*time.Second, 10*time.Millisecond)
}

func TestManagerConfirmRequiresReview(t *testing.T) {
	lc := &fakeLedger{balance: 5_000_000}
	m := NewManager(testDeps(t, lc, &fakeGenerator{}, &fakeReceipts{}))

	p := m.Start(testIntent())
	require.Eventually(t, func() bool {
		return p.State() == StateReview
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Confirm(p.ID()))
	// Key derivation on first identity use is deliberately slow
	require.Eventually(t, func() bool {
		return p.State() == StateDone
	}, 30*time.Second, 50*time.Millisecond)

	// Done runs cannot be re-confirmed
	require.ErrorIs(t, m.Confirm(p.ID()), ErrInvalidTransition)
}

func TestManagerSkip(t *testing.T) {
	lc := &fakeLedger{balance: 5_000_000}
	receipts := &fakeReceipts{}
	m := NewManager(testDeps(t, lc, &fakeGenerator{}, receipts))

	p := m.Start(testIntent())
	require.Eventually(t, func() bool {
		return p.State() == StateReview
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Skip(context.Background(), p.ID()))
	require.Equal(t, StateDone, p.State())
	require.Zero(t, lc.broadcastCalls)
}

package wallet

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Jpatching/ghostprotocol/internal/ledger"
	"github.com/Jpatching/ghostprotocol/internal/model"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubLedger struct {
	mu sync.Mutex

	balance    uint64
	balanceErr error
	airdropErr error
	awaitErr   error

	balanceCalls int
	airdropCalls int
}

func (s *stubLedger) Balance(_ context.Context, _ solana.PublicKey) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balanceCalls++
	return s.balance, s.balanceErr
}

func (s *stubLedger) RequestTestFunds(_ context.Context, _ solana.PublicKey, _ uint64) (solana.Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.airdropCalls++
	if s.airdropErr != nil {
		return solana.Signature{}, s.airdropErr
	}
	return solana.Signature{7}, nil
}

func (s *stubLedger) RecentBlockReference(_ context.Context) (solana.Hash, error) {
	return solana.Hash{}, nil
}

func (s *stubLedger) Broadcast(_ context.Context, _ *solana.Transaction) (solana.Signature, error) {
	return solana.Signature{}, nil
}

func (s *stubLedger) AwaitConfirmation(_ context.Context, _ solana.Signature, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaitErr
}

func (s *stubLedger) IsConfirmed(_ context.Context, _ solana.Signature) (bool, error) {
	return true, nil
}

func newTestSession(t *testing.T, lc ledger.Client) *Session {
	t.Helper()
	ks := NewKeystore(filepath.Join(t.TempDir(), "identity.gid"), []byte("test-pass"), zap.NewNop())
	return NewSession(ks, lc, time.Second, zap.NewNop())
}

func TestSessionConnect(t *testing.T) {
	lc := &stubLedger{balance: 1_500_000_000}
	s := newTestSession(t, lc)

	require.Equal(t, model.WalletDisconnected, s.Snapshot().Status)

	require.NoError(t, s.Connect(context.Background()))

	view := s.Snapshot()
	require.Equal(t, model.WalletConnected, view.Status)
	require.NotEmpty(t, view.Address)
	require.NotNil(t, view.BalanceSOL)
	require.Equal(t, "1.500000000", *view.BalanceSOL)
	require.Empty(t, view.Error)
}

// gatedLedger blocks inside Balance so a test can hold a connect mid-flight
type gatedLedger struct {
	stubLedger
	started chan struct{}
	release chan struct{}
}

func (g *gatedLedger) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	g.started <- struct{}{}
	<-g.release
	return g.stubLedger.Balance(ctx, account)
}

func TestSessionConnectCoalescesConcurrentCalls(t *testing.T) {
	lc := &gatedLedger{
		stubLedger: stubLedger{balance: 1_000_000_000},
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	s := newTestSession(t, lc)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Connect(context.Background()) }()
	<-lc.started

	// The first connect is mid-flight: a second call is a no-op and must not
	// trigger another identity load or balance query
	require.NoError(t, s.Connect(context.Background()))
	require.Equal(t, model.WalletConnecting, s.Snapshot().Status)

	close(lc.release)
	require.NoError(t, <-errCh)

	lc.mu.Lock()
	balanceCalls := lc.balanceCalls
	lc.mu.Unlock()
	require.Equal(t, 1, balanceCalls)
	require.Equal(t, model.WalletConnected, s.Snapshot().Status)
}

func TestSessionConnectBalanceFailure(t *testing.T) {
	lc := &stubLedger{balanceErr: ledger.ErrNetwork}
	s := newTestSession(t, lc)

	require.Error(t, s.Connect(context.Background()))

	view := s.Snapshot()
	require.Equal(t, model.WalletError, view.Status)
	require.NotEmpty(t, view.Error)
	require.Nil(t, view.BalanceSOL)
}

func TestSessionAirdropRequiresConnection(t *testing.T) {
	s := newTestSession(t, &stubLedger{})

	_, err := s.RequestAirdrop(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)

	err = s.RefreshBalance(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSessionAirdrop(t *testing.T) {
	lc := &stubLedger{balance: 100}
	s := newTestSession(t, lc)
	require.NoError(t, s.Connect(context.Background()))

	lc.mu.Lock()
	lc.balance = 1_000_000_100
	lc.mu.Unlock()

	resp, err := s.RequestAirdrop(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, resp.TxID)
	require.Equal(t, "1.000000100", resp.BalanceSOL)

	view := s.Snapshot()
	require.Equal(t, "1.000000100", *view.BalanceSOL)
}

func TestSessionAirdropFailureKeepsBalance(t *testing.T) {
	lc := &stubLedger{balance: 100}
	s := newTestSession(t, lc)
	require.NoError(t, s.Connect(context.Background()))

	lc.mu.Lock()
	lc.awaitErr = ledger.ErrConfirmationTimeout
	lc.mu.Unlock()

	_, err := s.RequestAirdrop(context.Background())
	require.ErrorIs(t, err, ledger.ErrConfirmationTimeout)

	// Still connected, cached balance untouched
	view := s.Snapshot()
	require.Equal(t, model.WalletConnected, view.Status)
	require.Equal(t, "0.000000100", *view.BalanceSOL)
}

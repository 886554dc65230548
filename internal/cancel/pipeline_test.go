package cancel

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Jpatching/ghostprotocol/internal/ledger"
	"github.com/Jpatching/ghostprotocol/internal/model"
	"github.com/Jpatching/ghostprotocol/internal/wallet"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLedger struct {
	mu sync.Mutex

	balance    uint64
	balanceErr error

	broadcastErr error
	awaitErr     error

	confirmed    bool
	confirmedErr error

	balanceCalls     int
	blockhashCalls   int
	broadcastCalls   int
	awaitCalls       int
	isConfirmedCalls int
}

func (f *fakeLedger) Balance(_ context.Context, _ solana.PublicKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceCalls++
	return f.balance, f.balanceErr
}

func (f *fakeLedger) RequestTestFunds(_ context.Context, _ solana.PublicKey, _ uint64) (solana.Signature, error) {
	return solana.Signature{}, nil
}

func (f *fakeLedger) RecentBlockReference(_ context.Context) (solana.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockhashCalls++
	return solana.Hash{1}, nil
}

func (f *fakeLedger) Broadcast(_ context.Context, _ *solana.Transaction) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcastCalls++
	if f.broadcastErr != nil {
		return solana.Signature{}, f.broadcastErr
	}
	return solana.Signature{2}, nil
}

func (f *fakeLedger) AwaitConfirmation(_ context.Context, _ solana.Signature, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.awaitCalls++
	return f.awaitErr
}

func (f *fakeLedger) IsConfirmed(_ context.Context, _ solana.Signature) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isConfirmedCalls++
	return f.confirmed, f.confirmedErr
}

type fakeReceipts struct {
	mu   sync.Mutex
	err  error
	puts []receiptPut
}

type receiptPut struct {
	subscriptionID int64
	txSignature    *string
}

func (f *fakeReceipts) PutCancellationReceipt(_ context.Context, subscriptionID int64, txSignature *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.puts = append(f.puts, receiptPut{subscriptionID: subscriptionID, txSignature: txSignature})
	return nil
}

type fakeActivity struct {
	mu      sync.Mutex
	entries int
}

func (f *fakeActivity) AppendActivity(_ context.Context, _, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries++
	return nil
}

type fakeGenerator struct {
	err   error
	calls int
}

func (f *fakeGenerator) GenerateCancellationDraft(_ context.Context, name, _ string, _ float64) (model.Draft, error) {
	f.calls++
	if f.err != nil {
		return model.Draft{}, f.err
	}
	return model.Draft{Subject: "Cancellation Request - " + name, Body: "please cancel"}, nil
}

func testIntent() Intent {
	return Intent{
		SubscriptionID: 42,
		Name:           "Netflix Premium",
		Amount:         22.99,
		Merchant:       "Netflix Inc.",
		RequestedAt:    time.Now(),
	}
}

func testDeps(t *testing.T, lc ledger.Client, gen Generator, receipts ReceiptStore) Deps {
	t.Helper()
	ks := wallet.NewKeystore(filepath.Join(t.TempDir(), "identity.gid"), []byte("test-pass"), zap.NewNop())
	return Deps{
		Generator:      gen,
		Keystore:       ks,
		Ledger:         lc,
		Receipts:       receipts,
		Activity:       &fakeActivity{},
		ConfirmTimeout: time.Second,
		Log:            zap.NewNop(),
	}
}

func TestPipelineHappyPath(t *testing.T) {
	lc := &fakeLedger{balance: 5_000_000}
	receipts := &fakeReceipts{}
	p := New(testIntent(), testDeps(t, lc, &fakeGenerator{}, receipts))

	require.NoError(t, p.Begin(context.Background()))
	require.Equal(t, StateReview, p.State())

	view := p.View()
	require.NotNil(t, view.Draft)
	require.Equal(t, "Cancellation Request - Netflix Premium", view.Draft.Subject)

	require.NoError(t, p.ConfirmAndSign(context.Background()))
	require.Equal(t, StateDone, p.State())

	require.Equal(t,
		[]Phase{PhaseIdentityLoad, PhaseBalanceCheck, PhaseSign, PhaseBroadcastConfirm},
		p.Phases())

	require.Len(t, receipts.puts, 1)
	require.Equal(t, int64(42), receipts.puts[0].subscriptionID)
	require.NotNil(t, receipts.puts[0].txSignature)

	view = p.View()
	require.NotNil(t, view.TxSignature)
	require.Empty(t, view.Error)
}

func TestPipelineDraftGenerationFailure(t *testing.T) {
	lc := &fakeLedger{balance: 5_000_000}
	p := New(testIntent(), testDeps(t, lc, &fakeGenerator{err: errors.New("api down")}, &fakeReceipts{}))

	require.Error(t, p.Begin(context.Background()))
	require.Equal(t, StateError, p.State())
	require.Equal(t, "DraftGenerationFailed", p.View().ErrorKind)
}

func TestPipelineInsufficientFunds(t *testing.T) {
	lc := &fakeLedger{balance: 0}
	receipts := &fakeReceipts{}
	p := New(testIntent(), testDeps(t, lc, &fakeGenerator{}, receipts))

	require.NoError(t, p.Begin(context.Background()))

	err := p.ConfirmAndSign(context.Background())
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, StateError, p.State())
	require.Equal(t, "InsufficientFunds", p.View().ErrorKind)

	// Never reached broadcast, nothing persisted
	require.Zero(t, lc.broadcastCalls)
	require.Empty(t, receipts.puts)
}

func TestPipelineSkipOnChainProof(t *testing.T) {
	lc := &fakeLedger{balance: 5_000_000}
	receipts := &fakeReceipts{}
	p := New(testIntent(), testDeps(t, lc, &fakeGenerator{}, receipts))

	require.NoError(t, p.Begin(context.Background()))
	require.NoError(t, p.SkipOnChainProof(context.Background()))
	require.Equal(t, StateDone, p.State())

	// The skip path never touches the ledger
	require.Zero(t, lc.balanceCalls)
	require.Zero(t, lc.blockhashCalls)
	require.Zero(t, lc.broadcastCalls)
	require.Zero(t, lc.awaitCalls)

	require.Len(t, receipts.puts, 1)
	require.Nil(t, receipts.puts[0].txSignature)
	require.Nil(t, p.View().TxSignature)
}

func TestPipelineRetryKeepsDraft(t *testing.T) {
	lc := &fakeLedger{balance: 5_000_000, balanceErr: ledger.ErrNetwork}
	gen := &fakeGenerator{}
	p := New(testIntent(), testDeps(t, lc, gen, &fakeReceipts{}))

	require.NoError(t, p.Begin(context.Background()))
	require.Error(t, p.ConfirmAndSign(context.Background()))
	require.Equal(t, StateError, p.State())
	require.Equal(t, "NetworkError", p.View().ErrorKind)

	require.NoError(t, p.Retry())
	require.Equal(t, StateReview, p.State())

	// The draft from generating is kept, never re-requested
	require.Equal(t, 1, gen.calls)
	view := p.View()
	require.NotNil(t, view.Draft)
	require.Empty(t, view.Error)
	require.Empty(t, view.ErrorKind)
}

func TestPipelineConfirmationTimeout(t *testing.T) {
	lc := &fakeLedger{balance: 5_000_000, awaitErr: ledger.ErrConfirmationTimeout}
	receipts := &fakeReceipts{}
	p := New(testIntent(), testDeps(t, lc, &fakeGenerator{}, receipts))

	require.NoError(t, p.Begin(context.Background()))

	err := p.ConfirmAndSign(context.Background())
	require.ErrorIs(t, err, ledger.ErrConfirmationTimeout)
	require.Equal(t, "ConfirmationTimeout", p.View().ErrorKind)

	// Confirmation never observed: no receipt
	require.Empty(t, receipts.puts)
}

func TestPipelineRetryAfterTimeoutReconciles(t *testing.T) {
	lc := &fakeLedger{balance: 5_000_000, awaitErr: ledger.ErrConfirmationTimeout}
	receipts := &fakeReceipts{}
	p := New(testIntent(), testDeps(t, lc, &fakeGenerator{}, receipts))

	require.NoError(t, p.Begin(context.Background()))
	require.Error(t, p.ConfirmAndSign(context.Background()))
	require.Equal(t, 1, lc.broadcastCalls)

	// The broadcast landed after the timeout
	lc.mu.Lock()
	lc.confirmed = true
	lc.mu.Unlock()

	require.NoError(t, p.Retry())
	require.NoError(t, p.ConfirmAndSign(context.Background()))
	require.Equal(t, StateDone, p.State())

	// Reconciled against the prior signature instead of broadcasting again
	require.Equal(t, 1, lc.broadcastCalls)
	require.Len(t, receipts.puts, 1)
	require.NotNil(t, receipts.puts[0].txSignature)
}

func TestPipelineReconciliationFailureSurfaces(t *testing.T) {
	lc := &fakeLedger{balance: 5_000_000, awaitErr: ledger.ErrConfirmationTimeout}
	receipts := &fakeReceipts{}
	p := New(testIntent(), testDeps(t, lc, &fakeGenerator{}, receipts))

	require.NoError(t, p.Begin(context.Background()))
	require.Error(t, p.ConfirmAndSign(context.Background()))
	require.Equal(t, 1, lc.broadcastCalls)

	// Chain unreachable: whether the prior broadcast landed is unknown, so a
	// fresh broadcast could duplicate the proof. The retry must fail instead.
	lc.mu.Lock()
	lc.confirmedErr = ledger.ErrNetwork
	lc.mu.Unlock()

	require.NoError(t, p.Retry())
	err := p.ConfirmAndSign(context.Background())
	require.ErrorIs(t, err, ledger.ErrNetwork)
	require.Equal(t, "NetworkError", p.View().ErrorKind)
	require.Equal(t, 1, lc.broadcastCalls)
	require.Empty(t, receipts.puts)
}

func TestPipelineRetryAfterRejectedPriorRebroadcasts(t *testing.T) {
	lc := &fakeLedger{balance: 5_000_000, awaitErr: ledger.ErrConfirmationTimeout}
	receipts := &fakeReceipts{}
	p := New(testIntent(), testDeps(t, lc, &fakeGenerator{}, receipts))

	require.NoError(t, p.Begin(context.Background()))
	require.Error(t, p.ConfirmAndSign(context.Background()))

	// The prior transaction failed on-chain: no proof landed, a fresh
	// broadcast is safe
	lc.mu.Lock()
	lc.confirmedErr = ledger.ErrRejected
	lc.awaitErr = nil
	lc.mu.Unlock()

	require.NoError(t, p.Retry())
	require.NoError(t, p.ConfirmAndSign(context.Background()))
	require.Equal(t, StateDone, p.State())
	require.Equal(t, 2, lc.broadcastCalls)
	require.Len(t, receipts.puts, 1)
}

// gatedReceipts blocks inside PutCancellationReceipt so a test can hold a
// finishing run mid-flight
type gatedReceipts struct {
	fakeReceipts
	started chan struct{}
	release chan struct{}
}

func (g *gatedReceipts) PutCancellationReceipt(ctx context.Context, subscriptionID int64, txSignature *string) error {
	g.started <- struct{}{}
	<-g.release
	return g.fakeReceipts.PutCancellationReceipt(ctx, subscriptionID, txSignature)
}

func TestPipelineSkipGateIsAtomic(t *testing.T) {
	lc := &fakeLedger{balance: 5_000_000}
	receipts := &gatedReceipts{started: make(chan struct{}), release: make(chan struct{})}
	p := New(testIntent(), testDeps(t, lc, &fakeGenerator{}, receipts))

	require.NoError(t, p.Begin(context.Background()))

	errCh := make(chan error, 1)
	go func() { errCh <- p.SkipOnChainProof(context.Background()) }()
	<-receipts.started

	// The first skip left review before releasing the lock: a concurrent
	// skip or confirm cannot pass the gate too
	require.ErrorIs(t, p.SkipOnChainProof(context.Background()), ErrInvalidTransition)
	require.ErrorIs(t, p.ConfirmAndSign(context.Background()), ErrInvalidTransition)

	close(receipts.release)
	require.NoError(t, <-errCh)
	require.Equal(t, StateDone, p.State())
	require.Len(t, receipts.puts, 1)
	require.Nil(t, receipts.puts[0].txSignature)
}

func TestPipelinePersistenceFailureSurfacesSignature(t *testing.T) {
	lc := &fakeLedger{balance: 5_000_000}
	receipts := &fakeReceipts{err: errors.New("disk full")}
	p := New(testIntent(), testDeps(t, lc, &fakeGenerator{}, receipts))

	require.NoError(t, p.Begin(context.Background()))

	err := p.ConfirmAndSign(context.Background())
	require.ErrorIs(t, err, ErrReceiptPersistence)
	require.Equal(t, "PersistenceError", p.View().ErrorKind)

	// The chain state already changed: the confirmed signature must not be lost
	sig := solana.Signature{2}
	require.Contains(t, err.Error(), sig.String())
}

func TestPipelineInvalidTransitions(t *testing.T) {
	lc := &fakeLedger{balance: 5_000_000}
	p := New(testIntent(), testDeps(t, lc, &fakeGenerator{}, &fakeReceipts{}))

	// Signing and skipping require review
	require.ErrorIs(t, p.ConfirmAndSign(context.Background()), ErrInvalidTransition)
	require.ErrorIs(t, p.SkipOnChainProof(context.Background()), ErrInvalidTransition)

	require.NoError(t, p.Begin(context.Background()))
	require.ErrorIs(t, p.Begin(context.Background()), ErrInvalidTransition)

	// Retry and abandon require error
	require.ErrorIs(t, p.Retry(), ErrInvalidTransition)
	require.ErrorIs(t, p.Abandon(), ErrInvalidTransition)
}

func TestPipelineAbandon(t *testing.T) {
	lc := &fakeLedger{balance: 0}
	receipts := &fakeReceipts{}
	p := New(testIntent(), testDeps(t, lc, &fakeGenerator{}, receipts))

	require.NoError(t, p.Begin(context.Background()))
	require.Error(t, p.ConfirmAndSign(context.Background()))

	require.NoError(t, p.Abandon())
	require.Equal(t, StateDone, p.State())
	require.Empty(t, receipts.puts)
}

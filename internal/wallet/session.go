package wallet

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Jpatching/ghostprotocol/internal/common"
	"github.com/Jpatching/ghostprotocol/internal/ledger"
	"github.com/Jpatching/ghostprotocol/internal/model"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// airdropLamports is the fixed devnet funding quantity (1 SOL)
const airdropLamports = solana.LAMPORTS_PER_SOL

// ErrNotConnected is returned for operations that require a connected wallet
var ErrNotConnected = errors.New("wallet is not connected")

// Session is the process-lifetime wallet connection state machine:
// disconnected -> connecting -> {connected | error}, with retry back into
// connecting from either terminal. Not persisted.
type Session struct {
	mu         sync.Mutex
	status     model.WalletStatus
	identity   *Identity
	balance    *uint64 // lamports, nil until first successful query
	lastErr    string
	connecting bool // in-flight guard, coalesces concurrent Connect calls

	keystore       *Keystore
	ledger         ledger.Client
	confirmTimeout time.Duration
	log            *zap.Logger
}

// NewSession creates a disconnected session over the given keystore and ledger.
func NewSession(ks *Keystore, lc ledger.Client, confirmTimeout time.Duration, log *zap.Logger) *Session {
	return &Session{
		status:         model.WalletDisconnected,
		keystore:       ks,
		ledger:         lc,
		confirmTimeout: confirmTimeout,
		log:            log,
	}
}

// Connect loads or creates the identity and populates the cached balance.
// A second call while a connect is already in flight is a no-op: the guard is
// what prevents two concurrent connects from racing identity creation.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.connecting {
		s.mu.Unlock()
		return nil
	}
	s.connecting = true
	s.status = model.WalletConnecting
	s.lastErr = ""
	s.mu.Unlock()

	identity, err := s.keystore.LoadOrCreate()
	if err != nil {
		s.fail(err)
		return err
	}

	balance, err := s.ledger.Balance(ctx, identity.PublicKey)
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.identity = identity
	s.balance = &balance
	s.status = model.WalletConnected
	s.connecting = false
	s.mu.Unlock()

	s.log.Info("wallet connected",
		zap.String("address", identity.PublicKey.String()),
		zap.String("balance_sol", common.LamportsToSOL(balance)))
	return nil
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.status = model.WalletError
	s.lastErr = err.Error()
	s.connecting = false
	s.mu.Unlock()
	s.log.Warn("wallet connect failed", zap.Error(err))
}

// RequestAirdrop requests devnet funds, waits for the funding transaction to
// confirm and refreshes the balance. Failures leave the session connected and
// the cached balance untouched.
func (s *Session) RequestAirdrop(ctx context.Context) (*model.AirdropResponse, error) {
	identity, err := s.connectedIdentity()
	if err != nil {
		return nil, err
	}

	sig, err := s.ledger.RequestTestFunds(ctx, identity.PublicKey, airdropLamports)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.AwaitConfirmation(ctx, sig, s.confirmTimeout); err != nil {
		return nil, err
	}

	balance, err := s.ledger.Balance(ctx, identity.PublicKey)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.balance = &balance
	s.mu.Unlock()

	s.log.Info("airdrop confirmed", zap.String("txId", sig.String()))
	return &model.AirdropResponse{
		TxID:       sig.String(),
		BalanceSOL: common.LamportsToSOL(balance),
	}, nil
}

// RefreshBalance re-queries and replaces the cached balance.
// Non-fatal on failure: the previous balance is kept.
func (s *Session) RefreshBalance(ctx context.Context) error {
	identity, err := s.connectedIdentity()
	if err != nil {
		return err
	}

	balance, err := s.ledger.Balance(ctx, identity.PublicKey)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.balance = &balance
	s.mu.Unlock()
	return nil
}

func (s *Session) connectedIdentity() (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.WalletConnected || s.identity == nil {
		return nil, ErrNotConnected
	}
	return s.identity, nil
}

// Snapshot returns the UI view of the session
func (s *Session) Snapshot() model.WalletView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := model.WalletView{
		Status: s.status,
		Error:  s.lastErr,
	}
	if s.identity != nil {
		view.Address = s.identity.PublicKey.String()
	}
	if s.balance != nil {
		sol := common.LamportsToSOL(*s.balance)
		view.BalanceSOL = &sol
	}
	return view
}

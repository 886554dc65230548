// Package ledger is the boundary to the Solana network: balance queries,
// devnet airdrops, transaction broadcast and confirmation polling.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Client is the ledger network boundary consumed by the wallet session and
// the cancellation pipeline. Implementations must be safe for concurrent use.
type Client interface {
	// Balance returns the account balance in lamports.
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)

	// RequestTestFunds asks the devnet faucet to fund the account.
	RequestTestFunds(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error)

	// RecentBlockReference returns a blockhash usable for building a transaction.
	RecentBlockReference(ctx context.Context) (solana.Hash, error)

	// Broadcast submits a signed transaction and returns its signature.
	Broadcast(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	// AwaitConfirmation polls until the signature is confirmed or the timeout
	// elapses. On timeout the transaction may still land later; callers must
	// not assume it failed.
	AwaitConfirmation(ctx context.Context, sig solana.Signature, timeout time.Duration) error

	// IsConfirmed reports whether a previously broadcast signature has been
	// observed as confirmed. Used to reconcile after a confirmation timeout.
	IsConfirmed(ctx context.Context, sig solana.Signature) (bool, error)
}

// Error kinds surfaced by ledger operations. Wrapped with fmt.Errorf("%w: ...")
// so callers classify with errors.Is.
var (
	ErrNetwork             = errors.New("ledger network error")
	ErrRateLimited         = errors.New("airdrop rate limited")
	ErrRejected            = errors.New("transaction rejected")
	ErrConfirmationTimeout = errors.New("confirmation timed out")
)

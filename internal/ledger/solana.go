package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// SolanaClient is a ledger Client backed by a Solana RPC node
type SolanaClient struct {
	rpcClient *rpc.Client
	rpcURL    string
}

var _ Client = (*SolanaClient)(nil)

// NewSolanaClient creates a new Solana ledger client for the given RPC endpoint.
func NewSolanaClient(rpcURL string) *SolanaClient {
	return &SolanaClient{
		rpcClient: rpc.New(rpcURL),
		rpcURL:    rpcURL,
	}
}

// Balance gets the SOL balance in lamports for the given account
func (c *SolanaClient) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	balance, err := c.rpcClient.GetBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get balance: %v", ErrNetwork, err)
	}
	return balance.Value, nil
}

// RequestTestFunds requests a devnet airdrop for the given account
func (c *SolanaClient) RequestTestFunds(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	sig, err := c.rpcClient.RequestAirdrop(ctx, account, lamports, rpc.CommitmentConfirmed)
	if err != nil {
		if isRateLimitError(err) {
			return solana.Signature{}, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return solana.Signature{}, fmt.Errorf("%w: failed to request airdrop: %v", ErrNetwork, err)
	}
	return sig, nil
}

// RecentBlockReference gets the latest blockhash
// (GetRecentBlockhash is deprecated, use GetLatestBlockhash)
func (c *SolanaClient) RecentBlockReference(ctx context.Context) (solana.Hash, error) {
	recent, err := c.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("%w: failed to get recent blockhash: %v", ErrNetwork, err)
	}
	return recent.Value.Blockhash, nil
}

// Broadcast sends a signed transaction
func (c *SolanaClient) Broadcast(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpcClient.SendTransactionWithOpts(
		ctx,
		tx,
		rpc.TransactionOpts{
			SkipPreflight:       false, // Transaction validation before broadcast
			PreflightCommitment: rpc.CommitmentConfirmed,
		},
	)
	if err != nil {
		if isRejectionError(err) {
			return solana.Signature{}, fmt.Errorf("%w: %v", ErrRejected, err)
		}
		return solana.Signature{}, fmt.Errorf("%w: failed to send transaction: %v", ErrNetwork, err)
	}
	return sig, nil
}

// errNotYetConfirmed marks a poll round that found the signature still pending
var errNotYetConfirmed = errors.New("not yet confirmed")

// AwaitConfirmation polls signature status with exponential backoff until the
// signature confirms, the transaction fails on-chain, or the timeout elapses.
func (c *SolanaClient) AwaitConfirmation(ctx context.Context, sig solana.Signature, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = timeout

	err := backoff.Retry(func() error {
		confirmed, err := c.IsConfirmed(waitCtx, sig)
		if err != nil {
			if errors.Is(err, ErrRejected) {
				return backoff.Permanent(err)
			}
			// Transient network errors are retried until the deadline
			return err
		}
		if !confirmed {
			return errNotYetConfirmed
		}
		return nil
	}, backoff.WithContext(bo, waitCtx))

	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRejected) {
		return err
	}
	return fmt.Errorf("%w: signature %s not confirmed within %s", ErrConfirmationTimeout, sig, timeout)
}

// IsConfirmed performs a single signature status query.
// Searches transaction history so it also resolves signatures broadcast
// before a restart.
func (c *SolanaClient) IsConfirmed(ctx context.Context, sig solana.Signature) (bool, error) {
	out, err := c.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return false, fmt.Errorf("%w: failed to get signature status: %v", ErrNetwork, err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return false, nil
	}

	status := out.Value[0]
	if status.Err != nil {
		return false, fmt.Errorf("%w: transaction failed on-chain: %v", ErrRejected, status.Err)
	}
	return status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		status.ConfirmationStatus == rpc.ConfirmationStatusFinalized, nil
}

// isRateLimitError checks if error indicates the devnet faucet throttled us
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate") ||
		strings.Contains(errStr, "airdrop limit")
}

// isRejectionError checks if error indicates the node refused the transaction
// (malformed payload, stale blockhash, failed preflight)
func isRejectionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "simulation failed") ||
		strings.Contains(errStr, "blockhash not found") ||
		strings.Contains(errStr, "invalid") ||
		strings.Contains(errStr, "rejected")
}

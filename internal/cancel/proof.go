package cancel

import (
	"encoding/json"
	"time"

	"github.com/gagliardetto/solana-go"
)

const (
	// SPL Memo v2 program, carries the proof record on-chain
	memoProgramAddress = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"

	// Provenance tag embedded in every proof record
	provenanceAgent = "ghost-protocol"

	actionCancelSubscription = "cancel_subscription"

	// minBalanceLamports is the fee floor for signing a proof transaction
	// (0.001 SOL). Independent of the subscription's dollar amount: the two
	// are unrelated units.
	minBalanceLamports = 1_000_000
)

var memoProgramID = solana.MustPublicKeyFromBase58(memoProgramAddress)

// proofRecord is the structured payload embedded in the memo instruction.
// Field order is fixed, so json.Marshal serializes it deterministically.
type proofRecord struct {
	Action       string  `json:"action"`
	Subscription string  `json:"subscription"`
	Amount       float64 `json:"amount"`
	Merchant     string  `json:"merchant"`
	Timestamp    string  `json:"timestamp"`
	Agent        string  `json:"agent"`
}

// proofPayload serializes the proof-of-cancellation record for the intent
func proofPayload(intent Intent, at time.Time) ([]byte, error) {
	return json.Marshal(proofRecord{
		Action:       actionCancelSubscription,
		Subscription: intent.Name,
		Amount:       intent.Amount,
		Merchant:     intent.Merchant,
		Timestamp:    at.Format(time.RFC3339),
		Agent:        provenanceAgent,
	})
}

// buildProofTransaction wraps the payload in a memo instruction signed and
// paid for by the identity
func buildProofTransaction(payload []byte, signer solana.PublicKey, blockhash solana.Hash) (*solana.Transaction, error) {
	memoInstruction := solana.NewInstruction(
		memoProgramID,
		solana.AccountMetaSlice{solana.NewAccountMeta(signer, true, true)},
		payload,
	)

	return solana.NewTransaction(
		[]solana.Instruction{memoInstruction},
		blockhash,
		solana.TransactionPayer(signer),
	)
}

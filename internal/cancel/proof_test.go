package cancel

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestProofPayload(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	payload, err := proofPayload(testIntent(), at)
	require.NoError(t, err)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &record))
	require.Equal(t, "cancel_subscription", record["action"])
	require.Equal(t, "Netflix Premium", record["subscription"])
	require.Equal(t, 22.99, record["amount"])
	require.Equal(t, "Netflix Inc.", record["merchant"])
	require.Equal(t, "2025-06-01T12:30:00Z", record["timestamp"])
	require.Equal(t, "ghost-protocol", record["agent"])
}

func TestBuildProofTransaction(t *testing.T) {
	signer := solana.NewWallet().PublicKey()
	payload := []byte(`{"action":"cancel_subscription"}`)

	tx, err := buildProofTransaction(payload, signer, solana.Hash{1})
	require.NoError(t, err)
	require.Len(t, tx.Message.Instructions, 1)

	// Fee payer and signer is the identity
	require.Equal(t, signer, tx.Message.AccountKeys[0])

	instr := tx.Message.Instructions[0]
	require.Equal(t, memoProgramID, tx.Message.AccountKeys[instr.ProgramIDIndex])
	require.Equal(t, payload, []byte(instr.Data))
}

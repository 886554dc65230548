package model

// WalletStatus is the connection status exposed to the UI
type WalletStatus string

const (
	WalletDisconnected WalletStatus = "disconnected"
	WalletConnecting   WalletStatus = "connecting"
	WalletConnected    WalletStatus = "connected"
	WalletError        WalletStatus = "error"
)

// WalletView represents response for GET /wallet
type WalletView struct {
	Status     WalletStatus `json:"status"`
	Address    string       `json:"address,omitempty"`
	BalanceSOL *string      `json:"balance_sol,omitempty"` // nil until the first successful query
	Error      string       `json:"error,omitempty"`
}

// AirdropResponse represents response for POST /wallet/airdrop
type AirdropResponse struct {
	TxID       string `json:"txId"`
	BalanceSOL string `json:"balance_sol"`
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Jpatching/ghostprotocol/internal/common"
	"github.com/Jpatching/ghostprotocol/internal/ledger"
	"github.com/Jpatching/ghostprotocol/internal/model"
	"github.com/Jpatching/ghostprotocol/internal/wallet"
)

// activityRecorder is the slice of the store the wallet handler needs
type activityRecorder interface {
	AppendActivity(ctx context.Context, action, detail string, at time.Time) error
}

// WalletHandler serves the wallet connection endpoints
type WalletHandler struct {
	session  *wallet.Session
	activity activityRecorder
}

// NewWalletHandler creates a handler over the process wallet session
func NewWalletHandler(session *wallet.Session, activity activityRecorder) *WalletHandler {
	return &WalletHandler{session: session, activity: activity}
}

// Get handles GET /wallet
// @Summary      Wallet status
// @Description  Gets connection status, address and cached balance
// @Tags         wallet
// @Produce      json
// @Success      200  {object}  model.WalletView
// @Router       /wallet [get]
func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

// Connect handles POST /wallet/connect
// @Summary      Connect wallet
// @Description  Loads or creates the identity and refreshes the balance. A call while a connect is in flight is a no-op.
// @Tags         wallet
// @Produce      json
// @Success      200  {object}  model.WalletView
// @Router       /wallet/connect [post]
func (h *WalletHandler) Connect(w http.ResponseWriter, r *http.Request) {
	// Failures are captured in the session state; the snapshot carries them
	h.session.Connect(r.Context()) //nolint:errcheck
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

// Airdrop handles POST /wallet/airdrop
// @Summary      Request devnet airdrop
// @Description  Requests 1 SOL of test funds, waits for confirmation and refreshes the balance
// @Tags         wallet
// @Produce      json
// @Success      200  {object}  model.AirdropResponse
// @Failure      409  {object}  model.ErrorResponse
// @Failure      429  {object}  model.ErrorResponse
// @Router       /wallet/airdrop [post]
func (h *WalletHandler) Airdrop(w http.ResponseWriter, r *http.Request) {
	resp, err := h.session.RequestAirdrop(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrNotConnected):
			writeError(w, http.StatusConflict, err, "NotConnected")
		case errors.Is(err, ledger.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, err, "RateLimited")
		case errors.Is(err, ledger.ErrConfirmationTimeout):
			writeError(w, http.StatusGatewayTimeout, err, "ConfirmationTimeout")
		default:
			writeError(w, http.StatusBadGateway, err, "NetworkError")
		}
		return
	}

	// Best effort, the airdrop already succeeded
	h.activity.AppendActivity(r.Context(), model.ActivityAirdropReceived, "tx "+common.TruncateKey(resp.TxID), time.Now()) //nolint:errcheck

	writeJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /wallet/refresh
// @Summary      Refresh balance
// @Description  Re-queries and replaces the cached balance
// @Tags         wallet
// @Produce      json
// @Success      200  {object}  model.WalletView
// @Failure      409  {object}  model.ErrorResponse
// @Router       /wallet/refresh [post]
func (h *WalletHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.session.RefreshBalance(r.Context()); err != nil {
		if errors.Is(err, wallet.ErrNotConnected) {
			writeError(w, http.StatusConflict, err, "NotConnected")
			return
		}
		writeError(w, http.StatusBadGateway, err, "NetworkError")
		return
	}
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

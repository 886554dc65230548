package api

import (
	"net/http"

	"github.com/Jpatching/ghostprotocol/internal/cancel"
	"github.com/Jpatching/ghostprotocol/internal/handler"
	"github.com/Jpatching/ghostprotocol/internal/scan"
	"github.com/Jpatching/ghostprotocol/internal/store"
	"github.com/Jpatching/ghostprotocol/internal/wallet"

	httpSwagger "github.com/swaggo/http-swagger"
)

// Deps holds everything the handlers need
type Deps struct {
	Store   *store.Store
	Session *wallet.Session
	Scanner *scan.SimulatedScanner
	Manager *cancel.Manager
}

// SetupRouter sets up router with handlers
func SetupRouter(deps Deps) http.Handler {
	walletHandler := handler.NewWalletHandler(deps.Session, deps.Store)
	subHandler := handler.NewSubscriptionHandler(deps.Store, deps.Scanner)
	cancelHandler := handler.NewCancelHandler(deps.Store, deps.Manager)
	settingsHandler := handler.NewSettingsHandler(deps.Store)

	mux := http.NewServeMux()

	// Swagger UI
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Wallet endpoints
	mux.HandleFunc("GET /wallet", walletHandler.Get)
	mux.HandleFunc("POST /wallet/connect", walletHandler.Connect)
	mux.HandleFunc("POST /wallet/airdrop", walletHandler.Airdrop)
	mux.HandleFunc("POST /wallet/refresh", walletHandler.Refresh)

	// Subscription endpoints
	mux.HandleFunc("GET /subscriptions", subHandler.List)
	mux.HandleFunc("POST /scan", subHandler.Scan)
	mux.HandleFunc("GET /stats", subHandler.Stats)
	mux.HandleFunc("GET /activity", subHandler.Activity)

	// Cancellation pipeline endpoints
	mux.HandleFunc("POST /subscriptions/{id}/cancel", cancelHandler.Start)
	mux.HandleFunc("GET /cancellations/{id}", cancelHandler.Get)
	mux.HandleFunc("POST /cancellations/{id}/confirm", cancelHandler.Confirm)
	mux.HandleFunc("POST /cancellations/{id}/skip", cancelHandler.Skip)
	mux.HandleFunc("POST /cancellations/{id}/retry", cancelHandler.Retry)
	mux.HandleFunc("POST /cancellations/{id}/abandon", cancelHandler.Abandon)

	// Settings endpoints
	mux.HandleFunc("GET /settings/keys", settingsHandler.ListKeys)
	mux.HandleFunc("PUT /settings/keys/{service}", settingsHandler.SaveKey)
	mux.HandleFunc("DELETE /settings/keys/{service}", settingsHandler.DeleteKey)

	return mux
}

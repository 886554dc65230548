package handler

import (
	"net/http"

	"github.com/Jpatching/ghostprotocol/internal/scan"
	"github.com/Jpatching/ghostprotocol/internal/store"
)

// SubscriptionHandler serves subscription, scan and activity endpoints
type SubscriptionHandler struct {
	store   *store.Store
	scanner *scan.SimulatedScanner
}

// NewSubscriptionHandler creates a handler over the local store and scanner
func NewSubscriptionHandler(st *store.Store, scanner *scan.SimulatedScanner) *SubscriptionHandler {
	return &SubscriptionHandler{store: st, scanner: scanner}
}

// List handles GET /subscriptions
// @Summary      List active subscriptions
// @Tags         subscriptions
// @Produce      json
// @Success      200  {array}  model.Subscription
// @Router       /subscriptions [get]
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.ActiveSubscriptions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// Scan handles POST /scan
// @Summary      Scan for recurring charges
// @Description  Runs the subscription detection scan and returns totals
// @Tags         subscriptions
// @Produce      json
// @Success      200  {object}  model.ScanResult
// @Router       /scan [post]
func (h *SubscriptionHandler) Scan(w http.ResponseWriter, r *http.Request) {
	result, err := h.scanner.Scan(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Stats handles GET /stats
// @Summary      Savings summary
// @Tags         subscriptions
// @Produce      json
// @Success      200  {object}  model.Stats
// @Router       /stats [get]
func (h *SubscriptionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Activity handles GET /activity
// @Summary      Recent activity log
// @Tags         subscriptions
// @Produce      json
// @Success      200  {array}  model.Activity
// @Router       /activity [get]
func (h *SubscriptionHandler) Activity(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.Activities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

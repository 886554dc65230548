package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Jpatching/ghostprotocol/internal/cancel"
	"github.com/Jpatching/ghostprotocol/internal/model"
	"github.com/Jpatching/ghostprotocol/internal/store"

	"github.com/google/uuid"
)

// CancelHandler serves the cancellation pipeline endpoints
type CancelHandler struct {
	store   *store.Store
	manager *cancel.Manager
}

// NewCancelHandler creates a handler over the store and pipeline manager
func NewCancelHandler(st *store.Store, manager *cancel.Manager) *CancelHandler {
	return &CancelHandler{store: st, manager: manager}
}

// Start handles POST /subscriptions/{id}/cancel
// @Summary      Start a cancellation
// @Description  Creates a pipeline run for the subscription and begins drafting the cancellation email
// @Tags         cancellations
// @Produce      json
// @Param        id  path  int  true  "Subscription id"
// @Success      202  {object}  model.CancelStartResponse
// @Failure      404  {object}  model.ErrorResponse
// @Failure      409  {object}  model.ErrorResponse
// @Router       /subscriptions/{id}/cancel [post]
func (h *CancelHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid subscription id: %w", err), "")
		return
	}

	sub, err := h.store.SubscriptionByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err, "")
			return
		}
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	if sub.Status != model.SubscriptionStatusActive {
		writeError(w, http.StatusConflict, fmt.Errorf("subscription %d is already %s", id, sub.Status), "")
		return
	}

	run := h.manager.Start(cancel.Intent{
		SubscriptionID: sub.ID,
		Name:           sub.Name,
		Amount:         sub.Amount,
		Merchant:       sub.Merchant,
		RequestedAt:    time.Now(),
	})
	writeJSON(w, http.StatusAccepted, model.CancelStartResponse{ID: run.ID().String()})
}

// Get handles GET /cancellations/{id}
// @Summary      Pipeline run state
// @Description  Gets the state, signing sub-phase, draft and result of a run
// @Tags         cancellations
// @Produce      json
// @Param        id  path  string  true  "Run id"
// @Success      200  {object}  model.CancellationView
// @Failure      404  {object}  model.ErrorResponse
// @Router       /cancellations/{id} [get]
func (h *CancelHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run.View())
}

// Confirm handles POST /cancellations/{id}/confirm
// @Summary      Sign and broadcast the proof
// @Description  Starts the signing sequence; poll the run for progress
// @Tags         cancellations
// @Produce      json
// @Param        id  path  string  true  "Run id"
// @Success      202  {object}  model.CancellationView
// @Failure      409  {object}  model.ErrorResponse
// @Router       /cancellations/{id}/confirm [post]
func (h *CancelHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	if err := h.manager.Confirm(run.ID()); err != nil {
		writeError(w, http.StatusConflict, err, "")
		return
	}
	writeJSON(w, http.StatusAccepted, run.View())
}

// Skip handles POST /cancellations/{id}/skip
// @Summary      Cancel without on-chain proof
// @Description  Persists a receipt with no transaction signature; never touches the ledger
// @Tags         cancellations
// @Produce      json
// @Param        id  path  string  true  "Run id"
// @Success      200  {object}  model.CancellationView
// @Failure      409  {object}  model.ErrorResponse
// @Router       /cancellations/{id}/skip [post]
func (h *CancelHandler) Skip(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	if err := h.manager.Skip(r.Context(), run.ID()); err != nil {
		if errors.Is(err, cancel.ErrInvalidTransition) {
			writeError(w, http.StatusConflict, err, "")
			return
		}
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	writeJSON(w, http.StatusOK, run.View())
}

// Retry handles POST /cancellations/{id}/retry
// @Summary      Retry after an error
// @Description  Re-enters review with the previously obtained draft
// @Tags         cancellations
// @Produce      json
// @Param        id  path  string  true  "Run id"
// @Success      200  {object}  model.CancellationView
// @Failure      409  {object}  model.ErrorResponse
// @Router       /cancellations/{id}/retry [post]
func (h *CancelHandler) Retry(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	if err := h.manager.Retry(run.ID()); err != nil {
		writeError(w, http.StatusConflict, err, "")
		return
	}
	writeJSON(w, http.StatusOK, run.View())
}

// Abandon handles POST /cancellations/{id}/abandon
// @Summary      Close an errored run
// @Tags         cancellations
// @Produce      json
// @Param        id  path  string  true  "Run id"
// @Success      200  {object}  model.CancellationView
// @Failure      409  {object}  model.ErrorResponse
// @Router       /cancellations/{id}/abandon [post]
func (h *CancelHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	if err := h.manager.Abandon(run.ID()); err != nil {
		writeError(w, http.StatusConflict, err, "")
		return
	}
	writeJSON(w, http.StatusOK, run.View())
}

func (h *CancelHandler) run(w http.ResponseWriter, r *http.Request) (*cancel.Pipeline, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid run id: %w", err), "")
		return nil, false
	}
	run, err := h.manager.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err, "")
		return nil, false
	}
	return run, true
}

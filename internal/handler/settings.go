package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/Jpatching/ghostprotocol/internal/config"
	"github.com/Jpatching/ghostprotocol/internal/crypto"
	"github.com/Jpatching/ghostprotocol/internal/store"
)

// SettingsHandler serves the api key settings endpoints
type SettingsHandler struct {
	store *store.Store
}

// NewSettingsHandler creates a handler over the local store
func NewSettingsHandler(st *store.Store) *SettingsHandler {
	return &SettingsHandler{store: st}
}

// saveKeyRequest represents request for PUT /settings/keys/{service}
type saveKeyRequest struct {
	Key string `json:"key"`
}

// ListKeys handles GET /settings/keys
// @Summary      List api key slots
// @Description  Lists known services and whether a key is stored. Key material is never returned.
// @Tags         settings
// @Produce      json
// @Success      200  {array}  model.APIKeyEntry
// @Router       /settings/keys [get]
func (h *SettingsHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.APIKeyEntries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// SaveKey handles PUT /settings/keys/{service}
// @Summary      Store an api key
// @Description  Encrypts the key with the wallet passphrase and stores it
// @Tags         settings
// @Accept       json
// @Param        service  path  string          true  "Service name"
// @Param        request  body  saveKeyRequest  true  "Key material"
// @Success      204
// @Failure      400  {object}  model.ErrorResponse
// @Router       /settings/keys/{service} [put]
func (h *SettingsHandler) SaveKey(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	if !slices.Contains(store.KnownServices, service) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown service %q", service), "")
		return
	}

	var req saveKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, errors.New("key cannot be empty"), "")
		return
	}

	passphrase, err := config.GetWalletPassphraseBytes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	defer clear(passphrase)

	encrypted, err := crypto.EncryptSecret([]byte(req.Key), passphrase)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}

	if err := h.store.SaveAPIKey(r.Context(), service, encrypted); err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteKey handles DELETE /settings/keys/{service}
// @Summary      Delete a stored api key
// @Tags         settings
// @Param        service  path  string  true  "Service name"
// @Success      204
// @Router       /settings/keys/{service} [delete]
func (h *SettingsHandler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteAPIKey(r.Context(), r.PathValue("service")); err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Jpatching/ghostprotocol/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck // response already committed
}

func writeError(w http.ResponseWriter, status int, err error, code string) {
	writeJSON(w, status, model.ErrorResponse{Error: err.Error(), Code: code})
}

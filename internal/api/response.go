package api

import (
	"encoding/json"
	"net/http"

	"github.com/strefethen/volumio-hub-go/internal/apperrors"
)

// ErrorResponse wraps an error body for serialization.
type ErrorResponse struct {
	Error apperrors.ErrorBody `json:"error"`
}

// WriteJSON sends a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

// WriteError serializes an AppError into the error response envelope.
// Response format: {"error": {"code": "...", "message": "..."}}
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.EnsureAppError(err)
	_ = WriteJSON(w, appErr.StatusCode, ErrorResponse{Error: appErr.ErrorBody()})
}

// WriteAction writes an action acknowledgement.
// Example: WriteAction(w, http.StatusOK, "setVolume")
// Produces: {"status": "ok", "command": "setVolume"}
func WriteAction(w http.ResponseWriter, status int, command string) error {
	return WriteJSON(w, status, map[string]any{
		"status":  "ok",
		"command": command,
	})
}

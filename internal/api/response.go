package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/constants"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("error writing response body", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeErrorDetails(w, status, code, message, nil)
}

func writeErrorDetails(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest, message)
}

// forbidden answers requests without a usable session token.
func forbidden(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, constants.ErrCodeAuthRequired, "auth required")
}

func loginFailed(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, constants.ErrCodeAuthFailed, "login failed")
}

func notFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, constants.ErrCodeNotFound, message)
}

func conflict(w http.ResponseWriter, code, message string) {
	writeError(w, http.StatusConflict, code, message)
}

func payloadTooLarge(w http.ResponseWriter, message string) {
	writeError(w, http.StatusRequestEntityTooLarge, constants.ErrCodePayloadTooLarge, message)
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, constants.ErrCodeInternal, "An internal error occurred")
}

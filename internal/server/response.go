package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/postforge/postforge/internal/shared/errors"
	"github.com/postforge/postforge/internal/shared/logger"
)

// successResponse is the envelope for successful responses.
type successResponse struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// errorResponse is the envelope for error responses.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successResponse{Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, successResponse{Message: message})
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *errors.Error
	if !stderrors.As(err, &appErr) {
		appErr = errors.Internal("internal server error")
	}

	// Details ride along even on 500s: provider failures carry the upstream
	// error body there, which is the only way a caller can tell a revoked
	// grant from a provider outage.
	writeJSON(w, appErr.HTTPStatusCode(), errorResponse{
		Error:   string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

func decodeBody(r *http.Request, dest any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return errors.InvalidInput("request body is not valid JSON")
	}
	return nil
}

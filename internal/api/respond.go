package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vietddude/tryon/internal/core/domain"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string             `json:"error"`
	Kind      domain.FailureKind `json:"kind,omitempty"`
	Retryable bool               `json:"retryable"`
}

// RespondJSON sends a JSON response with the given status code and payload.
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// RespondError sends a JSON error. Generation failures keep their kind and
// map to a fitting status; anything else is a 500.
func RespondError(w http.ResponseWriter, err error) {
	var f *domain.Failure
	if errors.As(err, &f) {
		RespondJSON(w, StatusFor(f.Kind), ErrorResponse{
			Error:     f.Message,
			Kind:      f.Kind,
			Retryable: f.Retryable,
		})
		return
	}
	RespondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

// RespondBadRequest reports a malformed request.
func RespondBadRequest(w http.ResponseWriter, message string) {
	RespondJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Kind: domain.FailureInvalidInput})
}

// StatusFor maps a failure kind to an HTTP status.
func StatusFor(kind domain.FailureKind) int {
	switch kind {
	case domain.FailureInvalidInput:
		return http.StatusBadRequest
	case domain.FailureInvalidCredentials:
		return http.StatusInternalServerError
	case domain.FailureRateLimited:
		return http.StatusTooManyRequests
	case domain.FailureOverloaded:
		return http.StatusServiceUnavailable
	case domain.FailureCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusBadGateway
	}
}

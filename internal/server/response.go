package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"ga4revenue/internal/apperr"
)

// Envelope is the body of every API response
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody describes a failed call. Details carries optional diagnostics.
type ErrorBody struct {
	Kind      apperr.Kind `json:"kind"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// internalError is the kind reported for unclassified failures
const internalError apperr.Kind = "internal_error"

// StatusFor maps an error kind to the HTTP status returned for it
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.MissingCredentials, apperr.NotConfigured, apperr.AIUnconfigured,
		apperr.InvalidKeyFormat, apperr.SigningError, apperr.DecryptError:
		return http.StatusPreconditionFailed
	case apperr.NetworkError, apperr.TokenError, apperr.APIError,
		apperr.AIRequestError, apperr.AIProviderError, apperr.AIParseError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Failed to encode JSON response")
	}
}

func writeSuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	writeJSON(w, r, http.StatusOK, Envelope{Success: true, Data: data})
}

// writeError renders err in the failure envelope. Unclassified errors are
// reported without their message.
func writeError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	requestID := middleware.GetReqID(r.Context())

	body := &ErrorBody{
		Kind:      apperr.KindOf(err),
		Message:   err.Error(),
		Details:   details,
		RequestID: requestID,
	}
	if body.Kind == "" {
		body.Kind = internalError
		body.Message = "internal server error"
	}
	status := StatusFor(body.Kind)

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.
		Err(err).
		Str("request_id", requestID).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Str("kind", string(body.Kind)).
		Msg("API error response")

	writeJSON(w, r, status, Envelope{Success: false, Error: body})
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/tableside/internal/domain"
	"github.com/fjod/tableside/internal/logging"
)

const maxRequestBodySize = 1 << 20 // 1MB

const codeReferenceConflict = "reference_conflict"

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Base().Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// handleError converts a service error into the HTTP error body.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var httpStatus int
	var code string
	message := err.Error()
	resp := ErrorResponse{}

	var te *domain.TransitionError
	switch {
	case errors.Is(err, domain.ErrCheckoutInProgress):
		httpStatus = http.StatusConflict
		code = "checkout_in_progress"
	case errors.Is(err, domain.ErrReferenceConflict):
		httpStatus = http.StatusConflict
		code = codeReferenceConflict
	case errors.Is(err, domain.ErrEmptyCart):
		httpStatus = http.StatusBadRequest
		code = "empty_cart"
	case errors.Is(err, domain.ErrValidation):
		httpStatus = http.StatusBadRequest
		code = "invalid_argument"
	case errors.Is(err, domain.ErrNotFound):
		httpStatus = http.StatusNotFound
		code = "not_found"
	case errors.As(err, &te):
		httpStatus = http.StatusConflict
		code = "invalid_transition"
		resp.Details = string(te.From) + " -> " + string(te.To)
	case errors.Is(err, domain.ErrUnavailable):
		httpStatus = http.StatusServiceUnavailable
		code = "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus = http.StatusGatewayTimeout
		code = "timeout"
	default:
		httpStatus = http.StatusInternalServerError
		code = "internal_error"
		message = "internal server error"
	}

	log := logging.FromCtx(r.Context())
	if httpStatus >= http.StatusInternalServerError {
		log.Error("request failed", "status", httpStatus, "error", err)
	} else {
		log.Debug("request rejected", "status", httpStatus, "error", err)
	}

	resp.Error = message
	resp.Code = code
	respondJSON(w, httpStatus, resp)
}

package http

import (
	"context"
	"errors"
	"net/http"

	"famfin/internal/core"
	"famfin/internal/log"
)

// statusClientClosedRequest is the nginx convention for a client that went
// away before the response was written.
const statusClientClosedRequest = 499

// statusFor maps the engine's error taxonomy onto HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "canceled"
	case errors.Is(err, core.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError logs err and writes the mapped JSON error body. Store and
// internal failures are not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	logger := log.FromContext(r.Context())

	message := err.Error()
	var field string
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		field = ve.Field
	}

	switch {
	case status >= 500:
		logger.ErrorContext(r.Context(), "Request failed", "error", err, log.FieldErrorType, code)
		if status != http.StatusGatewayTimeout {
			message = http.StatusText(status)
		}
	default:
		logger.DebugContext(r.Context(), "Request rejected", "error", err, log.FieldErrorType, code)
	}

	_ = NewJSONResponse().Status(status).Error(code, message, field).Write(w)
}

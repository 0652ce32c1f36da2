package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/fjod/go_cart/internal/platform/errors"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

const retryAfterSeconds = 1

func respondJSON(ctx context.Context, w http.ResponseWriter, log *slog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.ErrorContext(ctx, "failed to encode response", "status", status, "error", err)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, log *slog.Logger, status int, code apperrors.Code, message string) {
	respondJSON(ctx, w, log, status, ErrorResponse{
		Error: message,
		Code:  string(code),
	})
}

// handleServiceError maps a service error to its HTTP status. Errors outside
// the taxonomy become 500 without leaking details.
func handleServiceError(ctx context.Context, w http.ResponseWriter, log *slog.Logger, err error) {
	if errors.Is(err, context.DeadlineExceeded) && apperrors.CodeOf(err) == apperrors.CodeUnknown {
		respondError(ctx, w, log, http.StatusGatewayTimeout, apperrors.CodeUnknown, "request timed out")
		return
	}

	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.ErrorContext(ctx, "request failed", "code", code, "error", err)
	}
	if code.Retryable() {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	respondError(ctx, w, log, status, code, apperrors.MessageOf(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, log *slog.Logger, maxBytes int64, dst interface{}) bool {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(r.Context(), w, log, http.StatusBadRequest, apperrors.CodeInvalidInput, "invalid JSON body")
		return false
	}
	return true
}

func parseID(ctx context.Context, w http.ResponseWriter, log *slog.Logger, raw, name string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(ctx, w, log, http.StatusBadRequest, apperrors.CodeInvalidInput, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

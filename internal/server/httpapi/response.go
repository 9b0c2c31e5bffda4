package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/closetapp/closet-sync/internal/shared"
)

// writeJSON writes a wire DTO as-is; sync responses carry their own success
// flag rather than an extra envelope.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, apiErr *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	_, _ = w.Write(apiErr.ToJSON())
}

// writeError maps service sentinels onto wire errors.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		writeAPIError(w, apiErr)
		return
	}

	switch {
	case errors.Is(err, shared.ErrNotFound):
		writeAPIError(w, NotFound(err.Error()))
	case errors.Is(err, shared.ErrForbidden):
		writeAPIError(w, Forbidden(err.Error()))
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrTokenExpired):
		writeAPIError(w, Unauthorized(err.Error()))
	case errors.Is(err, shared.ErrImageTooLarge):
		writeAPIError(w, PayloadTooLarge(err.Error()))
	case errors.Is(err, shared.ErrHashMismatch):
		writeAPIError(w, &APIError{
			StatusCode: http.StatusBadRequest, Code: "HASH_MISMATCH", Message: err.Error()})
	case errors.Is(err, shared.ErrQuotaExceeded):
		writeAPIError(w, QuotaExceeded(err.Error()))
	default:
		writeAPIError(w, Internal(""))
	}
}

// writeRateLimited carries the machine-readable reason and reset time.
func writeRateLimited(w http.ResponseWriter, class string, resetSeconds int64) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", resetSeconds))
	writeAPIError(w, RateLimited(
		fmt.Sprintf("%s rate limit exceeded, retry in %ds", class, resetSeconds)))
}

package httpapi

import (
	"encoding/json"
	"net/http"
)

// APIError is the structured error body every failing endpoint returns.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

// ToJSON converts the error to the wire envelope.
func (e *APIError) ToJSON() []byte {
	body := map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    e.Code,
			"message": e.Message,
		},
	}
	data, _ := json.Marshal(body)
	return data
}

func BadRequest(message string) *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, Code: "BAD_REQUEST", Message: message}
}

func Unauthorized(message string) *APIError {
	if message == "" {
		message = "Authentication required"
	}
	return &APIError{StatusCode: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: message}
}

func Forbidden(message string) *APIError {
	if message == "" {
		message = "Access denied"
	}
	return &APIError{StatusCode: http.StatusForbidden, Code: "FORBIDDEN", Message: message}
}

func NotFound(message string) *APIError {
	if message == "" {
		message = "Not found"
	}
	return &APIError{StatusCode: http.StatusNotFound, Code: "NOT_FOUND", Message: message}
}

func PayloadTooLarge(message string) *APIError {
	return &APIError{StatusCode: http.StatusRequestEntityTooLarge, Code: "IMAGE_TOO_LARGE", Message: message}
}

func QuotaExceeded(message string) *APIError {
	return &APIError{StatusCode: http.StatusTooManyRequests, Code: "QUOTA_EXCEEDED", Message: message}
}

func RateLimited(message string) *APIError {
	return &APIError{StatusCode: http.StatusTooManyRequests, Code: "RATE_LIMITED", Message: message}
}

func Internal(message string) *APIError {
	if message == "" {
		message = "Internal server error"
	}
	return &APIError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL", Message: message}
}

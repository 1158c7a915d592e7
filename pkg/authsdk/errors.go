package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/jobtab/pkg/httpx"
)

// ============================================================================
// Error Categories
// ============================================================================

const (
	CategoryUnauthorized     = "unauthorized"
	CategoryForbidden        = "forbidden"
	CategoryNotFound         = "not_found"
	CategoryConflict         = "conflict"
	CategoryValidation       = "validation_error"
	CategoryInvalidCode      = "invalid_code"
	CategoryExpired          = "expired"
	CategoryAttemptsExceeded = "attempts_exceeded"
	CategoryRateLimited      = "rate_limited"
	CategoryInternal         = "internal_error"
)

// FieldError is one field-level validation problem.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the envelope every failed request returns. It is used
// by the server to write errors and by the client to report them.
type ErrorResponse struct {
	// Status mirrors the HTTP status code
	Status int `json:"status" example:"401"`

	// Category is a stable machine-readable label (e.g. "unauthorized")
	Category string `json:"error" example:"unauthorized"`

	// Message is human-readable and never reveals internals
	Message string `json:"message" example:"invalid or expired token"`

	// Path is the request path that failed
	Path string `json:"path" example:"/v1/auth/me"`

	Details []FieldError `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Category, e.Status, e.Message)
}

// WriteError writes the envelope with its status code.
func (e *ErrorResponse) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.Status, e)
}

// IsCategory reports whether err is an ErrorResponse with the given
// category.
func IsCategory(err error, category string) bool {
	var e *ErrorResponse
	return errors.As(err, &e) && e.Category == category
}

// parseErrorResponse turns a non-2xx response into an *ErrorResponse. A
// body that is not an envelope still yields one, built from the status.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Category != "" {
		if e.Status == 0 {
			e.Status = resp.StatusCode
		}
		return &e
	}

	var path string
	if resp.Request != nil && resp.Request.URL != nil {
		path = resp.Request.URL.Path
	}
	return &ErrorResponse{
		Status:   resp.StatusCode,
		Category: CategoryInternal,
		Message:  fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		Path:     path,
	}
}

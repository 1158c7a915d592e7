package http

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/aussiebroadwan/jobtab/internal/auth/service"
	"github.com/aussiebroadwan/jobtab/pkg/authsdk"
	"github.com/aussiebroadwan/jobtab/pkg/httpx"
	"github.com/aussiebroadwan/jobtab/pkg/slogx"
)

const (
	msgInvalidToken   = "invalid or expired token"
	msgSessionInvalid = "session expired or invalid"
)

// translate maps any error to the response envelope. It is total: an
// unrecognised error becomes internal_error and the cause is only logged.
func translate(r *http.Request, err error) *authsdk.ErrorResponse {
	resp := func(status int, category, msg string) *authsdk.ErrorResponse {
		return &authsdk.ErrorResponse{Status: status, Category: category, Message: msg, Path: r.URL.Path}
	}

	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		e := resp(http.StatusBadRequest, authsdk.CategoryValidation, "request validation failed")
		e.Details = fieldErrors(verr)
		return e
	case errors.Is(err, httpx.ErrBadBody):
		return resp(http.StatusBadRequest, authsdk.CategoryValidation, "malformed JSON body")

	case errors.Is(err, service.ErrInvalidCredentials):
		return resp(http.StatusUnauthorized, authsdk.CategoryUnauthorized, "invalid email or password")
	case errors.Is(err, httpx.ErrUnauthenticated):
		return resp(http.StatusUnauthorized, authsdk.CategoryUnauthorized, "authentication required")
	case errors.Is(err, service.ErrSessionInvalid):
		// The token itself was sound; the client should log in again.
		return resp(http.StatusUnauthorized, authsdk.CategoryUnauthorized, msgSessionInvalid)
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrAccountGone),
		errors.Is(err, httpx.ErrBadAuthorization):
		return resp(http.StatusUnauthorized, authsdk.CategoryUnauthorized, msgInvalidToken)

	case errors.Is(err, service.ErrForbidden), errors.Is(err, httpx.ErrForbidden):
		return resp(http.StatusForbidden, authsdk.CategoryForbidden, "insufficient role")

	case errors.Is(err, service.ErrEmailTaken):
		return resp(http.StatusConflict, authsdk.CategoryConflict, "email already registered")

	case errors.Is(err, service.ErrResetNotFound):
		return resp(http.StatusNotFound, authsdk.CategoryNotFound, "no active password reset for this email")
	case errors.Is(err, service.ErrResetExpired):
		return resp(http.StatusGone, authsdk.CategoryExpired, "reset code has expired")
	case errors.Is(err, service.ErrResetInvalidCode):
		return resp(http.StatusBadRequest, authsdk.CategoryInvalidCode, "reset code is incorrect")
	case errors.Is(err, service.ErrResetAttemptsExceeded):
		return resp(http.StatusTooManyRequests, authsdk.CategoryAttemptsExceeded, "too many attempts, request a new code")

	case errors.Is(err, httpx.ErrRateLimited):
		return resp(http.StatusTooManyRequests, authsdk.CategoryRateLimited, "too many requests, try again later")
	}

	return resp(http.StatusInternalServerError, authsdk.CategoryInternal, "internal server error")
}

// writeError is the httpx.ErrorHandler for every route.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := translate(r, err)

	l := slogx.FromContext(r.Context())
	if e.Status >= http.StatusInternalServerError {
		l.Error("request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
	} else {
		l.Debug("request rejected", slog.String("category", e.Category), slog.Any("err", err))
	}

	e.WriteError(w)
}

func fieldErrors(v *service.ValidationError) []authsdk.FieldError {
	out := make([]authsdk.FieldError, 0, len(v.Fields))
	for field, msg := range v.Fields {
		out = append(out, authsdk.FieldError{Field: field, Message: msg})
	}
	slices.SortFunc(out, func(a, b authsdk.FieldError) int { return strings.Compare(a.Field, b.Field) })
	return out
}

// invalid converts request validation output into a ValidationError, or
// nil when there is nothing to report.
func invalid(fes []authsdk.FieldError) error {
	if len(fes) == 0 {
		return nil
	}
	v := &service.ValidationError{Fields: make(map[string]string, len(fes))}
	for _, fe := range fes {
		if _, dup := v.Fields[fe.Field]; !dup {
			v.Fields[fe.Field] = fe.Message
		}
	}
	return v
}

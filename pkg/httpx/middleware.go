package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/aussiebroadwan/jobtab/pkg/slogx"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws so the first one listed is the outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// ErrPanic is passed to the ErrorHandler when a handler panics.
var ErrPanic = errors.New("httpx: handler panic")

// ErrorHandler renders a failure raised by middleware.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Recoverer turns a panic into an ErrPanic response instead of a dropped
// connection. http.ErrAbortHandler is re-raised untouched.
func Recoverer(onErr ErrorHandler) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slogx.FromContext(r.Context()).Error("panic serving request",
					"panic", fmt.Sprint(rec),
					"stack", string(debug.Stack()),
				)
				onErr(w, r, ErrPanic)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

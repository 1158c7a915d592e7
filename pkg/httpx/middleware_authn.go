package httpx

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
)

var (
	// ErrUnauthenticated is raised when a route needs a caller and has none.
	ErrUnauthenticated = errors.New("httpx: authentication required")

	// ErrForbidden is raised when the caller lacks a required role.
	ErrForbidden = errors.New("httpx: insufficient role")

	// ErrBadAuthorization is raised for an Authorization header that is not
	// a bearer credential.
	ErrBadAuthorization = errors.New("httpx: malformed authorization header")
)

// Authenticator resolves a bearer credential. A nil principal with a nil
// error means the request is anonymous.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (*Principal, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, bearer string) (*Principal, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, bearer string) (*Principal, error) {
	return f(ctx, bearer)
}

// BearerToken extracts the credential from an Authorization header. ok is
// false when a header is present but is not a bearer credential.
func BearerToken(r *http.Request) (token string, ok bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return "", true
	}
	scheme, rest, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(rest)
	return token, token != ""
}

// AuthnMiddleware authenticates every request. Requests without credentials
// pass through anonymously; requests with bad credentials are rejected here
// so a handler never sees a half-authenticated caller.
func AuthnMiddleware(a Authenticator, onErr ErrorHandler) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				writeBearerChallenge(w, "invalid_request")
				onErr(w, r, ErrBadAuthorization)
				return
			}

			p, err := a.Authenticate(r.Context(), raw)
			if err != nil {
				writeBearerChallenge(w, "invalid_token")
				onErr(w, r, err)
				return
			}
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAuthenticated rejects anonymous requests.
func RequireAuthenticated(onErr ErrorHandler) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if PrincipalFrom(r.Context()) == nil {
				writeBearerChallenge(w, "")
				onErr(w, r, ErrUnauthenticated)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects callers holding none of roles. Anonymous callers get
// ErrUnauthenticated rather than ErrForbidden.
func RequireRole(onErr ErrorHandler, roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFrom(r.Context())
			switch {
			case p == nil:
				writeBearerChallenge(w, "")
				onErr(w, r, ErrUnauthenticated)
			case !slices.Contains(roles, p.Role):
				onErr(w, r, ErrForbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RFC 6750 challenge header.
func writeBearerChallenge(w http.ResponseWriter, code string) {
	v := `Bearer realm="jobtab"`
	if code != "" {
		v += `, error="` + code + `"`
	}
	w.Header().Set("WWW-Authenticate", v)
}

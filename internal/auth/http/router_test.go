package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/domain"
	"github.com/aussiebroadwan/jobtab/internal/auth/service"
	"github.com/aussiebroadwan/jobtab/internal/auth/store"
	"github.com/aussiebroadwan/jobtab/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/jobtab/pkg/authsdk"
	"github.com/aussiebroadwan/jobtab/pkg/cryptox"
	"github.com/aussiebroadwan/jobtab/pkg/httpx"
	"github.com/aussiebroadwan/jobtab/pkg/jwtx"
	"github.com/aussiebroadwan/jobtab/pkg/slogx"
	"github.com/stretchr/testify/require"
)

type memSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *memSender) SendOTP(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = code
	return nil
}

func (s *memSender) code(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

type testServer struct {
	router *Router
	sender *memSender
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	codec, err := jwtx.NewCodec([]byte("0123456789abcdef0123456789abcdef"), "jobtab-test")
	require.NoError(t, err)
	hasher, err := cryptox.NewPasswordHasher([]byte("pepper"))
	require.NoError(t, err)
	sender := &memSender{codes: map[string]string{}}

	r := NewRouter("test", slogx.Discard())
	r.SessionService = &service.SessionService{
		Codec:      codec,
		Hasher:     hasher,
		Users:      st.Users(),
		Sessions:   st.Sessions(),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	}
	r.Gate = &service.Gate{Codec: codec, Sessions: st.Sessions(), Users: st.Users()}
	r.RecoveryService = &service.RecoveryService{
		Users:       st.Users(),
		Sessions:    st.Sessions(),
		Challenges:  st.ResetChallenges(),
		Hasher:      hasher,
		Sender:      sender,
		OTPKey:      []byte("otp-key-otp-key-otp-key-otp-key!"),
		OTPLength:   6,
		OTPTTL:      10 * time.Minute,
		MaxAttempts: 5,
	}
	r.RateLimit = httpx.RateLimitConfig{RPS: 100, Burst: 100}
	r.ReadyChecks = map[string]Pinger{"database": st}
	r.ApplyRoutes()

	return &testServer{router: r, sender: sender}
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "198.51.100.7:5555"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, category string) authsdk.ErrorResponse {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	e := decode[authsdk.ErrorResponse](t, rec)
	require.Equal(t, status, e.Status)
	require.Equal(t, category, e.Category)
	require.NotEmpty(t, e.Message)
	return e
}

func (s *testServer) login(t *testing.T, email, password, role string) authsdk.TokenResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/auth/register", "", authsdk.RegisterRequest{Email: email, Password: password, Role: role})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/v1/auth/login", "", authsdk.LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[authsdk.TokenResponse](t, rec)
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	tokens := s.login(t, "alice@example.com", "correct horse", "JOB_POSTER")
	require.Equal(t, "Bearer", tokens.TokenType)
	require.Equal(t, 900, tokens.ExpiresIn)

	rec := s.do(t, http.MethodGet, "/v1/auth/me", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[authsdk.IdentityResponse](t, rec)
	require.Equal(t, "alice@example.com", me.Email)
	require.Equal(t, "JOB_POSTER", me.Role)
	require.Equal(t, tokens.SessionID, me.SessionID)

	rec = s.do(t, http.MethodPost, "/v1/auth/refresh", "", authsdk.RefreshRequest{RefreshToken: tokens.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, tokens.SessionID, decode[authsdk.TokenResponse](t, rec).SessionID)

	rec = s.do(t, http.MethodPost, "/v1/auth/logout", tokens.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Revoked: the token is still signed and unexpired.
	rec = s.do(t, http.MethodGet, "/v1/auth/me", tokens.AccessToken, nil)
	e := requireError(t, rec, http.StatusUnauthorized, authsdk.CategoryUnauthorized)
	require.Equal(t, "/v1/auth/me", e.Path)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
}

func TestUnauthorizedMessages(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	tokens := s.login(t, "bob@example.com", "correct horse", "JOB_SEEKER")

	// Malformed, tampered and wrong-type tokens look the same.
	for _, bearer := range []string{"garbage", tokens.AccessToken + "x", tokens.RefreshToken} {
		rec := s.do(t, http.MethodGet, "/v1/auth/me", bearer, nil)
		e := requireError(t, rec, http.StatusUnauthorized, authsdk.CategoryUnauthorized)
		require.Equal(t, msgInvalidToken, e.Message, "bearer %q", bearer)
	}

	// A sound token whose session is gone says so.
	rec := s.do(t, http.MethodPost, "/v1/auth/logout", tokens.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/v1/auth/me", tokens.AccessToken, nil)
	e := requireError(t, rec, http.StatusUnauthorized, authsdk.CategoryUnauthorized)
	require.Equal(t, msgSessionInvalid, e.Message)
}

// explodingSessions panics on lookup; the other methods are never reached.
type explodingSessions struct{ store.Sessions }

func (explodingSessions) GetSession(context.Context, string) (domain.RefreshSession, error) {
	panic("session backend corrupted")
}

func TestGatePanicFailsClosed(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	tokens := s.login(t, "pat@example.com", "correct horse", "JOB_SEEKER")

	s.router.Gate.Sessions = explodingSessions{}

	rec := s.do(t, http.MethodGet, "/v1/auth/me", tokens.AccessToken, nil)
	e := requireError(t, rec, http.StatusUnauthorized, authsdk.CategoryUnauthorized)
	require.Equal(t, msgSessionInvalid, e.Message)
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/v1/auth/me"},
		{http.MethodPost, "/v1/auth/logout"},
		{http.MethodPost, "/v1/auth/logout-all"},
	} {
		rec := s.do(t, route.method, route.path, "", nil)
		requireError(t, rec, http.StatusUnauthorized, authsdk.CategoryUnauthorized)
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/auth/register", "", authsdk.RegisterRequest{Email: "nope", Password: "short", Role: "ADMIN"})
	e := requireError(t, rec, http.StatusBadRequest, authsdk.CategoryValidation)
	require.Equal(t, []string{"email", "password", "role"}, []string{e.Details[0].Field, e.Details[1].Field, e.Details[2].Field})

	rec = s.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{"email": "a@example.com", "admin": true})
	requireError(t, rec, http.StatusBadRequest, authsdk.CategoryValidation)

	s.login(t, "carol@example.com", "correct horse", "SEEKER")
	rec = s.do(t, http.MethodPost, "/v1/auth/register", "", authsdk.RegisterRequest{Email: "Carol@example.com", Password: "correct horse", Role: "JOB_SEEKER"})
	requireError(t, rec, http.StatusConflict, authsdk.CategoryConflict)
}

func TestLoginFailure(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.login(t, "dan@example.com", "correct horse", "JOB_SEEKER")

	wrong := s.do(t, http.MethodPost, "/v1/auth/login", "", authsdk.LoginRequest{Email: "dan@example.com", Password: "wrong horse"})
	unknown := s.do(t, http.MethodPost, "/v1/auth/login", "", authsdk.LoginRequest{Email: "nobody@example.com", Password: "wrong horse"})

	a := requireError(t, wrong, http.StatusUnauthorized, authsdk.CategoryUnauthorized)
	b := requireError(t, unknown, http.StatusUnauthorized, authsdk.CategoryUnauthorized)
	require.Equal(t, a.Message, b.Message)
}

func TestPasswordReset(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	tokens := s.login(t, "eve@example.com", "correct horse", "JOB_SEEKER")

	known := s.do(t, http.MethodPost, "/v1/password/forgot", "", authsdk.ForgotPasswordRequest{Email: "eve@example.com"})
	unknown := s.do(t, http.MethodPost, "/v1/password/forgot", "", authsdk.ForgotPasswordRequest{Email: "ghost@example.com"})
	require.Equal(t, http.StatusAccepted, known.Code)
	require.Equal(t, known.Code, unknown.Code)
	require.Equal(t, known.Body.String(), unknown.Body.String())

	code := s.sender.code("eve@example.com")
	require.Len(t, code, 6)
	require.Empty(t, s.sender.code("ghost@example.com"))

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	rec := s.do(t, http.MethodPost, "/v1/password/reset", "", authsdk.ResetPasswordRequest{Email: "eve@example.com", Code: wrong, NewPassword: "new horse battery"})
	requireError(t, rec, http.StatusBadRequest, authsdk.CategoryInvalidCode)

	rec = s.do(t, http.MethodPost, "/v1/password/reset", "", authsdk.ResetPasswordRequest{Email: "eve@example.com", Code: code, NewPassword: "new horse battery"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/v1/auth/me", tokens.AccessToken, nil)
	requireError(t, rec, http.StatusUnauthorized, authsdk.CategoryUnauthorized)

	rec = s.do(t, http.MethodPost, "/v1/password/reset", "", authsdk.ResetPasswordRequest{Email: "eve@example.com", Code: code, NewPassword: "another horse"})
	requireError(t, rec, http.StatusNotFound, authsdk.CategoryNotFound)
}

func TestPasswordResetAttemptsExceeded(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/password/forgot", "", authsdk.ForgotPasswordRequest{Email: "ghost@example.com"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	req := authsdk.ResetPasswordRequest{Email: "ghost@example.com", Code: "123456", NewPassword: "new horse battery"}
	for range 4 {
		requireError(t, s.do(t, http.MethodPost, "/v1/password/reset", "", req), http.StatusBadRequest, authsdk.CategoryInvalidCode)
	}
	requireError(t, s.do(t, http.MethodPost, "/v1/password/reset", "", req), http.StatusTooManyRequests, authsdk.CategoryAttemptsExceeded)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	// Rebuild with a tight bucket.
	r := NewRouter("test", slogx.Discard())
	r.SessionService = s.router.SessionService
	r.Gate = s.router.Gate
	r.RecoveryService = s.router.RecoveryService
	r.RateLimit = httpx.RateLimitConfig{RPS: 0.001, Burst: 1}
	r.ApplyRoutes()
	s.router = r

	body := authsdk.ForgotPasswordRequest{Email: "fay@example.com"}
	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/v1/password/forgot", "", body).Code)

	rec := s.do(t, http.MethodPost, "/v1/password/forgot", "", body)
	requireError(t, rec, http.StatusTooManyRequests, authsdk.CategoryRateLimited)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Other routes keep their own bucket.
	require.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/v1/password/reset", "", authsdk.ResetPasswordRequest{}).Code)
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	r := NewRouter("test", slogx.Discard())
	r.SessionService = s.router.SessionService
	r.Gate = s.router.Gate
	r.RecoveryService = s.router.RecoveryService
	r.RateLimit = httpx.RateLimitConfig{RPS: 0.001, Burst: 1}
	trusted, err := httpx.ParseTrustedProxies("10.0.0.0/8")
	require.NoError(t, err)
	r.TrustedProxies = trusted
	r.ApplyRoutes()

	forgot := func(remote, forwarded string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(authsdk.ForgotPasswordRequest{Email: "gus@example.com"}))
		req := httptest.NewRequest(http.MethodPost, "/v1/password/forgot", &buf)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusAccepted, forgot("198.51.100.7:5555", "203.0.113.1").Code)
	for _, spoof := range []string{"203.0.113.2", "203.0.113.3", "203.0.113.4"} {
		requireError(t, forgot("198.51.100.7:5555", spoof), http.StatusTooManyRequests, authsdk.CategoryRateLimited)
	}

	// Behind the trusted proxy each forwarded client has its own bucket.
	require.Equal(t, http.StatusAccepted, forgot("10.0.0.2:443", "203.0.113.5").Code)
	require.Equal(t, http.StatusAccepted, forgot("10.0.0.2:443", "203.0.113.6").Code)
	requireError(t, forgot("10.0.0.2:443", "203.0.113.6"), http.StatusTooManyRequests, authsdk.CategoryRateLimited)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode[authsdk.HealthResponse](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode[authsdk.HealthResponse](t, rec).Checks["database"])

	s.router.ReadyChecks["database"] = failingPinger{}
	// ReadyzHandler captured the map, so the swap is visible.
	rec = s.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "error", decode[authsdk.HealthResponse](t, rec).Checks["database"])
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestTranslateIsTotal(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	e := translate(req, errors.New("something unexpected"))
	require.Equal(t, http.StatusInternalServerError, e.Status)
	require.Equal(t, authsdk.CategoryInternal, e.Category)
	require.NotContains(t, e.Message, "unexpected")

	cases := map[error]int{
		service.ErrForbidden:             http.StatusForbidden,
		httpx.ErrForbidden:               http.StatusForbidden,
		service.ErrResetExpired:          http.StatusGone,
		service.ErrResetAttemptsExceeded: http.StatusTooManyRequests,
		service.ErrAccountGone:           http.StatusUnauthorized,
		httpx.ErrPanic:                   http.StatusInternalServerError,
	}
	for err, status := range cases {
		require.Equal(t, status, translate(req, err).Status, err.Error())
	}
}

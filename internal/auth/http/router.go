package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/service"
	"github.com/aussiebroadwan/jobtab/pkg/httpx"
	"github.com/aussiebroadwan/jobtab/pkg/slogx"

	_ "github.com/aussiebroadwan/jobtab/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	SessionService  *service.SessionService
	RecoveryService *service.RecoveryService
	Gate            *service.Gate

	// RateLimit applies per client IP to login and the password endpoints.
	RateLimit httpx.RateLimitConfig
	// TrustedProxies may report the client address in X-Forwarded-For.
	// Empty keys every limiter on the peer address.
	TrustedProxies []netip.Prefix

	// ReadyChecks are pinged by /readyz, keyed by the name reported.
	ReadyChecks map[string]Pinger

	SwaggerEnabled bool
}

func NewRouter(buildVersion string, logger *slog.Logger) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		RateLimit:    httpx.RateLimitConfig{RPS: 1, Burst: 5},
	}
}

func (r *Router) ApplyRoutes() {
	// Outermost first: the request logger must wrap the recoverer so a
	// panic is logged with its request id.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recoverer(writeError),
		httpx.AuthnMiddleware(httpx.AuthenticatorFunc(r.authenticate), writeError),
	}

	r.registerAuth()
	r.registerPassword()
	r.registerSystem()

	if r.SwaggerEnabled {
		r.Mux.Handle("GET /swagger/", httpSwagger.Handler())
	}
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			JobTab Authentication Service API
//	@version		0.1.0
//	@description	Session-backed authentication for the JobTab job board: registration, login, logout and password recovery.
//	@description
//	@description				Access tokens are HS256 JWTs and are only honoured while their server-side session exists.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/jobtab
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authenticate adapts the Gate to httpx. A panic while verifying fails
// closed as an invalid session rather than escaping as a 500.
func (r *Router) authenticate(ctx context.Context, bearer string) (p *httpx.Principal, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slogx.FromContext(ctx).Error("panic authenticating request", slog.Any("panic", rec))
			p, err = nil, service.ErrSessionInvalid
		}
	}()

	id, err := r.Gate.Authenticate(ctx, bearer)
	if err != nil || id == nil {
		return nil, err
	}
	return &httpx.Principal{
		Subject:   id.UserID,
		Email:     id.Email,
		Role:      id.Role.String(),
		SessionID: id.SessionID,
	}, nil
}

func (r *Router) limitByIP() httpx.Middleware {
	return httpx.NewRateLimiter(r.RateLimit, nil).Middleware(httpx.TrustedProxyKeyExtractor(r.TrustedProxies), writeError)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Sessions: r.SessionService}
	authenticated := httpx.RequireAuthenticated(writeError)

	r.Mux.Handle("POST /v1/auth/register", http.HandlerFunc(h.HandleRegister))
	r.Mux.Handle("POST /v1/auth/login", httpx.Chain(http.HandlerFunc(h.HandleLogin), r.limitByIP()))
	r.Mux.Handle("POST /v1/auth/refresh", http.HandlerFunc(h.HandleRefresh))

	r.Mux.Handle("POST /v1/auth/logout", httpx.Chain(http.HandlerFunc(h.HandleLogout), authenticated))
	r.Mux.Handle("POST /v1/auth/logout-all", httpx.Chain(http.HandlerFunc(h.HandleLogoutAll), authenticated))
	r.Mux.Handle("GET /v1/auth/me", httpx.Chain(http.HandlerFunc(h.HandleMe), authenticated))
}

func (r *Router) registerPassword() {
	h := &PasswordHandler{Recovery: r.RecoveryService}

	// Separate buckets so reset attempts do not starve code requests.
	r.Mux.Handle("POST /v1/password/forgot", httpx.Chain(http.HandlerFunc(h.HandleForgot), r.limitByIP()))
	r.Mux.Handle("POST /v1/password/reset", httpx.Chain(http.HandlerFunc(h.HandleReset), r.limitByIP()))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.ReadyChecks))
}

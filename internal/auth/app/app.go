package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/jobtab/internal/auth/http"
	"github.com/aussiebroadwan/jobtab/internal/auth/notify"
	"github.com/aussiebroadwan/jobtab/internal/auth/service"
	"github.com/aussiebroadwan/jobtab/internal/auth/store"
	"github.com/aussiebroadwan/jobtab/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/jobtab/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/jobtab/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/jobtab/pkg/cryptox"
	"github.com/aussiebroadwan/jobtab/pkg/httpx"
	"github.com/aussiebroadwan/jobtab/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db    store.Store
	cache *redis.Store // nil unless AUTH_REDIS_URL is set
	keys  *AuthKeys

	sender *notify.Async

	sessionService      *service.SessionService
	recoveryService     *service.RecoveryService
	gate                *service.Gate
	housekeepingService *service.HousekeepingService // nil when disabled

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with every dependency initialised.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	keys, err := InitAuthKeys(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth keys: %w", err)
	}
	app.keys = keys

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initCache(ctx); err != nil {
		app.closeStores()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		app.closeStores()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	if app.housekeepingService != nil {
		app.housekeepingService.Start()
	}

	app.logger.Info("auth service starting", "addr", app.cfg.HTTPAddr, "version", BuildVersion, "db_driver", app.cfg.DBDriver)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains the HTTP server and pending OTP deliveries, then closes
// the stores.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeepingService != nil {
		app.housekeepingService.Stop()
	}

	if err := app.sender.Wait(ctx); err != nil {
		app.logger.Warn("pending otp deliveries abandoned", "error", err)
	}

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DBDriver {
	case DriverPostgres:
		db, err = postgres.NewStore(ctx, app.cfg.DBDSN)
	default:
		db, err = sqlite.NewStore(sqliteDSN(app.cfg.DBDSN))
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DBDriver)
	return nil
}

// sqliteDSN turns a plain path into a modernc DSN with WAL and a busy
// timeout. Anything already shaped like a DSN passes through.
func sqliteDSN(dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn)
}

func (app *Application) initCache(ctx context.Context) error {
	if app.cfg.RedisURL == "" {
		return nil
	}

	cache, err := redis.Open(ctx, app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.cache = cache
	app.logger.Info("sessions and reset challenges stored in redis")
	return nil
}

func (app *Application) closeStores() error {
	var errs []error
	if app.cache != nil {
		if err := app.cache.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
			errs = append(errs, err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (app *Application) sessions() store.Sessions {
	if app.cache != nil {
		return app.cache.Sessions()
	}
	return app.db.Sessions()
}

func (app *Application) challenges() store.ResetChallenges {
	if app.cache != nil {
		return app.cache.ResetChallenges()
	}
	return app.db.ResetChallenges()
}

func (app *Application) initServices() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperPath)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	hasher, err := cryptox.NewPasswordHasher(pepper)
	if err != nil {
		return err
	}

	var inner notify.OTPSender = notify.LogSender{Logger: app.logger}
	if app.cfg.NotifyWebhookURL != "" {
		inner = notify.WebhookSender{
			URL:    app.cfg.NotifyWebhookURL,
			Client: &http.Client{Timeout: app.cfg.NotifyTimeout},
		}
	}
	app.sender = notify.NewAsync(inner, app.logger, app.cfg.NotifyTimeout)

	users := app.db.Users()
	sessions := app.sessions()
	challenges := app.challenges()

	app.sessionService = &service.SessionService{
		Codec:      app.keys.Codec,
		Hasher:     hasher,
		Users:      users,
		Sessions:   sessions,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}
	app.recoveryService = &service.RecoveryService{
		Users:       users,
		Sessions:    sessions,
		Challenges:  challenges,
		Hasher:      hasher,
		Sender:      app.sender,
		OTPKey:      app.keys.OTPKey,
		OTPLength:   app.cfg.OTPLength,
		OTPTTL:      app.cfg.OTPTTL,
		MaxAttempts: app.cfg.OTPMaxAttempts,
	}
	app.gate = &service.Gate{
		Codec:         app.keys.Codec,
		Sessions:      sessions,
		Users:         users,
		LookupTimeout: app.cfg.StoreTimeout,
	}

	if app.cfg.HousekeepingInterval > 0 {
		app.housekeepingService = service.NewHousekeepingService(
			sessions,
			challenges,
			app.logger,
			app.cfg.HousekeepingInterval,
		)
	}
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.logger)

	router.SessionService = app.sessionService
	router.RecoveryService = app.recoveryService
	router.Gate = app.gate
	router.RateLimit = httpx.RateLimitConfig{RPS: app.cfg.RateLimitRPS, Burst: app.cfg.RateLimitBurst}
	// Already validated by LoadConfig.
	router.TrustedProxies, _ = httpx.ParseTrustedProxies(app.cfg.TrustedProxies)
	router.SwaggerEnabled = app.cfg.SwaggerEnabled
	router.ReadyChecks = map[string]httpapi.Pinger{"database": app.db}
	if app.cache != nil {
		router.ReadyChecks["redis"] = app.cache
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              app.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Handler returns the routed HTTP handler without starting a listener.
func (app *Application) Handler() http.Handler {
	return app.router
}

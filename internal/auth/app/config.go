package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/jobtab/pkg/cryptox"
	"github.com/aussiebroadwan/jobtab/pkg/httpx"
	"github.com/aussiebroadwan/jobtab/pkg/jwtx"
	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTPAddr  string `mapstructure:"AUTH_HTTP_ADDR"`  // Listen address (default: :8080)
	Env       string `mapstructure:"AUTH_ENV"`        // Environment (dev, staging, prod) (default: dev)
	LogLevel  string `mapstructure:"AUTH_LOG_LEVEL"`  // Log level (debug, info, warn, error) (default: info)
	LogFormat string `mapstructure:"AUTH_LOG_FORMAT"` // Log format (json, text) (default: json)

	Issuer     string        `mapstructure:"AUTH_ISSUER"`      // iss claim of every token (default: jobtab-auth)
	SigningKey string        `mapstructure:"AUTH_SIGNING_KEY"` // Required: >= 32 bytes, raw or "base64:..."
	AccessTTL  time.Duration `mapstructure:"AUTH_ACCESS_TTL"`  // default: 15m
	RefreshTTL time.Duration `mapstructure:"AUTH_REFRESH_TTL"` // Session lifetime (default: 168h)

	OTPLength      int           `mapstructure:"AUTH_OTP_LENGTH"`       // Reset code digits, 6..9 (default: 6)
	OTPTTL         time.Duration `mapstructure:"AUTH_OTP_TTL"`          // default: 10m
	OTPMaxAttempts int           `mapstructure:"AUTH_OTP_MAX_ATTEMPTS"` // default: 5

	DBDriver   string `mapstructure:"AUTH_DB_DRIVER"`   // sqlite or postgres (default: sqlite)
	DBDSN      string `mapstructure:"AUTH_DB_DSN"`      // default for sqlite: auth.db
	RedisURL   string `mapstructure:"AUTH_REDIS_URL"`   // Optional: sessions and reset challenges live in redis when set
	PepperPath string `mapstructure:"AUTH_PEPPER_PATH"` // Password pepper file, created if missing (default: ./pepper)

	NotifyWebhookURL string        `mapstructure:"AUTH_NOTIFY_WEBHOOK_URL"` // Optional: empty logs instead of sending
	NotifyTimeout    time.Duration `mapstructure:"AUTH_NOTIFY_TIMEOUT"`     // default: 5s

	HousekeepingInterval time.Duration `mapstructure:"AUTH_HOUSEKEEPING_INTERVAL"` // 0 disables (default: 1h)
	RateLimitRPS         float64       `mapstructure:"AUTH_RATE_LIMIT_RPS"`        // default: 1
	RateLimitBurst       int           `mapstructure:"AUTH_RATE_LIMIT_BURST"`      // default: 5
	TrustedProxies       string        `mapstructure:"AUTH_TRUSTED_PROXIES"`       // CIDRs or IPs allowed to set X-Forwarded-For (default: none)
	StoreTimeout         time.Duration `mapstructure:"AUTH_STORE_TIMEOUT"`         // Bound on each gate lookup (default: 2s)
	SwaggerEnabled       bool          `mapstructure:"AUTH_SWAGGER_ENABLED"`       // default: true
	ShutdownGracePeriod  time.Duration `mapstructure:"AUTH_SHUTDOWN_GRACE_PERIOD"` // default: 10s
}

// LoadConfig reads .env (if present), then builds and validates Config from
// the environment. Environment variables override .env.
func LoadConfig() (Config, error) {
	return loadConfig(".env")
}

func loadConfig(envFile string) (Config, error) {
	v := viper.New()

	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()

	// Every key needs a default or AutomaticEnv will not see it on Unmarshal.
	v.SetDefault("AUTH_HTTP_ADDR", ":8080")
	v.SetDefault("AUTH_ENV", "dev")
	v.SetDefault("AUTH_LOG_LEVEL", "info")
	v.SetDefault("AUTH_LOG_FORMAT", "json")
	v.SetDefault("AUTH_ISSUER", "jobtab-auth")
	v.SetDefault("AUTH_SIGNING_KEY", "")
	v.SetDefault("AUTH_ACCESS_TTL", "15m")
	v.SetDefault("AUTH_REFRESH_TTL", "168h")
	v.SetDefault("AUTH_OTP_LENGTH", 6)
	v.SetDefault("AUTH_OTP_TTL", "10m")
	v.SetDefault("AUTH_OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("AUTH_DB_DRIVER", DriverSQLite)
	v.SetDefault("AUTH_DB_DSN", "")
	v.SetDefault("AUTH_REDIS_URL", "")
	v.SetDefault("AUTH_PEPPER_PATH", "pepper")
	v.SetDefault("AUTH_NOTIFY_WEBHOOK_URL", "")
	v.SetDefault("AUTH_NOTIFY_TIMEOUT", "5s")
	v.SetDefault("AUTH_HOUSEKEEPING_INTERVAL", "1h")
	v.SetDefault("AUTH_RATE_LIMIT_RPS", 1.0)
	v.SetDefault("AUTH_RATE_LIMIT_BURST", 5)
	v.SetDefault("AUTH_TRUSTED_PROXIES", "")
	v.SetDefault("AUTH_STORE_TIMEOUT", "2s")
	v.SetDefault("AUTH_SWAGGER_ENABLED", true)
	v.SetDefault("AUTH_SHUTDOWN_GRACE_PERIOD", "10s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if cfg.DBDriver == DriverSQLite && cfg.DBDSN == "" {
		cfg.DBDSN = "auth.db"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("config: AUTH_HTTP_ADDR must be set"))
	}
	if c.Issuer == "" {
		errs = append(errs, errors.New("config: AUTH_ISSUER must be set"))
	}

	if c.SigningKey == "" {
		errs = append(errs, errors.New("config: AUTH_SIGNING_KEY must be set"))
	} else if key, err := cryptox.ParseKeyMaterial(c.SigningKey); err != nil {
		errs = append(errs, fmt.Errorf("config: AUTH_SIGNING_KEY: %w", err))
	} else if len(key) < jwtx.MinKeySize {
		errs = append(errs, fmt.Errorf("config: AUTH_SIGNING_KEY must be at least %d bytes", jwtx.MinKeySize))
	}

	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("config: AUTH_ACCESS_TTL and AUTH_REFRESH_TTL must be positive"))
	}
	if c.OTPLength < cryptox.MinOTPDigits || c.OTPLength > cryptox.MaxOTPDigits {
		errs = append(errs, fmt.Errorf("config: AUTH_OTP_LENGTH must be between %d and %d", cryptox.MinOTPDigits, cryptox.MaxOTPDigits))
	}
	if c.OTPTTL <= 0 {
		errs = append(errs, errors.New("config: AUTH_OTP_TTL must be positive"))
	}
	if c.OTPMaxAttempts < 1 {
		errs = append(errs, errors.New("config: AUTH_OTP_MAX_ATTEMPTS must be at least 1"))
	}

	switch c.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DBDSN == "" {
			errs = append(errs, errors.New("config: AUTH_DB_DSN must be set for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: AUTH_DB_DRIVER %q is not sqlite or postgres", c.DBDriver))
	}

	if c.HousekeepingInterval < 0 {
		errs = append(errs, errors.New("config: AUTH_HOUSEKEEPING_INTERVAL must not be negative"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		errs = append(errs, errors.New("config: AUTH_RATE_LIMIT_RPS and AUTH_RATE_LIMIT_BURST must be positive"))
	}
	if _, err := httpx.ParseTrustedProxies(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("config: AUTH_TRUSTED_PROXIES: %w", err))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("config: AUTH_STORE_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

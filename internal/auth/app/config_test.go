package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AUTH_SIGNING_KEY", testSigningKey)

	cfg, err := loadConfig(noEnvFile(t))
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, "jobtab-auth", cfg.Issuer)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.Equal(t, 168*time.Hour, cfg.RefreshTTL)
	require.Equal(t, 6, cfg.OTPLength)
	require.Equal(t, 10*time.Minute, cfg.OTPTTL)
	require.Equal(t, 5, cfg.OTPMaxAttempts)
	require.Equal(t, DriverSQLite, cfg.DBDriver)
	require.Equal(t, "auth.db", cfg.DBDSN)
	require.Equal(t, time.Hour, cfg.HousekeepingInterval)
	require.InDelta(t, 1.0, cfg.RateLimitRPS, 0.0001)
	require.Equal(t, 5, cfg.RateLimitBurst)
	require.Empty(t, cfg.TrustedProxies)
	require.Equal(t, 2*time.Second, cfg.StoreTimeout)
	require.True(t, cfg.SwaggerEnabled)
	require.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("AUTH_SIGNING_KEY", testSigningKey)
	t.Setenv("AUTH_ACCESS_TTL", "5m")
	t.Setenv("AUTH_OTP_LENGTH", "8")
	t.Setenv("AUTH_DB_DRIVER", "Postgres")
	t.Setenv("AUTH_DB_DSN", "postgres://auth@localhost/auth")
	t.Setenv("AUTH_HOUSEKEEPING_INTERVAL", "0")
	t.Setenv("AUTH_SWAGGER_ENABLED", "false")

	cfg, err := loadConfig(noEnvFile(t))
	require.NoError(t, err)

	require.Equal(t, 5*time.Minute, cfg.AccessTTL)
	require.Equal(t, 8, cfg.OTPLength)
	require.Equal(t, DriverPostgres, cfg.DBDriver)
	require.Equal(t, "postgres://auth@localhost/auth", cfg.DBDSN)
	require.Zero(t, cfg.HousekeepingInterval)
	require.False(t, cfg.SwaggerEnabled)
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "AUTH_SIGNING_KEY=" + testSigningKey + "\nAUTH_ISSUER=from-file\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.Issuer)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing signing key",
			env:  map[string]string{},
			want: "AUTH_SIGNING_KEY must be set",
		},
		{
			name: "short signing key",
			env:  map[string]string{"AUTH_SIGNING_KEY": "too-short"},
			want: "at least 32 bytes",
		},
		{
			name: "otp length out of range",
			env:  map[string]string{"AUTH_SIGNING_KEY": testSigningKey, "AUTH_OTP_LENGTH": "4"},
			want: "AUTH_OTP_LENGTH",
		},
		{
			name: "postgres without dsn",
			env:  map[string]string{"AUTH_SIGNING_KEY": testSigningKey, "AUTH_DB_DRIVER": "postgres"},
			want: "AUTH_DB_DSN must be set",
		},
		{
			name: "unknown driver",
			env:  map[string]string{"AUTH_SIGNING_KEY": testSigningKey, "AUTH_DB_DRIVER": "mysql"},
			want: "AUTH_DB_DRIVER",
		},
		{
			name: "zero attempts",
			env:  map[string]string{"AUTH_SIGNING_KEY": testSigningKey, "AUTH_OTP_MAX_ATTEMPTS": "0"},
			want: "AUTH_OTP_MAX_ATTEMPTS",
		},
		{
			name: "bad trusted proxy",
			env:  map[string]string{"AUTH_SIGNING_KEY": testSigningKey, "AUTH_TRUSTED_PROXIES": "10.0.0.0/8,proxy.local"},
			want: "AUTH_TRUSTED_PROXIES",
		},
		{
			name: "zero store timeout",
			env:  map[string]string{"AUTH_SIGNING_KEY": testSigningKey, "AUTH_STORE_TIMEOUT": "0s"},
			want: "AUTH_STORE_TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AUTH_SIGNING_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := loadConfig(noEnvFile(t))
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tt.want), "error %q should mention %q", err, tt.want)
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	require.Equal(t, ":memory:", sqliteDSN(":memory:"))
	require.Equal(t, "file:x.db?mode=ro", sqliteDSN("file:x.db?mode=ro"))
	require.True(t, strings.HasPrefix(sqliteDSN("auth.db"), "file:auth.db?"))
}

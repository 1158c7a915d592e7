package auth_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/app"
	"github.com/aussiebroadwan/jobtab/pkg/authsdk"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common helpers for auth service end-to-end tests. Each test gets its own
 * service instance backed by Postgres and Redis containers, served
 * in-process, with reset codes captured from the notification webhook.
 */

const (
	testPassword    = "correct horse battery"
	testNewPassword = "staple battery horse"
	testSigningKey  = "e2e-signing-key-0123456789abcdef0123"
)

// startContainer runs image and returns host:port for the exposed port.
func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

func startPostgres(t *testing.T) string {
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "jobtab",
			"POSTGRES_PASSWORD": "jobtab",
			"POSTGRES_DB":       "auth",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")
	return "postgres://jobtab:jobtab@" + addr + "/auth?sslmode=disable"
}

func startRedis(t *testing.T) string {
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(60 * time.Second),
	}, "6379")
	return "redis://" + addr + "/0"
}

// mailbox records reset codes delivered through the webhook sender.
type mailbox struct {
	mu    sync.Mutex
	codes map[string]string
	count int
}

func (m *mailbox) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.codes[payload.Email] = payload.Code
	m.count++
	m.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (m *mailbox) deliveries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// waitForCode blocks until a code for email has been delivered.
func (m *mailbox) waitForCode(t *testing.T, email string) string {
	t.Helper()

	var code string
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		code = m.codes[email]
		return code != ""
	}, 5*time.Second, 20*time.Millisecond, "no reset code delivered to %s", email)
	return code
}

type env struct {
	client *authsdk.SDKClient
	mail   *mailbox
}

// setupAuthService starts a fully wired auth service. configure may adjust
// the configuration before the application is built.
func setupAuthService(t *testing.T, configure func(*app.Config)) *env {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping e2e test in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	mail := &mailbox{codes: map[string]string{}}
	hook := httptest.NewServer(mail)
	t.Cleanup(hook.Close)

	cfg := app.Config{
		HTTPAddr:            "127.0.0.1:0",
		Env:                 "test",
		LogLevel:            "error",
		LogFormat:           "json",
		Issuer:              "jobtab-auth",
		SigningKey:          testSigningKey,
		AccessTTL:           15 * time.Minute,
		RefreshTTL:          24 * time.Hour,
		OTPLength:           6,
		OTPTTL:              10 * time.Minute,
		OTPMaxAttempts:      5,
		DBDriver:            app.DriverPostgres,
		DBDSN:               startPostgres(t),
		RedisURL:            startRedis(t),
		PepperPath:          filepath.Join(t.TempDir(), "pepper"),
		NotifyWebhookURL:    hook.URL,
		NotifyTimeout:       5 * time.Second,
		RateLimitRPS:        1000,
		RateLimitBurst:      1000,
		ShutdownGracePeriod: 5 * time.Second,
	}
	if configure != nil {
		configure(&cfg)
	}
	require.NoError(t, cfg.Validate())

	application, err := app.New(cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		srv.Close()
		if err := application.Shutdown(); err != nil {
			t.Logf("shutdown: %v", err)
		}
	})

	return &env{client: authsdk.NewSDKClient(srv.URL), mail: mail}
}

// registerUser creates an account and returns its id.
func registerUser(t *testing.T, client *authsdk.SDKClient, email, role string) string {
	t.Helper()

	resp, err := client.Register(t.Context(), authsdk.RegisterRequest{
		Email:    email,
		Password: testPassword,
		Role:     role,
	})
	require.NoError(t, err, "register should succeed")
	require.NotEmpty(t, resp.UserID)
	return resp.UserID
}

// performLogin authenticates with the default test password.
func performLogin(t *testing.T, client *authsdk.SDKClient, email string) *authsdk.Session {
	t.Helper()

	session, err := client.AuthenticateWithPassword(t.Context(), email, testPassword)
	require.NoError(t, err, "login should succeed")
	require.NotNil(t, session)
	return session
}

// assertCategory checks err is an API error of the given category.
func assertCategory(t *testing.T, err error, category string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, authsdk.IsCategory(err, category), "expected %s, got: %v", category, err)
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/jobtab/pkg/cryptox"
	"github.com/aussiebroadwan/jobtab/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
	calls int
	err   error
}

func (s *captureSender) SendOTP(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.codes == nil {
		s.codes = map[string]string{}
	}
	s.codes[email] = code
	return s.err
}

func (s *captureSender) code(t *testing.T, email string) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[email]
	require.True(t, ok, "no code sent to %s", email)
	return code
}

type testEnv struct {
	store    *sqlite.Store
	clock    *testClock
	sender   *captureSender
	sessions *SessionService
	gate     *Gate
	recovery *RecoveryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	clk := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	codec, err := jwtx.NewCodec([]byte("0123456789abcdef0123456789abcdef"), "jobtab-test", jwtx.WithClock(clk.Now))
	require.NoError(t, err)

	hasher, err := cryptox.NewPasswordHasher([]byte("test-pepper"))
	require.NoError(t, err)

	sender := &captureSender{}

	return &testEnv{
		store:  st,
		clock:  clk,
		sender: sender,
		sessions: &SessionService{
			Codec:      codec,
			Hasher:     hasher,
			Users:      st.Users(),
			Sessions:   st.Sessions(),
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 24 * time.Hour,
			Now:        clk.Now,
		},
		gate: &Gate{
			Codec:    codec,
			Sessions: st.Sessions(),
			Users:    st.Users(),
			Now:      clk.Now,
		},
		recovery: &RecoveryService{
			Users:       st.Users(),
			Sessions:    st.Sessions(),
			Challenges:  st.ResetChallenges(),
			Hasher:      hasher,
			Sender:      sender,
			OTPKey:      []byte("otp-test-key-0123456789abcdef012"),
			OTPLength:   6,
			OTPTTL:      10 * time.Minute,
			MaxAttempts: 5,
			Now:         clk.Now,
		},
	}
}

package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/jobtab/pkg/httpx"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func writeStatus(w http.ResponseWriter, _ *http.Request, err error) {
	switch err {
	case httpx.ErrRateLimited:
		w.WriteHeader(http.StatusTooManyRequests)
	case httpx.ErrForbidden:
		w.WriteHeader(http.StatusForbidden)
	case httpx.ErrPanic:
		w.WriteHeader(http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusUnauthorized)
	}
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestIPKeyExtractor(t *testing.T) {
	t.Run("extracts from RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"

		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	})

	t.Run("ignores forwarding headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.1")
		req.Header.Set("X-Real-IP", "203.0.113.2")

		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	})
}

func TestTrustedProxyKeyExtractor(t *testing.T) {
	trusted, err := httpx.ParseTrustedProxies("10.0.0.0/8, 192.0.2.10")
	require.NoError(t, err)
	extract := httpx.TrustedProxyKeyExtractor(trusted)

	newReq := func(remote string, headers map[string]string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req
	}

	t.Run("untrusted peer cannot choose its key", func(t *testing.T) {
		req := newReq("198.51.100.7:5555", map[string]string{"X-Forwarded-For": "203.0.113.1"})
		require.Equal(t, "198.51.100.7", extract(req))
	})

	t.Run("rotating the header does not change the key", func(t *testing.T) {
		seen := map[string]bool{}
		for _, spoof := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
			seen[extract(newReq("198.51.100.7:5555", map[string]string{"X-Forwarded-For": spoof}))] = true
		}
		require.Len(t, seen, 1)
	})

	t.Run("trusted proxy reports the client", func(t *testing.T) {
		req := newReq("10.1.2.3:443", map[string]string{"X-Forwarded-For": "203.0.113.1"})
		require.Equal(t, "203.0.113.1", extract(req))
	})

	t.Run("prepended entries are skipped", func(t *testing.T) {
		req := newReq("10.1.2.3:443", map[string]string{"X-Forwarded-For": "6.6.6.6, 203.0.113.1, 192.0.2.10"})
		require.Equal(t, "203.0.113.1", extract(req))
	})

	t.Run("X-Real-IP from a trusted proxy", func(t *testing.T) {
		req := newReq("192.0.2.10:443", map[string]string{"X-Real-IP": "203.0.113.2"})
		require.Equal(t, "203.0.113.2", extract(req))
	})

	t.Run("no trusted proxies means peer address", func(t *testing.T) {
		req := newReq("10.1.2.3:443", map[string]string{"X-Forwarded-For": "203.0.113.1"})
		require.Equal(t, "10.1.2.3", httpx.TrustedProxyKeyExtractor(nil)(req))
	})
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := httpx.ParseTrustedProxies("")
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = httpx.ParseTrustedProxies("10.0.0.0/8,not-an-ip")
	require.Error(t, err)
}

func TestCompositeKeyExtractor(t *testing.T) {
	extractor := httpx.CompositeKeyExtractor(":", httpx.PrincipalKeyExtractor, httpx.IPKeyExtractor)

	t.Run("combines multiple extractors", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req = req.WithContext(httpx.WithPrincipal(req.Context(), &httpx.Principal{Subject: "user-1"}))

		require.Equal(t, "user-1:192.168.1.1", extractor(req))
	})

	t.Run("skips empty values", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"

		require.Equal(t, "192.168.1.1", extractor(req))
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("blocks requests over burst", func(t *testing.T) {
		clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		rl := httpx.NewRateLimiter(httpx.RateLimitConfig{RPS: 1, Burst: 3}, clk.Now)
		h := rl.Middleware(httpx.IPKeyExtractor, writeStatus)(okHandler)

		for i := range 3 {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, "request %d should succeed", i+1)
		}

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, "1", rec.Header().Get("Retry-After"))
	})

	t.Run("refills over time", func(t *testing.T) {
		clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		rl := httpx.NewRateLimiter(httpx.RateLimitConfig{RPS: 0.5, Burst: 1}, clk.Now)

		ok, _ := rl.Allow("k")
		require.True(t, ok)

		ok, retry := rl.Allow("k")
		require.False(t, ok)
		require.Equal(t, 2*time.Second, retry)

		clk.Advance(2 * time.Second)
		ok, _ = rl.Allow("k")
		require.True(t, ok)
	})

	t.Run("different keys are tracked separately", func(t *testing.T) {
		rl := httpx.NewRateLimiter(httpx.RateLimitConfig{RPS: 1, Burst: 1}, nil)

		ok, _ := rl.Allow("a")
		require.True(t, ok)
		ok, _ = rl.Allow("a")
		require.False(t, ok)
		ok, _ = rl.Allow("b")
		require.True(t, ok)
	})

	t.Run("empty key bypasses limiter", func(t *testing.T) {
		rl := httpx.NewRateLimiter(httpx.RateLimitConfig{RPS: 1, Burst: 1}, nil)
		h := rl.Middleware(func(*http.Request) string { return "" }, writeStatus)(okHandler)

		for range 3 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

package httpx

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/jobtab/pkg/slogx"
	"golang.org/x/time/rate"
)

// ErrRateLimited is passed to the ErrorHandler when a key is over its limit.
var ErrRateLimited = errors.New("httpx: rate limited")

// RateLimitConfig is a token bucket per key: RPS tokens refill per second
// up to Burst.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// KeyExtractor returns the key a request is limited under (client IP,
// user id, ...). An empty key bypasses the limiter.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor keys on the connecting peer address. Forwarding headers
// are ignored; use TrustedProxyKeyExtractor behind a reverse proxy.
func IPKeyExtractor(r *http.Request) string {
	return remoteIP(r)
}

// TrustedProxyKeyExtractor keys on the client address reported by trusted
// proxies. Forwarding headers are only read when the peer itself is in
// trusted. X-Forwarded-For is walked right to left and the first hop not in
// trusted wins, so a client cannot pick its own key by prepending entries.
// With no trusted prefixes it behaves like IPKeyExtractor.
func TrustedProxyKeyExtractor(trusted []netip.Prefix) KeyExtractor {
	isTrusted := func(s string) bool {
		addr, err := netip.ParseAddr(strings.TrimSpace(s))
		if err != nil {
			return false
		}
		addr = addr.Unmap()
		for _, p := range trusted {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	return func(r *http.Request) string {
		peer := remoteIP(r)
		if len(trusted) == 0 || !isTrusted(peer) {
			return peer
		}

		if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
			hops := strings.Split(strings.Join(xff, ","), ",")
			for i := len(hops) - 1; i >= 0; i-- {
				hop := strings.TrimSpace(hops[i])
				if hop == "" {
					continue
				}
				if !isTrusted(hop) {
					return hop
				}
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
		return peer
	}
}

// ParseTrustedProxies parses a comma separated list of CIDRs or bare
// addresses.
func ParseTrustedProxies(s string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			p, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, fmt.Errorf("httpx: trusted proxy %q: %w", part, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, fmt.Errorf("httpx: trusted proxy %q: %w", part, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func remoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// PrincipalKeyExtractor keys on the authenticated caller. Anonymous
// requests yield an empty key.
func PrincipalKeyExtractor(r *http.Request) string {
	if p := PrincipalFrom(r.Context()); p != nil {
		return p.Subject
	}
	return ""
}

// CompositeKeyExtractor combines multiple key extractors with a separator.
// Empty parts are skipped.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// idleSweepEvery bounds how often idle limiters are dropped.
const idleSweepEvery = 5 * time.Minute

// RateLimiter holds one token bucket per key.
type RateLimiter struct {
	cfg      RateLimitConfig
	now      func() time.Time
	limiters sync.Map // map[string]*rate.Limiter

	mu        sync.Mutex
	lastSweep time.Time
}

// NewRateLimiter returns a limiter for cfg. now may be nil.
func NewRateLimiter(cfg RateLimitConfig, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{cfg: cfg, now: now, lastSweep: now()}
}

// Allow consumes one token for key. When it returns false, retryAfter is
// when the next token is due.
func (rl *RateLimiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	now := rl.now()
	lim := rl.limiter(key, now)

	if lim.AllowN(now, 1) {
		return true, 0
	}

	res := lim.ReserveN(now, 1)
	retryAfter = res.DelayFrom(now)
	res.CancelAt(now)
	return false, retryAfter
}

func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	if l, ok := rl.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}

	actual, _ := rl.limiters.LoadOrStore(key, rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst))
	rl.maybeSweep(now)
	return actual.(*rate.Limiter)
}

// maybeSweep drops limiters whose buckets have refilled: those keys have
// been idle and would start from a full bucket anyway.
func (rl *RateLimiter) maybeSweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) < idleSweepEvery {
		return
	}
	rl.lastSweep = now

	rl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).TokensAt(now) >= float64(rl.cfg.Burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// Middleware limits requests by the key keyFn extracts.
func (rl *RateLimiter) Middleware(keyFn KeyExtractor, onErr ErrorHandler) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := keyFn(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			ok, retryAfter := rl.Allow(key)
			if !ok {
				secs := max(int((retryAfter+time.Second-1)/time.Second), 1)
				w.Header().Set("Retry-After", strconv.Itoa(secs))

				log.Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", secs,
				)
				onErr(w, r, ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

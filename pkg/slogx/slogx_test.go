package slogx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/jobtab/pkg/idx"
	"github.com/aussiebroadwan/jobtab/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestMaskEmail(t *testing.T) {
	require.Equal(t, "j***@example.com", slogx.MaskEmail("jane@example.com"))
	require.Equal(t, "***", slogx.MaskEmail("no-at-sign"))
	require.Equal(t, "***", slogx.MaskEmail("@example.com"))
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, slogx.ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, slogx.ParseLevel("warning"))
	require.Equal(t, slog.LevelInfo, slogx.ParseLevel("bogus"))
}

func TestFromContextFallback(t *testing.T) {
	fallback := slogx.Discard()
	require.Same(t, fallback, slogx.FromContext(context.Background(), fallback))

	attached := slogx.Discard()
	ctx := slogx.WithContext(context.Background(), attached)
	require.Same(t, attached, slogx.FromContext(ctx, fallback))
}

func TestHTTPMiddlewareRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{Service: "auth", Format: "json", Output: &buf})

	var sawLogger bool
	h := slogx.HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = slogx.FromContext(r.Context()) != slog.Default()
		w.WriteHeader(http.StatusTeapot)
	}))

	// A caller supplied ULID is kept
	given := idx.New().String()
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set(slogx.RequestIDHeader, given)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.True(t, sawLogger)
	require.Equal(t, given, rec.Header().Get(slogx.RequestIDHeader))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, given, line["req_id"])
	require.EqualValues(t, http.StatusTeapot, line["status"])
	require.Equal(t, "WARN", line["level"], "client errors log at warn")

	// Junk is replaced
	req = httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set(slogx.RequestIDHeader, "<script>")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	_, err := idx.Parse(rec.Header().Get(slogx.RequestIDHeader))
	require.NoError(t, err)
}

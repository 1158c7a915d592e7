package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/jobtab/pkg/authsdk"
	"github.com/aussiebroadwan/jobtab/pkg/httpx"
	"github.com/aussiebroadwan/jobtab/pkg/slogx"
)

// Pinger is a dependency whose health gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe endpoint returning service health status and checks for critical dependencies
//	@Description	Includes uptime, version, and the status of the database and, when configured, redis
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]string, len(deps))
		overallStatus := "ok"
		statusCode := http.StatusOK

		for name, p := range deps {
			if err := p.Ping(ctx); err != nil {
				slogx.FromContext(ctx).Warn("readiness check failed", "check", name, "err", err)
				checks[name] = "error"
				overallStatus = "degraded"
				statusCode = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		httpx.WriteJSON(w, statusCode, authsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
			Checks:  checks,
		})
	}
}

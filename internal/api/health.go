package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// Check is one named dependency probed by /readyz.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler provides liveness and readiness endpoints for the service.
//
// Responsibilities:
//   - /healthz: Basic liveness probe (always returns 200 OK).
//   - /readyz: Readiness probe (every registered dependency must answer).
type HealthHandler struct {
	checks []Check
}

// NewHealthHandler constructs a HealthHandler. Checks with a nil Ping are ignored.
func NewHealthHandler(checks ...Check) *HealthHandler {
	kept := make([]Check, 0, len(checks))
	for _, c := range checks {
		if c.Ping != nil {
			kept = append(kept, c)
		}
	}
	return &HealthHandler{checks: kept}
}

// Register mounts the health and readiness endpoints into the provided Gin router.
func (h *HealthHandler) Register(r *gin.Engine) {
	// Liveness probe (just checks if the service is up)
	// @Summary      Liveness probe
	// @Description  Always returns OK if the service is running
	// @Tags         health
	// @Produce      json
	// @Success      200  {object}  map[string]string
	// @Router       /healthz [get]
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness probe (checks every dependency)
	// @Summary      Readiness probe
	// @Description  Returns ready if the service dependencies (DB) are reachable
	// @Tags         health
	// @Produce      json
	// @Success      200  {object}  map[string]any
	// @Failure      503  {object}  map[string]any
	// @Router       /readyz [get]
	r.GET("/readyz", func(c *gin.Context) {
		status, results := h.ready(c.Request.Context())
		code := http.StatusOK
		if status != "ready" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "checks": results})
	})
}

func (h *HealthHandler) ready(ctx context.Context) (string, map[string]string) {
	status := "ready"
	results := make(map[string]string, len(h.checks))
	for _, chk := range h.checks {
		cctx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := chk.Ping(cctx)
		cancel()
		if err != nil {
			status = "degraded"
			results[chk.Name] = err.Error()
			continue
		}
		results[chk.Name] = "ok"
	}
	return status, results
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sourcing/backend/internal/infrastructure/logger"
)

const readinessTimeout = 2 * time.Second

// DependencyCheck pings one backing service
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler serves liveness and readiness checks
type HealthHandler struct {
	checks    []DependencyCheck
	startTime time.Time
	now       func() time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(checks ...DependencyCheck) *HealthHandler {
	return &HealthHandler{
		checks:    checks,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// HealthResponse is the body of every health response
type HealthResponse struct {
	Status       string            `json:"status"`
	Time         string            `json:"time"`
	Uptime       string            `json:"uptime,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Live reports that the process is serving
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "alive",
		Time:   h.now().Format(time.RFC3339),
		Uptime: h.now().Sub(h.startTime).Round(time.Second).String(),
	})
}

// Ready pings every dependency and answers 503 if any fails
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	reqLog := logger.GetGinLogger(c)
	deps := make(map[string]string, len(h.checks))
	healthy := true
	for _, dep := range h.checks {
		if err := dep.Check(ctx); err != nil {
			reqLog.Warn("Health check failed", zap.String("dependency", dep.Name), zap.Error(err))
			deps[dep.Name] = "error"
			healthy = false
			continue
		}
		deps[dep.Name] = "ok"
	}

	resp := HealthResponse{
		Status:       "healthy",
		Time:         h.now().Format(time.RFC3339),
		Dependencies: deps,
	}
	if !healthy {
		resp.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

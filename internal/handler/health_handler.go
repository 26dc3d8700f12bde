package handler

import (
	"context"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/smsinterview/internal/utils"
)

var startTime = time.Now()

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HealthHandler provides health endpoint.
type HealthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler creates a new HealthHandler probing the named checks,
// e.g. {"database": db.PingContext, "redis": redis.Ping}.
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// GetHealth responds with service and dependency status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	deps := gin.H{}
	for _, name := range names {
		status := "connected"
		if err := h.checks[name](ctx); err != nil {
			status = "disconnected"
			healthy = false
		}
		deps[name] = gin.H{"status": status}
	}

	data := gin.H{
		"status":       "healthy",
		"version":      "1.0.0",
		"uptime":       int(time.Since(startTime).Seconds()),
		"dependencies": deps,
	}
	if !healthy {
		data["status"] = "degraded"
		utils.Success(c, 503, "Service is degraded", data)
		return
	}
	utils.Success(c, 200, "Service is healthy", data)
}

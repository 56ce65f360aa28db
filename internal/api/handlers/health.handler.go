package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/netvigil/vigil-core/internal/monitoring"
	"github.com/netvigil/vigil-core/pkg/cache"
	"github.com/netvigil/vigil-core/pkg/logger"
)

type HealthHandler struct {
	cache     cache.Valkey
	logger    logger.Logger
	startedAt time.Time
}

func NewHealthHandler(valkeyCache cache.Valkey, logger logger.Logger) *HealthHandler {
	return &HealthHandler{
		cache:     valkeyCache,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// GET /health - Liveness probe
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "vigil-core",
		"version":   monitoring.Version,
		"uptime":    time.Since(h.startedAt).String(),
		"timestamp": time.Now().UTC(),
	})
}

// GET /ready - Readiness probe. Degrades rather than fails when the cache is
// unreachable; the engine runs without it.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	components := gin.H{"engine": "ready"}

	if h.cache != nil {
		if err := h.cache.Set(c.Request.Context(), "readiness_probe", []byte("ok"), time.Minute); err != nil {
			components["cache"] = "unreachable"
		} else {
			components["cache"] = "ready"
		}
	} else {
		components["cache"] = "disabled"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
		"timestamp":  time.Now().UTC(),
	})
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/netvigil/vigil-core/internal/alerting"
	"github.com/netvigil/vigil-core/internal/models"
	"github.com/netvigil/vigil-core/pkg/logger"
)

type AlertHandler struct {
	engine *alerting.Engine
	logger logger.Logger
}

func NewAlertHandler(engine *alerting.Engine, logger logger.Logger) *AlertHandler {
	return &AlertHandler{
		engine: engine,
		logger: logger,
	}
}

// POST /api/v1/alerts - Ingest one alert occurrence
func (h *AlertHandler) CreateAlert(c *gin.Context) {
	var payload models.AlertPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Invalid alert payload: " + err.Error(),
		})
		return
	}

	result := h.engine.CreateAlert(c.Request.Context(), &payload)

	status := http.StatusCreated
	if result.Status == "suppressed" {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{
		"status": "success",
		"data":   result,
	})
}

// GET /api/v1/alerts - List active alerts
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	var query models.AlertQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Invalid query parameters: " + err.Error(),
		})
		return
	}

	alerts := h.engine.ActiveAlerts(&query)
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"alerts": alerts,
			"count":  len(alerts),
		},
	})
}

// GET /api/v1/alerts/history - Audit trail of alert actions
func (h *AlertHandler) GetHistory(c *gin.Context) {
	var query models.AlertQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Invalid query parameters: " + err.Error(),
		})
		return
	}

	entries := h.engine.History(&query)
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"history": entries,
			"count":   len(entries),
		},
	})
}

// GET /api/v1/alerts/metrics - Aggregate counts over the store
func (h *AlertHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   h.engine.Metrics(),
	})
}

// PUT /api/v1/alerts/:id/acknowledge - Acknowledge an active alert
func (h *AlertHandler) AcknowledgeAlert(c *gin.Context) {
	var body struct {
		AcknowledgedBy string `json:"acknowledged_by"`
	}
	_ = c.ShouldBindJSON(&body)
	if body.AcknowledgedBy == "" {
		body.AcknowledgedBy = "unknown"
	}

	alert, err := h.engine.Acknowledge(c.Param("id"), body.AcknowledgedBy)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   alert,
	})
}

// PUT /api/v1/alerts/:id/resolve - Resolve an active alert
func (h *AlertHandler) ResolveAlert(c *gin.Context) {
	var body struct {
		Resolution string `json:"resolution"`
	}
	_ = c.ShouldBindJSON(&body)

	alert, err := h.engine.Resolve(c.Request.Context(), c.Param("id"), body.Resolution)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   alert,
	})
}

// POST /api/v1/alerts/:id/silence - Silence the alert's fingerprint
func (h *AlertHandler) SilenceAlert(c *gin.Context) {
	var body struct {
		Duration string `json:"duration"`
		Reason   string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Invalid silence request: " + err.Error(),
		})
		return
	}

	duration := time.Hour
	if body.Duration != "" {
		d, err := time.ParseDuration(body.Duration)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"status": "error",
				"error":  "Invalid silence duration: " + body.Duration,
			})
			return
		}
		duration = d
	}

	silence, err := h.engine.SilenceAlert(c.Param("id"), duration, body.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   silence,
	})
}

// GET /api/v1/channels - Per-channel delivery statistics
func (h *AlertHandler) GetChannels(c *gin.Context) {
	stats := h.engine.ChannelStats()
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"channels": stats,
			"count":    len(stats),
		},
	})
}

func (h *AlertHandler) respondError(c *gin.Context, err error) {
	if errors.Is(err, alerting.ErrAlertNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "Alert not found",
		})
		return
	}

	h.logger.Error("Alert operation failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"status": "error",
		"error":  err.Error(),
	})
}

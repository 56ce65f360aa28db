package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/netvigil/vigil-core/internal/alerting"
	"github.com/netvigil/vigil-core/internal/config"
	"github.com/netvigil/vigil-core/internal/metrics"
	"github.com/netvigil/vigil-core/pkg/logger"
)

type WebSocketHandler struct {
	engine   *alerting.Engine
	upgrader websocket.Upgrader
	config   config.WebSocketConfig
	logger   logger.Logger
}

func NewWebSocketHandler(engine *alerting.Engine, cfg config.WebSocketConfig, logger logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// TODO: tighten in prod (check Origin against CORS config)
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		config: cfg,
		logger: logger,
	}
}

// GET /api/v1/alerts/stream - WebSocket stream of alert lifecycle events
func (h *WebSocketHandler) HandleAlertStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := h.engine.Subscribe()
	defer cancel()

	metrics.ActiveWebSocketConnections.Inc()
	defer metrics.ActiveWebSocketConnections.Dec()

	h.logger.Info("WebSocket client connected", "client_ip", c.ClientIP())

	// Readers are write-only consumers; drain their side so close frames
	// and pings are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingInterval := time.Duration(h.config.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	heartbeat := time.NewTicker(pingInterval)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(map[string]interface{}{
				"type":      "lifecycle_event",
				"data":      event,
				"timestamp": time.Now().Format(time.RFC3339),
			}); err != nil {
				h.logger.Debug("WebSocket write failed", "error", err)
				return
			}

		case <-heartbeat.C:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(map[string]interface{}{
				"type": "heartbeat",
				"data": map[string]any{"ts": time.Now().UnixMilli()},
			}); err != nil {
				return
			}

		case <-c.Request.Context().Done():
			return
		}
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netvigil/vigil-core/internal/alerting"
	"github.com/netvigil/vigil-core/internal/channels"
	"github.com/netvigil/vigil-core/internal/config"
	"github.com/netvigil/vigil-core/internal/models"
	"github.com/netvigil/vigil-core/pkg/logger"
)

type recordingChannel struct {
	name string
}

func (r *recordingChannel) Name() string    { return r.name }
func (r *recordingChannel) IsEnabled() bool { return true }
func (r *recordingChannel) Send(context.Context, *models.Alert) error {
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *alerting.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := channels.NewRegistry(logger.NewNop())
	registry.Register(&recordingChannel{name: "chat"})
	registry.Register(&recordingChannel{name: "email"})

	cfg := config.EngineConfig{
		MaxAlertsPerHour:   100,
		RetentionPeriod:    24 * time.Hour,
		CleanupInterval:    time.Hour,
		CorrelationWindow:  5 * time.Minute,
		MaxEscalationLevel: 3,
		EscalationSeverity: models.SeverityCritical,
	}
	engine := alerting.NewEngine(cfg, &config.RuleSet{}, registry, nil, logger.NewNop())

	handler := NewAlertHandler(engine, logger.NewNop())
	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.POST("/alerts", handler.CreateAlert)
	v1.GET("/alerts", handler.GetAlerts)
	v1.GET("/alerts/history", handler.GetHistory)
	v1.GET("/alerts/metrics", handler.GetMetrics)
	v1.PUT("/alerts/:id/acknowledge", handler.AcknowledgeAlert)
	v1.PUT("/alerts/:id/resolve", handler.ResolveAlert)
	v1.POST("/alerts/:id/silence", handler.SilenceAlert)
	v1.GET("/channels", handler.GetChannels)

	return router, engine
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createdAlertID(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var resp struct {
		Data models.CreateAlertResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.ID)
	return resp.Data.ID
}

func TestCreateAlertEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	t.Run("valid payload", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/alerts", models.AlertPayload{
			Name:     "cpu_high",
			Severity: "warning",
			Message:  "cpu at 97%",
		})

		require.Equal(t, http.StatusCreated, w.Code)
		var resp struct {
			Status string                   `json:"status"`
			Data   models.CreateAlertResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "success", resp.Status)
		assert.Equal(t, "sent", resp.Data.Status)
		assert.Len(t, resp.Data.Results, 2)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", bytes.NewReader([]byte("{not json")))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAlertLifecycleEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/alerts", models.AlertPayload{
		Name: "db_down", Severity: "warning",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := createdAlertID(t, w)

	t.Run("list active", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/v1/alerts?severity=warning", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), id)
	})

	t.Run("acknowledge", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPut, "/api/v1/alerts/"+id+"/acknowledge",
			gin.H{"acknowledged_by": "oncall"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"acknowledged"`)
	})

	t.Run("resolve", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPut, "/api/v1/alerts/"+id+"/resolve",
			gin.H{"resolution": "rebooted"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"resolved"`)
	})

	t.Run("resolved alerts leave the active set", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPut, "/api/v1/alerts/"+id+"/acknowledge", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("history records the transitions", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/v1/alerts/history?action=resolved", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), id)
	})

	t.Run("store metrics", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/v1/alerts/metrics", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data models.AlertMetrics `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 0, resp.Data.ActiveTotal)
		assert.GreaterOrEqual(t, resp.Data.HistoryTotal, 3)
	})
}

func TestSilenceEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	payload := models.AlertPayload{Name: "disk_full", Severity: "info", Component: "db"}
	w := doJSON(t, router, http.MethodPost, "/api/v1/alerts", payload)
	require.Equal(t, http.StatusCreated, w.Code)
	id := createdAlertID(t, w)

	t.Run("invalid duration rejected", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/alerts/"+id+"/silence",
			gin.H{"duration": "not-a-duration"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("silence gates the next occurrence", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/alerts/"+id+"/silence",
			gin.H{"duration": "1h", "reason": "maintenance"})
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, router, http.MethodPost, "/api/v1/alerts", payload)
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, w.Body.String(), models.SuppressedSilenced)
	})

	t.Run("unknown alert id", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/alerts/no-such-id/silence",
			gin.H{"duration": "1h"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestChannelsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/alerts", models.AlertPayload{
		Name: "cpu_high", Severity: "warning",
	})

	w := doJSON(t, router, http.MethodGet, "/api/v1/channels", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Channels []models.ChannelStats `json:"channels"`
			Count    int                   `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Data.Count)
	assert.Equal(t, "chat", resp.Data.Channels[0].Name)
	assert.True(t, resp.Data.Channels[0].Enabled)
	assert.Equal(t, 1.0, resp.Data.Channels[0].SuccessRate)
	assert.False(t, resp.Data.Channels[0].LastUsed.IsZero())
}

package channels

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netvigil/vigil-core/internal/config"
	"github.com/netvigil/vigil-core/internal/models"
	"github.com/netvigil/vigil-core/pkg/logger"
)

type fakeChannel struct {
	name    string
	enabled bool
	err     error
	calls   int
}

func (f *fakeChannel) Name() string    { return f.name }
func (f *fakeChannel) IsEnabled() bool { return f.enabled }
func (f *fakeChannel) Send(ctx context.Context, alert *models.Alert) error {
	f.calls++
	return f.err
}

func testAlert() *models.Alert {
	return &models.Alert{
		ID:        "a-1",
		Name:      "cpu_high",
		Severity:  models.SeverityCritical,
		Component: "router-7",
		Message:   "CPU at 92%",
		Status:    models.StatusFiring,
		Timestamp: time.Now(),
	}
}

func TestInstrumented_TracksStats(t *testing.T) {
	fake := &fakeChannel{name: "pager", enabled: true}
	ch := NewInstrumented(fake)

	require.NoError(t, ch.Send(context.Background(), testAlert()))
	fake.err = errors.New("boom")
	require.Error(t, ch.Send(context.Background(), testAlert()))

	assert.Equal(t, int64(1), ch.ErrorCount())
	assert.InDelta(t, 0.5, ch.SuccessRate(), 1e-9)
	assert.False(t, ch.LastUsed().IsZero())

	stats := ch.Stats()
	assert.Equal(t, "pager", stats.Name)
	assert.True(t, stats.Enabled)
}

func TestInstrumented_UnusedChannelHasFullSuccessRate(t *testing.T) {
	ch := NewInstrumented(&fakeChannel{name: "sms", enabled: true})
	assert.Equal(t, 1.0, ch.SuccessRate())
	assert.True(t, ch.LastUsed().IsZero())
}

func TestRegistry_GetFiltersDisabled(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	r.Register(&fakeChannel{name: "pager", enabled: true})
	r.Register(&fakeChannel{name: "sms", enabled: false})

	_, ok := r.Get("pager")
	assert.True(t, ok)
	_, ok = r.Get("sms")
	assert.False(t, ok)
	_, ok = r.Get("unregistered")
	assert.False(t, ok)

	assert.Equal(t, []string{"pager", "sms"}, r.Names())
}

func TestRegistry_Stats(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	r.Register(&fakeChannel{name: "pager", enabled: true})
	r.Register(&fakeChannel{name: "email", enabled: true})

	stats := r.Stats()
	require.Len(t, stats, 2)
	// sorted by name
	assert.Equal(t, "email", stats[0].Name)
	assert.Equal(t, "pager", stats[1].Name)
}

func TestSlackChannel_Send(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewSlackChannel(config.SlackConfig{
		WebhookURL: srv.URL,
		Channel:    "#alerts",
		Enabled:    true,
	}, logger.NewNop())

	require.NoError(t, ch.Send(context.Background(), testAlert()))
	assert.Equal(t, "chat", ch.Name())
	assert.Equal(t, "#alerts", received["channel"])
}

func TestSlackChannel_SendFailsOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ch := NewSlackChannel(config.SlackConfig{WebhookURL: srv.URL, Enabled: true}, logger.NewNop())
	err := ch.Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack notification failed")
}

func TestTeamsChannel_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "MessageCard", payload["@type"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewTeamsChannel(config.MSTeamsConfig{WebhookURL: srv.URL, Enabled: true}, logger.NewNop())
	require.NoError(t, ch.Send(context.Background(), testAlert()))
	assert.Equal(t, "teams", ch.Name())
}

func TestEmailChannel_Send(t *testing.T) {
	ch := NewEmailChannel(config.EmailConfig{
		SMTPHost:    "smtp.example.com",
		SMTPPort:    587,
		FromAddress: "vigil@example.com",
		Recipients:  []string{"oncall@example.com"},
		Enabled:     true,
	}, logger.NewNop())

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	ch.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, ch.Send(context.Background(), testAlert()))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "vigil@example.com", gotFrom)
	assert.Equal(t, []string{"oncall@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: [Vigil] CRITICAL - cpu_high")
}

func TestEmailChannel_RejectsHeaderInjection(t *testing.T) {
	ch := NewEmailChannel(config.EmailConfig{
		SMTPHost:    "smtp.example.com",
		SMTPPort:    587,
		FromAddress: "vigil@example.com",
		Enabled:     true,
	}, logger.NewNop())
	ch.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		t.Fatal("sendMail should not be reached")
		return nil
	}

	alert := testAlert()
	alert.Name = "evil\r\nBcc: attacker@example.com"
	assert.Error(t, ch.Send(context.Background(), alert))
}

func TestEmailChannel_MisconfiguredFails(t *testing.T) {
	ch := NewEmailChannel(config.EmailConfig{Enabled: true}, logger.NewNop())
	assert.Error(t, ch.Send(context.Background(), testAlert()))
}

package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netvigil/vigil-core/internal/config"
	"github.com/netvigil/vigil-core/internal/models"
	"github.com/netvigil/vigil-core/pkg/logger"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		MaxAlertsPerHour:   3,
		RetentionPeriod:    24 * time.Hour,
		CleanupInterval:    time.Hour,
		CorrelationWindow:  5 * time.Minute,
		MaxCorrelations:    10,
		MaxEscalationLevel: 3,
		EscalationSeverity: models.SeverityCritical,
	}
}

func newTestEngine(t *testing.T, cfg config.EngineConfig, rules *config.RuleSet, chs ...*stubChannel) *Engine {
	t.Helper()
	if rules == nil {
		rules = &config.RuleSet{}
	}
	engine := NewEngine(cfg, rules, stubRegistry(chs...), nil, logger.NewNop())
	return engine
}

func TestEngineCreateAlert(t *testing.T) {
	t.Run("dispatch and store", func(t *testing.T) {
		chat := newStubChannel("chat")
		email := newStubChannel("email")
		engine := newTestEngine(t, testEngineConfig(), nil, chat, email)

		result := engine.CreateAlert(context.Background(), &models.AlertPayload{
			Name:     "cpu_high",
			Severity: models.SeverityWarning,
			Message:  "cpu at 97%",
		})

		assert.Equal(t, "sent", result.Status)
		require.Len(t, result.Results, 2)
		assert.True(t, result.Results["chat"].Success)
		assert.True(t, result.Results["email"].Success)

		stored, ok := engine.GetAlert(result.ID)
		require.True(t, ok)
		assert.Equal(t, models.StatusFiring, stored.Status)
		assert.ElementsMatch(t, []string{"chat", "email"}, stored.NotificationsSent)
	})

	t.Run("partial channel failure still reports sent", func(t *testing.T) {
		chat := newStubChannel("chat")
		email := newStubChannel("email")
		email.err = context.DeadlineExceeded
		engine := newTestEngine(t, testEngineConfig(), nil, chat, email)

		result := engine.CreateAlert(context.Background(), &models.AlertPayload{
			Name:     "cpu_high",
			Severity: models.SeverityWarning,
		})

		assert.Equal(t, "sent", result.Status)
		assert.True(t, result.Results["chat"].Success)
		assert.False(t, result.Results["email"].Success)

		stored, ok := engine.GetAlert(result.ID)
		require.True(t, ok)
		assert.Equal(t, []string{"chat"}, stored.NotificationsSent)
	})

	t.Run("rate limit suppression", func(t *testing.T) {
		chat := newStubChannel("chat")
		engine := newTestEngine(t, testEngineConfig(), nil, chat)

		payload := &models.AlertPayload{Name: "flappy", Severity: models.SeverityInfo}
		for i := 0; i < 3; i++ {
			result := engine.CreateAlert(context.Background(), payload)
			assert.Equal(t, "sent", result.Status)
		}

		result := engine.CreateAlert(context.Background(), payload)
		assert.Equal(t, "suppressed", result.Status)
		assert.Equal(t, models.SuppressedRateLimited, result.Reason)
		assert.Equal(t, 3, chat.sendCount(), "suppressed occurrence never dispatched")
		assert.Len(t, engine.ActiveAlerts(nil), 3, "suppressed occurrence never stored")
	})

	t.Run("rule suppression", func(t *testing.T) {
		chat := newStubChannel("chat")
		rules := &config.RuleSet{
			SuppressionRules: []models.AlertRule{
				{Name: "mute-staging", Labels: map[string]string{"env": "staging"}, Action: models.RuleActionSuppress},
			},
		}
		engine := newTestEngine(t, testEngineConfig(), rules, chat)

		result := engine.CreateAlert(context.Background(), &models.AlertPayload{
			Name:     "cpu_high",
			Severity: models.SeverityInfo,
			Labels:   map[string]string{"env": "staging"},
		})

		assert.Equal(t, "suppressed", result.Status)
		assert.Equal(t, models.SuppressedFiltered, result.Reason)
		assert.Equal(t, 0, chat.sendCount())
	})

	t.Run("correlations attached", func(t *testing.T) {
		chat := newStubChannel("chat")
		rules := &config.RuleSet{
			CorrelationRules: []models.CorrelationRule{
				{Name: "same-component", MatchComponent: true, MaxCorrelations: 10, Confidence: 0.9},
			},
		}
		engine := newTestEngine(t, testEngineConfig(), rules, chat)

		first := engine.CreateAlert(context.Background(), &models.AlertPayload{
			Name: "cpu_high", Severity: models.SeverityInfo, Component: "db",
		})
		second := engine.CreateAlert(context.Background(), &models.AlertPayload{
			Name: "mem_high", Severity: models.SeverityInfo, Component: "db",
		})

		stored, ok := engine.GetAlert(second.ID)
		require.True(t, ok)
		require.Len(t, stored.Correlations, 1)
		assert.Equal(t, []string{first.ID}, stored.Correlations[0].AlertIDs)
	})
}

func TestEngineSilenceSuppression(t *testing.T) {
	chat := newStubChannel("chat")
	engine := newTestEngine(t, testEngineConfig(), nil, chat)

	payload := &models.AlertPayload{Name: "disk_full", Severity: models.SeverityInfo, Component: "db"}
	first := engine.CreateAlert(context.Background(), payload)
	require.Equal(t, "sent", first.Status)

	_, err := engine.SilenceAlert(first.ID, time.Hour, "known issue")
	require.NoError(t, err)

	// Same identity, new occurrence: gated by the fingerprint silence.
	second := engine.CreateAlert(context.Background(), payload)
	assert.Equal(t, "suppressed", second.Status)
	assert.Equal(t, models.SuppressedSilenced, second.Reason)

	// A different identity is unaffected.
	other := engine.CreateAlert(context.Background(), &models.AlertPayload{
		Name: "other_alert", Severity: models.SeverityInfo,
	})
	assert.Equal(t, "sent", other.Status)
}

func TestEngineAcknowledgeResolve(t *testing.T) {
	chat := newStubChannel("chat")
	email := newStubChannel("email")
	engine := newTestEngine(t, testEngineConfig(), nil, chat, email)

	result := engine.CreateAlert(context.Background(), &models.AlertPayload{
		Name:     "cpu_high",
		Severity: models.SeverityWarning,
		Message:  "cpu at 97%",
	})

	alert, err := engine.Acknowledge(result.ID, "oncall")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAcknowledged, alert.Status)

	sendsBefore := chat.sendCount()
	alert, err = engine.Resolve(context.Background(), result.ID, "rebooted")
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, alert.Status)
	assert.Greater(t, chat.sendCount(), sendsBefore, "resolution notice dispatched")

	_, err = engine.Acknowledge(result.ID, "oncall")
	assert.ErrorIs(t, err, ErrAlertNotFound, "resolved alerts leave the active set")
}

func TestEngineEscalation(t *testing.T) {
	rules := &config.RuleSet{
		Policies: []models.EscalationPolicy{{
			Severity: models.SeverityCritical,
			Levels: []models.EscalationLevel{
				{Level: 1, Delay: 30 * time.Millisecond, Channels: []string{"pager"}},
				{Level: 2, Delay: 30 * time.Millisecond, Channels: []string{"pager"}},
			},
		}},
	}

	t.Run("fires through the levels", func(t *testing.T) {
		pager := newStubChannel("pager")
		chat := newStubChannel("chat")
		engine := newTestEngine(t, testEngineConfig(), rules, pager, chat)
		engine.Start(context.Background())
		defer engine.Shutdown(context.Background())

		result := engine.CreateAlert(context.Background(), &models.AlertPayload{
			Name: "db_down", Severity: models.SeverityCritical,
		})

		require.Eventually(t, func() bool {
			alert, ok := engine.GetAlert(result.ID)
			return ok && alert.EscalationLevel == 2
		}, time.Second, 10*time.Millisecond)

		// One send from ingestion (critical routes to pager) plus one per level.
		assert.Equal(t, 3, pager.sendCount())

		entries := engine.History(&models.AlertQuery{Action: models.ActionEscalated})
		assert.Len(t, entries, 2)
	})

	t.Run("acknowledge cancels pending escalation", func(t *testing.T) {
		pager := newStubChannel("pager")
		chat := newStubChannel("chat")
		slow := &config.RuleSet{
			Policies: []models.EscalationPolicy{{
				Severity: models.SeverityCritical,
				Levels: []models.EscalationLevel{
					{Level: 1, Delay: 200 * time.Millisecond, Channels: []string{"pager"}},
				},
			}},
		}
		engine := newTestEngine(t, testEngineConfig(), slow, pager, chat)
		engine.Start(context.Background())
		defer engine.Shutdown(context.Background())

		result := engine.CreateAlert(context.Background(), &models.AlertPayload{
			Name: "db_down", Severity: models.SeverityCritical,
		})

		sendsAfterCreate := pager.sendCount()

		time.Sleep(30 * time.Millisecond)
		_, err := engine.Acknowledge(result.ID, "oncall")
		require.NoError(t, err)

		time.Sleep(300 * time.Millisecond)
		assert.Equal(t, sendsAfterCreate, pager.sendCount(), "cancelled escalation never pages")

		alert, ok := engine.GetAlert(result.ID)
		require.True(t, ok)
		assert.Equal(t, 0, alert.EscalationLevel)
	})

	t.Run("warnings never enter the state machine", func(t *testing.T) {
		pager := newStubChannel("pager")
		chat := newStubChannel("chat")
		email := newStubChannel("email")
		engine := newTestEngine(t, testEngineConfig(), rules, pager, chat, email)
		engine.Start(context.Background())
		defer engine.Shutdown(context.Background())

		engine.CreateAlert(context.Background(), &models.AlertPayload{
			Name: "cpu_high", Severity: models.SeverityWarning,
		})

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, 0, pager.sendCount())
	})
}

func TestEngineApplyRules(t *testing.T) {
	chat := newStubChannel("chat")
	engine := newTestEngine(t, testEngineConfig(), nil, chat)

	payload := &models.AlertPayload{Name: "cpu_high", Severity: models.SeverityInfo, Component: "db"}
	result := engine.CreateAlert(context.Background(), payload)
	require.Equal(t, "sent", result.Status)

	engine.ApplyRules(&config.RuleSet{
		SuppressionRules: []models.AlertRule{
			{Name: "mute-db", Component: "db", Action: models.RuleActionSuppress},
		},
	})

	result = engine.CreateAlert(context.Background(), payload)
	assert.Equal(t, "suppressed", result.Status)
	assert.Equal(t, models.SuppressedFiltered, result.Reason)
}

func TestEngineSubscribe(t *testing.T) {
	chat := newStubChannel("chat")
	engine := newTestEngine(t, testEngineConfig(), nil, chat)

	events, cancel := engine.Subscribe()
	defer cancel()

	result := engine.CreateAlert(context.Background(), &models.AlertPayload{
		Name: "cpu_high", Severity: models.SeverityInfo,
	})

	created := <-events
	assert.Equal(t, models.EventCreated, created.Type)
	assert.Equal(t, result.ID, created.AlertID)

	dispatched := <-events
	assert.Equal(t, models.EventDispatched, dispatched.Type)
}

package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/netvigil/vigil-core/internal/channels"
	"github.com/netvigil/vigil-core/internal/config"
	"github.com/netvigil/vigil-core/internal/metrics"
	"github.com/netvigil/vigil-core/internal/models"
	"github.com/netvigil/vigil-core/internal/tracing"
	"github.com/netvigil/vigil-core/pkg/cache"
	"github.com/netvigil/vigil-core/pkg/logger"
)

const snapshotKey = "engine_state"

// Engine wires the alert pipeline together: normalize, gate, correlate,
// dispatch, store, escalate. One Engine instance owns all mutable alert
// state for the process.
type Engine struct {
	cfg        config.EngineConfig
	logger     logger.Logger
	store      *Store
	limiter    *RateLimiter
	rules      *RulesEngine
	correlator *CorrelationEngine
	dispatcher *Dispatcher
	escalation *EscalationManager
	events     *EventBus
	registry   *channels.Registry
	cache      cache.Valkey
	tracer     *tracing.PipelineTracer

	policyMu sync.RWMutex
	policies map[string]models.EscalationPolicy

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewEngine builds an Engine from configuration, the channel registry, and
// the initial rule set. Cache may be nil when persistence is disabled.
func NewEngine(cfg config.EngineConfig, rules *config.RuleSet, registry *channels.Registry, valkey cache.Valkey, log logger.Logger) *Engine {
	e := &Engine{
		cfg:        cfg,
		logger:     log,
		store:      NewStore(),
		limiter:    NewRateLimiter(cfg.MaxAlertsPerHour),
		rules:      NewRulesEngine(rules.SuppressionRules),
		correlator: NewCorrelationEngine(rules.CorrelationRules, cfg.CorrelationWindow),
		dispatcher: NewDispatcher(registry, log),
		events:     NewEventBus(0, log),
		registry:   registry,
		cache:      valkey,
		tracer:     tracing.NewPipelineTracer("vigil-core"),
		policies:   indexPolicies(rules.Policies),
		stopCh:     make(chan struct{}),
	}
	e.escalation = NewEscalationManager(rules.Policies, cfg.MaxEscalationLevel, cfg.EscalationSeverity, e.escalate, log)
	return e
}

// Start launches the escalation loop, retention cleanup, and optional
// snapshotting. It restores prior state from the cache when one is wired.
func (e *Engine) Start(ctx context.Context) {
	if e.cache != nil {
		e.rehydrate(ctx)
	}

	e.escalation.Start()

	e.wg.Add(1)
	go e.cleanupLoop()

	if e.cache != nil && e.cfg.SnapshotInterval > 0 {
		e.wg.Add(1)
		go e.snapshotLoop()
	}

	e.logger.Info("Alert engine started",
		"max_alerts_per_hour", e.cfg.MaxAlertsPerHour,
		"retention", e.cfg.RetentionPeriod.String(),
		"escalation_severity", e.cfg.EscalationSeverity)
}

// Shutdown stops background loops, takes a final snapshot, and closes the
// event bus. Safe to call once.
func (e *Engine) Shutdown(ctx context.Context) {
	close(e.stopCh)
	e.escalation.Stop()
	e.wg.Wait()

	if e.cache != nil {
		if err := e.cache.SaveSnapshot(ctx, snapshotKey, e.store.Snapshot()); err != nil {
			e.logger.Warn("Final state snapshot failed", "error", err)
		}
	}
	e.events.Close()
	e.logger.Info("Alert engine stopped")
}

// ApplyRules swaps in a new rule set. Pending escalations keep the timers
// they were scheduled with; only future scheduling sees the new policies.
func (e *Engine) ApplyRules(rs *config.RuleSet) {
	e.rules.Update(rs.SuppressionRules)
	e.correlator.Update(rs.CorrelationRules)
	e.escalation.UpdatePolicies(rs.Policies)

	e.policyMu.Lock()
	e.policies = indexPolicies(rs.Policies)
	e.policyMu.Unlock()

	e.logger.Info("Alert rules applied",
		"suppression_rules", len(rs.SuppressionRules),
		"correlation_rules", len(rs.CorrelationRules),
		"escalation_policies", len(rs.Policies))
}

// CreateAlert runs the full ingestion pipeline for one payload. Suppressed
// alerts short-circuit before correlation, dispatch, and storage.
func (e *Engine) CreateAlert(ctx context.Context, payload *models.AlertPayload) *models.CreateAlertResult {
	alert := Normalize(payload)
	alert.Fingerprint = Fingerprint(alert)

	ctx, span := e.tracer.StartStage(ctx, "create", alert.ID)
	defer span.End()

	if suppressed, reason := e.gate(alert); suppressed {
		metrics.AlertsProcessed.WithLabelValues(alert.Severity, "suppressed").Inc()
		metrics.AlertsSuppressed.WithLabelValues(reason).Inc()
		e.logger.Debug("Alert suppressed",
			"alert_id", alert.ID, "name", alert.Name, "reason", reason)
		return &models.CreateAlertResult{
			ID:     alert.ID,
			Status: "suppressed",
			Reason: reason,
		}
	}

	correlations := e.correlator.Correlate(alert)
	alert.Correlations = correlations
	for i := range correlations {
		metrics.CorrelationsFound.WithLabelValues(correlations[i].RuleName).Inc()
	}

	_, dispatchSpan := e.tracer.StartStage(ctx, "dispatch", alert.ID)
	results := e.dispatcher.Dispatch(ctx, alert)
	tracing.EndStage(dispatchSpan, nil)

	alert.NotificationsSent = successfulChannels(results)
	e.store.Add(alert)
	e.updateActiveGauge()

	e.escalation.Schedule(alert)

	metrics.AlertsProcessed.WithLabelValues(alert.Severity, "sent").Inc()
	e.events.Publish(models.EventCreated, alert.ID, cloneAlert(alert))
	e.events.Publish(models.EventDispatched, alert.ID, results)

	e.logger.Info("Alert created",
		"alert_id", alert.ID,
		"name", alert.Name,
		"severity", alert.Severity,
		"channels", len(results),
		"correlations", len(correlations))

	return &models.CreateAlertResult{
		ID:      alert.ID,
		Status:  "sent",
		Results: results,
	}
}

// gate applies the three suppression checks in order: active silence,
// hourly rate limit, then configured rules.
func (e *Engine) gate(alert *models.Alert) (bool, string) {
	if e.store.IsSilenced(alert.Fingerprint) {
		return true, models.SuppressedSilenced
	}
	if e.limiter.Limited(alert.Name, alert.Severity) {
		return true, models.SuppressedRateLimited
	}
	if suppressed, _ := e.rules.Suppressed(alert); suppressed {
		return true, models.SuppressedFiltered
	}
	return false, ""
}

// Acknowledge marks an alert acknowledged and cancels its escalation.
func (e *Engine) Acknowledge(id, by string) (*models.Alert, error) {
	alert, err := e.store.Acknowledge(id, by)
	if err != nil {
		return nil, err
	}
	if e.escalation.Cancel(id) {
		metrics.EscalationsCancelled.WithLabelValues(alert.Severity).Inc()
	}
	e.events.Publish(models.EventAcknowledged, id, alert)
	e.logger.Info("Alert acknowledged", "alert_id", id, "by", by)
	return alert, nil
}

// Resolve closes an alert, cancels escalation, and sends a resolution
// notification through the alert's normal channels.
func (e *Engine) Resolve(ctx context.Context, id, resolution string) (*models.Alert, error) {
	alert, err := e.store.Resolve(id, resolution)
	if err != nil {
		return nil, err
	}
	if e.escalation.Cancel(id) {
		metrics.EscalationsCancelled.WithLabelValues(alert.Severity).Inc()
	}
	e.updateActiveGauge()

	notice := cloneAlert(alert)
	notice.Message = fmt.Sprintf("Resolved: %s", alert.Message)
	e.dispatcher.Dispatch(ctx, notice)

	e.events.Publish(models.EventResolved, id, alert)
	e.logger.Info("Alert resolved", "alert_id", id, "resolution", resolution)
	return alert, nil
}

// SilenceAlert silences the alert's fingerprint for the given duration, so
// future occurrences of the same alert are gated at ingestion.
func (e *Engine) SilenceAlert(id string, duration time.Duration, reason string) (*models.Silence, error) {
	silence, err := e.store.Silence(id, duration, reason)
	if err != nil {
		return nil, err
	}
	e.events.Publish(models.EventSilenced, id, silence)
	e.logger.Info("Alert silenced",
		"alert_id", id, "duration", duration.String(), "reason", reason)
	return silence, nil
}

// escalate is the timer callback. The status check lives inside
// MarkEscalated, so a cancel that landed first always wins.
func (e *Engine) escalate(alertID string, level int) bool {
	policyLevel, ok := e.policyLevel(alertID, level)
	if !ok {
		return false
	}

	alert, err := e.store.MarkEscalated(alertID, level)
	if err != nil {
		e.logger.Debug("Escalation skipped", "alert_id", alertID, "reason", err.Error())
		return false
	}

	notice := cloneAlert(alert)
	notice.Message = fmt.Sprintf("[ESCALATION L%d] %s", level, alert.Message)
	if notice.Annotations == nil {
		notice.Annotations = map[string]string{}
	}
	notice.Annotations["escalation_level"] = strconv.Itoa(level)
	if len(policyLevel.Recipients) > 0 {
		notice.Annotations["recipients"] = strings.Join(policyLevel.Recipients, ",")
	}

	ctx, span := e.tracer.StartStage(context.Background(), "escalate", alertID)
	results := e.dispatcher.DispatchTo(ctx, notice, policyLevel.Channels)
	tracing.EndStage(span, nil)

	e.store.AppendNotifications(alertID, successfulChannels(results))
	e.events.Publish(models.EventEscalated, alertID, alert)

	e.logger.Warn("Alert escalated",
		"alert_id", alertID,
		"level", level,
		"severity", alert.Severity,
		"channels", policyLevel.Channels)
	return true
}

func (e *Engine) policyLevel(alertID string, level int) (models.EscalationLevel, bool) {
	alert, ok := e.store.Get(alertID)
	if !ok {
		return models.EscalationLevel{}, false
	}

	e.policyMu.RLock()
	policy, ok := e.policies[alert.Severity]
	e.policyMu.RUnlock()
	if !ok || level < 1 || level > len(policy.Levels) {
		return models.EscalationLevel{}, false
	}
	return policy.Levels[level-1], true
}

// ActiveAlerts returns filtered active alerts, newest first.
func (e *Engine) ActiveAlerts(query *models.AlertQuery) []*models.Alert {
	return e.store.ActiveAlerts(query)
}

// GetAlert looks up one active alert by id.
func (e *Engine) GetAlert(id string) (*models.Alert, bool) {
	return e.store.Get(id)
}

// History returns filtered history entries, newest first.
func (e *Engine) History(query *models.AlertQuery) []models.AlertHistoryEntry {
	return e.store.History(query)
}

// Metrics returns aggregate counts over the store.
func (e *Engine) Metrics() *models.AlertMetrics {
	return e.store.Metrics()
}

// ChannelStats reports per-channel delivery statistics.
func (e *Engine) ChannelStats() []models.ChannelStats {
	return e.registry.Stats()
}

// Subscribe attaches a lifecycle event consumer. The returned cancel func
// must be called when the consumer goes away.
func (e *Engine) Subscribe() (<-chan models.LifecycleEvent, func()) {
	return e.events.Subscribe()
}

func (e *Engine) cleanupLoop() {
	defer e.wg.Done()

	interval := e.cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			result := e.store.Cleanup(e.cfg.RetentionPeriod)
			metrics.CleanupRuns.Inc()
			metrics.CleanupPruned.WithLabelValues("history").Add(float64(result.HistoryPruned))
			metrics.CleanupPruned.WithLabelValues("silences").Add(float64(result.SilencesPruned))
			metrics.CleanupPruned.WithLabelValues("resolved").Add(float64(result.ResolvedPruned))
			e.events.Publish(models.EventCleanup, "", result)
			if result.HistoryPruned+result.SilencesPruned+result.ResolvedPruned > 0 {
				e.logger.Debug("Retention cleanup completed",
					"history_pruned", result.HistoryPruned,
					"silences_pruned", result.SilencesPruned,
					"resolved_pruned", result.ResolvedPruned)
			}
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) snapshotLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := e.cache.SaveSnapshot(ctx, snapshotKey, e.store.Snapshot()); err != nil {
				e.logger.Warn("State snapshot failed", "error", err)
			}
			cancel()
		case <-e.stopCh:
			return
		}
	}
}

// rehydrate restores prior engine state from the cache. Restore failures are
// logged and ignored; the engine starts empty.
func (e *Engine) rehydrate(ctx context.Context) {
	data, err := e.cache.LoadSnapshot(ctx, snapshotKey)
	if err != nil || len(data) == 0 {
		return
	}

	var snap StoreSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		e.logger.Warn("Discarding unreadable state snapshot", "error", err)
		return
	}

	e.store.Restore(&snap)
	e.updateActiveGauge()
	e.logger.Info("Engine state restored from snapshot",
		"active_alerts", len(snap.Active))
}

func (e *Engine) updateActiveGauge() {
	for severity, count := range e.store.ActiveCountsBySeverity() {
		metrics.ActiveAlerts.WithLabelValues(severity).Set(float64(count))
	}
}

func successfulChannels(results map[string]models.ChannelResult) []string {
	sent := make([]string, 0, len(results))
	for name, result := range results {
		if result.Success {
			sent = append(sent, name)
		}
	}
	return sent
}

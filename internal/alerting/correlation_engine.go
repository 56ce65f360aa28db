package alerting

import (
	"sync"
	"time"

	"github.com/netvigil/vigil-core/internal/models"
)

// bufferedAlert is the slice of alert state the correlation window needs;
// holding full alerts would keep dispatch results alive for no reason.
type bufferedAlert struct {
	id        string
	component string
	labels    map[string]string
	timestamp time.Time
}

// CorrelationEngine keeps a sliding window of recently-seen unsuppressed
// alerts and groups a new alert with window entries that share a component,
// share a label value, or arrived within a rule's time window. Correlations
// are advisory metadata; they never suppress or escalate anything themselves.
type CorrelationEngine struct {
	mu     sync.Mutex
	rules  []models.CorrelationRule
	window time.Duration
	buffer []bufferedAlert
	nowFn  func() time.Time
}

func NewCorrelationEngine(rules []models.CorrelationRule, window time.Duration) *CorrelationEngine {
	return &CorrelationEngine{
		rules:  rules,
		window: window,
		nowFn:  time.Now,
	}
}

// Update atomically replaces the correlation rules (hot reload).
func (e *CorrelationEngine) Update(rules []models.CorrelationRule) {
	e.mu.Lock()
	e.rules = rules
	e.mu.Unlock()
}

// Correlate evaluates every rule against the window, appends the alert to the
// window, and prunes entries that have aged out. The whole step runs under
// one lock so concurrent evaluations cannot observe a half-updated window.
func (e *CorrelationEngine) Correlate(alert *models.Alert) []models.Correlation {
	e.mu.Lock()
	defer e.mu.Unlock()

	var correlations []models.Correlation
	for _, rule := range e.rules {
		var matched []string
		for _, prev := range e.buffer {
			if prev.id == alert.ID {
				continue
			}
			if correlationRuleMatches(&rule, alert, &prev) {
				matched = append(matched, prev.id)
				if len(matched) >= rule.MaxCorrelations {
					break
				}
			}
		}
		if len(matched) > 0 {
			correlations = append(correlations, models.Correlation{
				RuleName:   rule.Name,
				AlertIDs:   matched,
				Confidence: rule.Confidence,
			})
		}
	}

	e.buffer = append(e.buffer, bufferedAlert{
		id:        alert.ID,
		component: alert.Component,
		labels:    alert.Labels,
		timestamp: alert.Timestamp,
	})
	e.prune()

	return correlations
}

func correlationRuleMatches(rule *models.CorrelationRule, alert *models.Alert, prev *bufferedAlert) bool {
	if rule.MatchComponent && alert.Component != "" && alert.Component == prev.component {
		return true
	}

	for _, key := range rule.MatchLabels {
		v, ok := alert.Labels[key]
		if ok && v != "" && prev.labels[key] == v {
			return true
		}
	}

	if rule.TimeWindow > 0 {
		delta := alert.Timestamp.Sub(prev.timestamp)
		if delta < 0 {
			delta = -delta
		}
		if delta <= rule.TimeWindow {
			return true
		}
	}

	return false
}

func (e *CorrelationEngine) prune() {
	cutoff := e.nowFn().Add(-e.window)
	kept := e.buffer[:0]
	for _, entry := range e.buffer {
		if entry.timestamp.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	e.buffer = kept
}

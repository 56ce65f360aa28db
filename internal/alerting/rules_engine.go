package alerting

import (
	"sync"
	"time"

	"github.com/netvigil/vigil-core/internal/models"
)

// RulesEngine evaluates ordered suppression/allow rules. A rule matches only
// when every specified predicate holds; the first matching rule decides the
// outcome and an unmatched alert is allowed.
type RulesEngine struct {
	mu    sync.RWMutex
	rules []models.AlertRule
	nowFn func() time.Time
}

func NewRulesEngine(rules []models.AlertRule) *RulesEngine {
	return &RulesEngine{
		rules: rules,
		nowFn: time.Now,
	}
}

// Update atomically replaces the rule list (hot reload).
func (e *RulesEngine) Update(rules []models.AlertRule) {
	e.mu.Lock()
	e.rules = rules
	e.mu.Unlock()
}

// Suppressed reports whether the alert is blocked by the first matching rule,
// along with that rule's name.
func (e *RulesEngine) Suppressed(alert *models.Alert) (bool, string) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.nowFn()
	for _, rule := range e.rules {
		if !ruleMatches(&rule, alert, now) {
			continue
		}
		if rule.Action == models.RuleActionSuppress {
			return true, rule.Name
		}
		// First match wins, suppress or allow.
		return false, rule.Name
	}

	return false, ""
}

func ruleMatches(rule *models.AlertRule, alert *models.Alert, now time.Time) bool {
	if len(rule.Severities) > 0 {
		found := false
		for _, s := range rule.Severities {
			if s == alert.Severity {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if rule.Component != "" && rule.Component != alert.Component {
		return false
	}

	for k, v := range rule.Labels {
		if alert.Labels[k] != v {
			return false
		}
	}

	if rule.TimeWindow > 0 && now.Sub(alert.Timestamp) > rule.TimeWindow {
		return false
	}

	return true
}

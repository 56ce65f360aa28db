package models

import "time"

// Rule actions. The zero value (empty string) means allow.
const (
	RuleActionSuppress = "suppress"
	RuleActionAllow    = "allow"
)

// AlertRule is an ordered suppression/allow predicate. All specified fields
// must match for the rule to apply; the first matching rule wins and an
// unmatched alert defaults to allow.
type AlertRule struct {
	Name       string            `json:"name"`
	Severities []string          `json:"severities,omitempty"`
	Component  string            `json:"component,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
	TimeWindow time.Duration     `json:"time_window,omitempty"`
	Action     string            `json:"action"` // suppress or allow
}

// CorrelationRule groups recent alerts that share a component, share a label
// value, or fall within TimeWindow of each other.
type CorrelationRule struct {
	Name            string        `json:"name"`
	MatchComponent  bool          `json:"match_component"`
	MatchLabels     []string      `json:"match_labels,omitempty"`
	TimeWindow      time.Duration `json:"time_window,omitempty"`
	MaxCorrelations int           `json:"max_correlations"`
	Confidence      float64       `json:"confidence"`
}

// Correlation is advisory metadata attached to an alert: which rule grouped
// it with which recent alerts, and how confident the rule is.
type Correlation struct {
	RuleName   string   `json:"rule_name"`
	AlertIDs   []string `json:"alert_ids"`
	Confidence float64  `json:"confidence"`
}

// EscalationLevel describes one tier of re-notification. Level k fires Delay
// after level k-1 was entered, provided the alert is still firing.
type EscalationLevel struct {
	Level      int           `json:"level"`
	Delay      time.Duration `json:"delay"`
	Channels   []string      `json:"channels"`
	Recipients []string      `json:"recipients,omitempty"`
}

// EscalationPolicy is the ordered level list applied to one severity.
type EscalationPolicy struct {
	Severity string            `json:"severity"`
	Levels   []EscalationLevel `json:"levels"`
}

// LifecycleEvent is published on every alert state transition so logging,
// metrics, and streaming consumers can react without being wired into the
// pipeline itself.
type LifecycleEvent struct {
	Type      string      `json:"type"` // created, dispatched, escalated, resolved, acknowledged, silenced, error, cleanup_completed
	AlertID   string      `json:"alert_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Lifecycle event types.
const (
	EventCreated      = "created"
	EventDispatched   = "dispatched"
	EventEscalated    = "escalated"
	EventResolved     = "resolved"
	EventAcknowledged = "acknowledged"
	EventSilenced     = "silenced"
	EventError        = "error"
	EventCleanup      = "cleanup_completed"
)

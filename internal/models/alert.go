package models

import "time"

// Alert severities. Anything else is normalized to SeverityWarning.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert lifecycle statuses. firing -> acknowledged and firing -> resolved are
// the only valid transitions.
const (
	StatusFiring       = "firing"
	StatusAcknowledged = "acknowledged"
	StatusResolved     = "resolved"
)

// Suppression reasons returned when an alert is gated before dispatch.
const (
	SuppressedSilenced    = "silenced"
	SuppressedRateLimited = "rate_limited"
	SuppressedFiltered    = "filtered"
)

type Alert struct {
	ID          string             `json:"id"`
	Fingerprint string             `json:"fingerprint"`
	Name        string             `json:"name"`
	Severity    string             `json:"severity"` // critical, warning, info
	Component   string             `json:"component"`
	Message     string             `json:"message"`
	Status      string             `json:"status"` // firing, acknowledged, resolved
	Labels      map[string]string  `json:"labels"`
	Annotations map[string]string  `json:"annotations"`
	Values      map[string]float64 `json:"values,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`

	EscalationLevel   int           `json:"escalation_level"`
	AcknowledgedBy    string        `json:"acknowledged_by,omitempty"`
	AcknowledgedAt    *time.Time    `json:"acknowledged_at,omitempty"`
	Resolution        string        `json:"resolution,omitempty"`
	ResolvedAt        *time.Time    `json:"resolved_at,omitempty"`
	Correlations      []Correlation `json:"correlations,omitempty"`
	NotificationsSent []string      `json:"notifications_sent,omitempty"`
}

// AlertPayload is the loosely-structured ingestion contract. Every field is
// optional; missing data degrades to defaults rather than erroring.
type AlertPayload struct {
	Name        string             `json:"name"`
	Severity    string             `json:"severity"`
	Component   string             `json:"component"`
	Message     string             `json:"message"`
	Labels      map[string]string  `json:"labels"`
	Annotations map[string]string  `json:"annotations"`
	Values      map[string]float64 `json:"values"`
	Timestamp   *time.Time         `json:"timestamp"`
}

// AlertQuery filters the active set or history.
type AlertQuery struct {
	Severity  string `json:"severity,omitempty" form:"severity"`
	Status    string `json:"status,omitempty" form:"status"`
	Component string `json:"component,omitempty" form:"component"`
	Action    string `json:"action,omitempty" form:"action"`
	Limit     int    `json:"limit,omitempty" form:"limit"`
}

// History entry actions.
const (
	ActionCreated      = "created"
	ActionAcknowledged = "acknowledged"
	ActionResolved     = "resolved"
	ActionEscalated    = "escalated"
	ActionSilenced     = "silenced"
)

type AlertHistoryEntry struct {
	AlertID     string    `json:"alert_id"`
	Fingerprint string    `json:"fingerprint"`
	Name        string    `json:"name"`
	Severity    string    `json:"severity"`
	Component   string    `json:"component"`
	Action      string    `json:"action"`
	Actor       string    `json:"actor,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Silence suppresses every alert sharing a fingerprint until it expires. It
// is keyed by fingerprint, not by the occurrence id it was created from.
type Silence struct {
	Fingerprint string    `json:"fingerprint"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
	Expires     time.Time `json:"expires"`
}

// ChannelResult records one channel's dispatch outcome. A failed channel
// never aborts the remaining channels.
type ChannelResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CreateAlertResult is the ingestion response: status is "sent" when dispatch
// was attempted (inspect Results for per-channel outcomes) or "suppressed"
// with a reason when the alert was gated.
type CreateAlertResult struct {
	ID      string                   `json:"id"`
	Status  string                   `json:"status"` // sent, suppressed
	Reason  string                   `json:"reason,omitempty"`
	Results map[string]ChannelResult `json:"results,omitempty"`
}

// AlertMetrics is the management-surface snapshot of engine state.
type AlertMetrics struct {
	ActiveTotal       int            `json:"active_total"`
	HistoryTotal      int            `json:"history_total"`
	SilencesActive    int            `json:"silences_active"`
	ActiveBySeverity  map[string]int `json:"active_by_severity"`
	ActiveByStatus    map[string]int `json:"active_by_status"`
	ActiveByComponent map[string]int `json:"active_by_component"`
	EscalatedTotal    int            `json:"escalated_total"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

// ChannelStats is the queryable read side of the channel capability.
type ChannelStats struct {
	Name        string    `json:"name"`
	Enabled     bool      `json:"enabled"`
	LastUsed    time.Time `json:"last_used"`
	ErrorCount  int64     `json:"error_count"`
	SuccessRate float64   `json:"success_rate"`
}

package alerting

import (
	"time"

	"github.com/google/uuid"

	"github.com/netvigil/vigil-core/internal/models"
)

// Normalize fills a loosely-structured ingestion payload into a canonical
// Alert. Nothing is rejected: unknown or missing data degrades to defaults.
func Normalize(payload *models.AlertPayload) *models.Alert {
	if payload == nil {
		payload = &models.AlertPayload{}
	}

	name := payload.Name
	if name == "" {
		name = "unknown_alert"
	}

	severity := payload.Severity
	switch severity {
	case models.SeverityCritical, models.SeverityWarning, models.SeverityInfo:
	default:
		severity = models.SeverityWarning
	}

	timestamp := time.Now()
	if payload.Timestamp != nil && !payload.Timestamp.IsZero() {
		timestamp = *payload.Timestamp
	}

	labels := payload.Labels
	if labels == nil {
		labels = map[string]string{}
	}
	annotations := payload.Annotations
	if annotations == nil {
		annotations = map[string]string{}
	}

	return &models.Alert{
		ID:          uuid.NewString(),
		Name:        name,
		Severity:    severity,
		Component:   payload.Component,
		Message:     payload.Message,
		Status:      models.StatusFiring,
		Labels:      labels,
		Annotations: annotations,
		Values:      payload.Values,
		Timestamp:   timestamp,
	}
}

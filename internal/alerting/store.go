package alerting

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/netvigil/vigil-core/internal/models"
)

// ErrAlertNotFound is returned by acknowledge/resolve/silence for unknown
// alert ids. This is the one place the engine fails loudly instead of
// degrading.
var ErrAlertNotFound = errors.New("alert not found")

// Store owns the engine's in-memory state: the active-alert map, the
// append-only history, the silence registry, and recently resolved alerts
// awaiting retention. All mutation is serialized behind one mutex.
type Store struct {
	mu        sync.RWMutex
	active    map[string]*models.Alert
	resolved  map[string]*models.Alert
	history   []models.AlertHistoryEntry
	silences  map[string]models.Silence
	escalated int
	nowFn     func() time.Time
}

func NewStore() *Store {
	return &Store{
		active:   make(map[string]*models.Alert),
		resolved: make(map[string]*models.Alert),
		silences: make(map[string]models.Silence),
		nowFn:    time.Now,
	}
}

func cloneAlert(alert *models.Alert) *models.Alert {
	clone := *alert
	clone.Labels = cloneStringMap(alert.Labels)
	clone.Annotations = cloneStringMap(alert.Annotations)
	if alert.Values != nil {
		clone.Values = make(map[string]float64, len(alert.Values))
		for k, v := range alert.Values {
			clone.Values[k] = v
		}
	}
	clone.Correlations = append([]models.Correlation(nil), alert.Correlations...)
	clone.NotificationsSent = append([]string(nil), alert.NotificationsSent...)
	return &clone
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Add records a freshly created alert in the active set and appends the
// "created" history entry.
func (s *Store) Add(alert *models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active[alert.ID] = cloneAlert(alert)
	s.appendHistoryLocked(alert, models.ActionCreated, "", "")
}

// Get returns a copy of an alert from the active set.
func (s *Store) Get(id string) (*models.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.active[id]
	if !ok {
		return nil, false
	}
	return cloneAlert(alert), true
}

// Acknowledge transitions firing -> acknowledged. The alert stays active.
func (s *Store) Acknowledge(id, by string) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.active[id]
	if !ok {
		return nil, ErrAlertNotFound
	}

	now := s.nowFn()
	alert.Status = models.StatusAcknowledged
	alert.AcknowledgedBy = by
	alert.AcknowledgedAt = &now
	s.appendHistoryLocked(alert, models.ActionAcknowledged, by, "")

	return cloneAlert(alert), nil
}

// Resolve transitions an active alert to resolved and moves it out of the
// active set. The entry stays in the resolved map until retention cleanup.
func (s *Store) Resolve(id, resolution string) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.active[id]
	if !ok {
		return nil, ErrAlertNotFound
	}

	now := s.nowFn()
	alert.Status = models.StatusResolved
	alert.Resolution = resolution
	alert.ResolvedAt = &now
	delete(s.active, id)
	s.resolved[id] = alert
	s.appendHistoryLocked(alert, models.ActionResolved, "", resolution)

	return cloneAlert(alert), nil
}

// MarkEscalated bumps the alert's escalation level and records history. The
// status check and the increment are atomic: once acknowledge or resolve has
// landed, a stale escalation timer can never advance the alert.
func (s *Store) MarkEscalated(id string, level int) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.active[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	if alert.Status != models.StatusFiring {
		return nil, fmt.Errorf("alert %s is %s, not firing", id, alert.Status)
	}

	alert.EscalationLevel = level
	s.escalated++
	s.appendHistoryLocked(alert, models.ActionEscalated, "", "")

	return cloneAlert(alert), nil
}

// AppendNotifications records which channels a dispatch reached.
func (s *Store) AppendNotifications(id string, sent []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if alert, ok := s.active[id]; ok {
		alert.NotificationsSent = append(alert.NotificationsSent, sent...)
	}
}

// Silence registers a fingerprint-keyed silence and records history against
// the alert it was created from.
func (s *Store) Silence(id string, duration time.Duration, reason string) (*models.Silence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.active[id]
	if !ok {
		return nil, ErrAlertNotFound
	}

	now := s.nowFn()
	silence := models.Silence{
		Fingerprint: alert.Fingerprint,
		Reason:      reason,
		CreatedAt:   now,
		Expires:     now.Add(duration),
	}
	s.silences[alert.Fingerprint] = silence
	s.appendHistoryLocked(alert, models.ActionSilenced, "", reason)

	return &silence, nil
}

// IsSilenced reports whether a fingerprint has an unexpired silence.
func (s *Store) IsSilenced(fingerprint string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	silence, ok := s.silences[fingerprint]
	return ok && s.nowFn().Before(silence.Expires)
}

func (s *Store) appendHistoryLocked(alert *models.Alert, action, actor, detail string) {
	s.history = append(s.history, models.AlertHistoryEntry{
		AlertID:     alert.ID,
		Fingerprint: alert.Fingerprint,
		Name:        alert.Name,
		Severity:    alert.Severity,
		Component:   alert.Component,
		Action:      action,
		Actor:       actor,
		Detail:      detail,
		Timestamp:   s.nowFn(),
	})
}

// ActiveAlerts returns filtered copies of the active set, newest first.
func (s *Store) ActiveAlerts(query *models.AlertQuery) []*models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Alert
	for _, alert := range s.active {
		if query != nil {
			if query.Severity != "" && alert.Severity != query.Severity {
				continue
			}
			if query.Status != "" && alert.Status != query.Status {
				continue
			}
			if query.Component != "" && alert.Component != query.Component {
				continue
			}
		}
		out = append(out, cloneAlert(alert))
	}

	sortAlertsByTimestamp(out)
	if query != nil && query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out
}

// History returns filtered history entries, newest first.
func (s *Store) History(query *models.AlertQuery) []models.AlertHistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.AlertHistoryEntry
	for i := len(s.history) - 1; i >= 0; i-- {
		entry := s.history[i]
		if query != nil {
			if query.Action != "" && entry.Action != query.Action {
				continue
			}
			if query.Severity != "" && entry.Severity != query.Severity {
				continue
			}
			if query.Component != "" && entry.Component != query.Component {
				continue
			}
		}
		out = append(out, entry)
		if query != nil && query.Limit > 0 && len(out) >= query.Limit {
			break
		}
	}
	return out
}

// Metrics computes the management-surface snapshot.
func (s *Store) Metrics() *models.AlertMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := &models.AlertMetrics{
		ActiveTotal:       len(s.active),
		HistoryTotal:      len(s.history),
		ActiveBySeverity:  make(map[string]int),
		ActiveByStatus:    make(map[string]int),
		ActiveByComponent: make(map[string]int),
		EscalatedTotal:    s.escalated,
		GeneratedAt:       s.nowFn(),
	}

	now := s.nowFn()
	for _, silence := range s.silences {
		if now.Before(silence.Expires) {
			m.SilencesActive++
		}
	}

	for _, alert := range s.active {
		m.ActiveBySeverity[alert.Severity]++
		m.ActiveByStatus[alert.Status]++
		if alert.Component != "" {
			m.ActiveByComponent[alert.Component]++
		}
	}

	return m
}

// ActiveCountsBySeverity feeds the Prometheus active-alert gauge.
func (s *Store) ActiveCountsBySeverity() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[string]int{
		models.SeverityCritical: 0,
		models.SeverityWarning:  0,
		models.SeverityInfo:     0,
	}
	for _, alert := range s.active {
		counts[alert.Severity]++
	}
	return counts
}

// CleanupResult reports what one retention pass dropped.
type CleanupResult struct {
	HistoryPruned  int
	SilencesPruned int
	ResolvedPruned int
}

// Cleanup drops history entries and resolved alerts older than the retention
// period, plus expired silences. Active alerts are exempt regardless of age.
func (s *Store) Cleanup(retention time.Duration) CleanupResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	cutoff := now.Add(-retention)
	var result CleanupResult

	kept := s.history[:0]
	for _, entry := range s.history {
		if entry.Timestamp.After(cutoff) {
			kept = append(kept, entry)
		} else {
			result.HistoryPruned++
		}
	}
	s.history = kept

	for fp, silence := range s.silences {
		if !now.Before(silence.Expires) {
			delete(s.silences, fp)
			result.SilencesPruned++
		}
	}

	for id, alert := range s.resolved {
		if alert.ResolvedAt != nil && alert.ResolvedAt.Before(cutoff) {
			delete(s.resolved, id)
			result.ResolvedPruned++
		}
	}

	return result
}

// Snapshot export/import for best-effort cache rehydration.

type StoreSnapshot struct {
	Active   []*models.Alert  `json:"active"`
	Silences []models.Silence `json:"silences"`
	TakenAt  time.Time        `json:"taken_at"`
}

func (s *Store) Snapshot() *StoreSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &StoreSnapshot{TakenAt: s.nowFn()}
	for _, alert := range s.active {
		snap.Active = append(snap.Active, cloneAlert(alert))
	}
	for _, silence := range s.silences {
		snap.Silences = append(snap.Silences, silence)
	}
	return snap
}

// Restore loads a snapshot into an empty store. Existing entries win over
// snapshot entries with the same id.
func (s *Store) Restore(snap *StoreSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, alert := range snap.Active {
		if _, ok := s.active[alert.ID]; !ok {
			s.active[alert.ID] = cloneAlert(alert)
		}
	}
	now := s.nowFn()
	for _, silence := range snap.Silences {
		if now.Before(silence.Expires) {
			s.silences[silence.Fingerprint] = silence
		}
	}
}

func sortAlertsByTimestamp(alerts []*models.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].Timestamp.After(alerts[j].Timestamp)
	})
}

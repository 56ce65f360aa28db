package alerting

import (
	"container/heap"
	"strconv"
	"sync"
	"time"

	"github.com/netvigil/vigil-core/internal/metrics"
	"github.com/netvigil/vigil-core/internal/models"
	"github.com/netvigil/vigil-core/pkg/logger"
)

// escalationEntry is one pending delayed transition: fire level `level` for
// alert `alertID` at `fireAt`. Cancellation marks the entry; the run loop
// discards marked entries when they surface.
type escalationEntry struct {
	fireAt   time.Time
	alertID  string
	severity string
	level    int
	seq      uint64
	canceled bool
}

type escalationQueue []*escalationEntry

func (q escalationQueue) Len() int { return len(q) }
func (q escalationQueue) Less(i, j int) bool {
	if q[i].fireAt.Equal(q[j].fireAt) {
		return q[i].seq < q[j].seq
	}
	return q[i].fireAt.Before(q[j].fireAt)
}
func (q escalationQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *escalationQueue) Push(x interface{}) { *q = append(*q, x.(*escalationEntry)) }
func (q *escalationQueue) Pop() interface{} {
	old := *q
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return entry
}

// fireFunc re-dispatches one escalation level. It must re-check the alert's
// current status and return false when the alert is no longer firing; the
// manager only schedules the next level on true.
type fireFunc func(alertID string, level int) bool

// EscalationManager drives tiered re-notification for unresolved alerts as a
// keyed, cancellable delay queue. Acknowledge/resolve cancel by alert id;
// cancellation wins every race with natural firing because the fire callback
// re-checks status under the store lock.
type EscalationManager struct {
	mu       sync.Mutex
	pq       escalationQueue
	pending  map[string]*escalationEntry
	policies map[string]models.EscalationPolicy
	maxLevel int
	minRank  int
	seq      uint64

	fire   fireFunc
	wake   chan struct{}
	stopCh chan struct{}
	done   chan struct{}
	nowFn  func() time.Time
	logger logger.Logger
}

func NewEscalationManager(policies []models.EscalationPolicy, maxLevel int, minSeverity string, fire fireFunc, log logger.Logger) *EscalationManager {
	m := &EscalationManager{
		pending:  make(map[string]*escalationEntry),
		policies: indexPolicies(policies),
		maxLevel: maxLevel,
		minRank:  severityRank(minSeverity),
		fire:     fire,
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		nowFn:    time.Now,
		logger:   log,
	}
	heap.Init(&m.pq)
	return m
}

func indexPolicies(policies []models.EscalationPolicy) map[string]models.EscalationPolicy {
	idx := make(map[string]models.EscalationPolicy, len(policies))
	for _, p := range policies {
		idx[p.Severity] = p
	}
	return idx
}

func severityRank(severity string) int {
	switch severity {
	case models.SeverityCritical:
		return 2
	case models.SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Start launches the timer loop.
func (m *EscalationManager) Start() {
	go m.run()
}

// Stop terminates the timer loop. Pending entries are dropped.
func (m *EscalationManager) Stop() {
	close(m.stopCh)
	<-m.done
}

// UpdatePolicies atomically replaces the policy set (hot reload). Already
// scheduled entries keep the delays they were scheduled with.
func (m *EscalationManager) UpdatePolicies(policies []models.EscalationPolicy) {
	m.mu.Lock()
	m.policies = indexPolicies(policies)
	m.mu.Unlock()
}

// Schedule enters a freshly created alert into the state machine: level 1 is
// queued to fire after the policy's first delay. Alerts below the severity
// threshold, or without a policy, never escalate.
func (m *EscalationManager) Schedule(alert *models.Alert) bool {
	if severityRank(alert.Severity) < m.minRank {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	policy, ok := m.policies[alert.Severity]
	if !ok || len(policy.Levels) == 0 || m.maxLevel < 1 {
		return false
	}

	m.scheduleLocked(alert.ID, alert.Severity, 1, policy.Levels[0].Delay)
	return true
}

// Cancel removes any pending escalation for the alert. Returns whether an
// entry was pending.
func (m *EscalationManager) Cancel(alertID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.pending[alertID]
	if !ok {
		return false
	}
	entry.canceled = true
	delete(m.pending, alertID)
	return true
}

// PendingCount reports queued, uncancelled entries. Management surface only.
func (m *EscalationManager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *EscalationManager) scheduleLocked(alertID, severity string, level int, delay time.Duration) {
	m.seq++
	entry := &escalationEntry{
		fireAt:   m.nowFn().Add(delay),
		alertID:  alertID,
		severity: severity,
		level:    level,
		seq:      m.seq,
	}
	m.pending[alertID] = entry
	heap.Push(&m.pq, entry)

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *EscalationManager) run() {
	defer close(m.done)

	for {
		m.mu.Lock()
		var wait time.Duration = -1
		for m.pq.Len() > 0 {
			head := m.pq[0]
			if head.canceled {
				heap.Pop(&m.pq)
				continue
			}
			if d := head.fireAt.Sub(m.nowFn()); d > 0 {
				wait = d
				break
			}

			heap.Pop(&m.pq)
			delete(m.pending, head.alertID)
			m.mu.Unlock()
			m.fireEntry(head)
			m.mu.Lock()
		}
		m.mu.Unlock()

		if wait < 0 {
			select {
			case <-m.wake:
			case <-m.stopCh:
				return
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-m.wake:
			timer.Stop()
		case <-m.stopCh:
			timer.Stop()
			return
		}
	}
}

func (m *EscalationManager) fireEntry(entry *escalationEntry) {
	// The callback re-checks alert status; a stale timer is a no-op.
	if !m.fire(entry.alertID, entry.level) {
		return
	}

	metrics.EscalationsFired.WithLabelValues(entry.severity, strconv.Itoa(entry.level)).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()

	policy, ok := m.policies[entry.severity]
	if !ok {
		return
	}
	next := entry.level + 1
	if next > len(policy.Levels) || next > m.maxLevel {
		// Depth bound reached; the alert stays active until ack/resolve.
		return
	}
	m.scheduleLocked(entry.alertID, entry.severity, next, policy.Levels[next-1].Delay)
}

package alerting

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netvigil/vigil-core/internal/models"
	"github.com/netvigil/vigil-core/pkg/logger"
)

type fireRecorder struct {
	mu    sync.Mutex
	fired []int
	allow bool
}

func (r *fireRecorder) fire(_ string, level int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, level)
	return r.allow
}

func (r *fireRecorder) levels() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.fired...)
}

func testPolicy(delay time.Duration, levels int) []models.EscalationPolicy {
	policy := models.EscalationPolicy{Severity: models.SeverityCritical}
	for i := 1; i <= levels; i++ {
		policy.Levels = append(policy.Levels, models.EscalationLevel{
			Level:    i,
			Delay:    delay,
			Channels: []string{"pager"},
		})
	}
	return []models.EscalationPolicy{policy}
}

func criticalAlert(id string) *models.Alert {
	return &models.Alert{ID: id, Severity: models.SeverityCritical, Status: models.StatusFiring}
}

func TestEscalationManagerFires(t *testing.T) {
	recorder := &fireRecorder{allow: true}
	m := NewEscalationManager(testPolicy(20*time.Millisecond, 5), 2, models.SeverityCritical, recorder.fire, logger.NewNop())
	m.Start()
	defer m.Stop()

	require.True(t, m.Schedule(criticalAlert("a1")))

	require.Eventually(t, func() bool {
		return len(recorder.levels()) >= 2
	}, time.Second, 5*time.Millisecond)

	// maxLevel 2 stops the chain even though the policy has 5 levels.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, []int{1, 2}, recorder.levels())
	assert.Equal(t, 0, m.PendingCount())
}

func TestEscalationManagerCancel(t *testing.T) {
	recorder := &fireRecorder{allow: true}
	m := NewEscalationManager(testPolicy(150*time.Millisecond, 3), 3, models.SeverityCritical, recorder.fire, logger.NewNop())
	m.Start()
	defer m.Stop()

	require.True(t, m.Schedule(criticalAlert("a1")))
	require.Equal(t, 1, m.PendingCount())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, m.Cancel("a1"))
	assert.False(t, m.Cancel("a1"), "second cancel finds nothing pending")

	time.Sleep(250 * time.Millisecond)
	assert.Empty(t, recorder.levels(), "cancelled timer must never fire")
	assert.Equal(t, 0, m.PendingCount())
}

func TestEscalationManagerStaleFire(t *testing.T) {
	// The callback returning false models an alert that was acknowledged
	// after the timer popped; the chain must stop there.
	recorder := &fireRecorder{allow: false}
	m := NewEscalationManager(testPolicy(10*time.Millisecond, 3), 3, models.SeverityCritical, recorder.fire, logger.NewNop())
	m.Start()
	defer m.Stop()

	require.True(t, m.Schedule(criticalAlert("a1")))

	require.Eventually(t, func() bool {
		return len(recorder.levels()) == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []int{1}, recorder.levels())
}

func TestEscalationManagerSeverityThreshold(t *testing.T) {
	recorder := &fireRecorder{allow: true}
	policies := append(testPolicy(10*time.Millisecond, 3), models.EscalationPolicy{
		Severity: models.SeverityWarning,
		Levels:   []models.EscalationLevel{{Level: 1, Delay: 10 * time.Millisecond, Channels: []string{"email"}}},
	})
	m := NewEscalationManager(policies, 3, models.SeverityCritical, recorder.fire, logger.NewNop())

	warning := &models.Alert{ID: "w1", Severity: models.SeverityWarning, Status: models.StatusFiring}
	assert.False(t, m.Schedule(warning), "below the severity threshold")

	info := &models.Alert{ID: "i1", Severity: models.SeverityInfo, Status: models.StatusFiring}
	assert.False(t, m.Schedule(info))

	assert.True(t, m.Schedule(criticalAlert("c1")))
	assert.Equal(t, 1, m.PendingCount())
}

func TestEscalationManagerNoPolicy(t *testing.T) {
	m := NewEscalationManager(nil, 3, models.SeverityInfo, func(string, int) bool { return true }, logger.NewNop())
	assert.False(t, m.Schedule(criticalAlert("a1")), "no policy for the severity")
}

package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	t.Run("quota boundary", func(t *testing.T) {
		limiter := NewRateLimiter(3)

		for i := 0; i < 3; i++ {
			assert.False(t, limiter.Limited("cpu_high", "warning"), "occurrence %d should pass", i+1)
		}
		assert.True(t, limiter.Limited("cpu_high", "warning"), "4th occurrence must be limited")
		assert.True(t, limiter.Limited("cpu_high", "warning"), "stays limited for the rest of the hour")
	})

	t.Run("pairs are independent", func(t *testing.T) {
		limiter := NewRateLimiter(1)

		assert.False(t, limiter.Limited("cpu_high", "warning"))
		assert.True(t, limiter.Limited("cpu_high", "warning"))

		assert.False(t, limiter.Limited("cpu_high", "critical"), "same name, other severity")
		assert.False(t, limiter.Limited("disk_full", "warning"), "other name, same severity")
	})

	t.Run("hour rollover resets counters", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
		limiter := NewRateLimiter(1)
		limiter.nowFn = func() time.Time { return now }

		assert.False(t, limiter.Limited("cpu_high", "warning"))
		assert.True(t, limiter.Limited("cpu_high", "warning"))

		now = now.Add(2 * time.Minute) // crosses into 11:00
		assert.False(t, limiter.Limited("cpu_high", "warning"), "new hour starts a fresh quota")
	})

	t.Run("limited occurrences do not consume quota", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		limiter := NewRateLimiter(2)
		limiter.nowFn = func() time.Time { return now }

		assert.False(t, limiter.Limited("x", "info"))
		assert.False(t, limiter.Limited("x", "info"))
		for i := 0; i < 10; i++ {
			assert.True(t, limiter.Limited("x", "info"))
		}

		now = now.Add(time.Hour)
		assert.False(t, limiter.Limited("x", "info"))
	})
}

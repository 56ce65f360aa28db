package alerting

import (
	"sync"
	"time"
)

// RateLimiter enforces an hourly quota per (name, severity) pair. Buckets are
// aligned to the clock hour; when the hour rolls over every counter resets.
type RateLimiter struct {
	mu         sync.Mutex
	maxPerHour int
	bucket     int64
	counts     map[string]int
	nowFn      func() time.Time
}

func NewRateLimiter(maxPerHour int) *RateLimiter {
	return &RateLimiter{
		maxPerHour: maxPerHour,
		counts:     make(map[string]int),
		nowFn:      time.Now,
	}
}

// Limited reports whether this (name, severity) pair has exhausted its hourly
// quota. The counter is only incremented for allowed alerts, so a limited
// pair stays limited for exactly the rest of the hour. The read-modify-write
// is atomic per evaluation.
func (r *RateLimiter) Limited(name, severity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.nowFn().UnixMilli() / 3600000
	if bucket != r.bucket {
		r.bucket = bucket
		r.counts = make(map[string]int)
	}

	key := name + "\xff" + severity
	if r.counts[key] >= r.maxPerHour {
		return true
	}

	r.counts[key]++
	return false
}

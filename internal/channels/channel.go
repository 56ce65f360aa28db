package channels

import (
	"context"
	"sync"
	"time"

	"github.com/netvigil/vigil-core/internal/models"
)

// NotificationChannel is the capability the dispatcher depends on. Concrete
// transports (Slack, Teams, email, pagers, custom webhooks) implement Send;
// everything else about them stays outside the engine.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, alert *models.Alert) error
	IsEnabled() bool
}

// Instrumented wraps a channel with the usage statistics the management
// surface exposes: last use, error count, success rate.
type Instrumented struct {
	channel NotificationChannel

	mu       sync.RWMutex
	lastUsed time.Time
	sent     int64
	failed   int64
}

func NewInstrumented(channel NotificationChannel) *Instrumented {
	return &Instrumented{channel: channel}
}

func (c *Instrumented) Name() string    { return c.channel.Name() }
func (c *Instrumented) IsEnabled() bool { return c.channel.IsEnabled() }

func (c *Instrumented) Send(ctx context.Context, alert *models.Alert) error {
	err := c.channel.Send(ctx, alert)

	c.mu.Lock()
	c.lastUsed = time.Now()
	c.sent++
	if err != nil {
		c.failed++
	}
	c.mu.Unlock()

	return err
}

func (c *Instrumented) LastUsed() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUsed
}

func (c *Instrumented) ErrorCount() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failed
}

// SuccessRate returns the fraction of sends that succeeded, or 1.0 for a
// channel that has never been used.
func (c *Instrumented) SuccessRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sent == 0 {
		return 1.0
	}
	return float64(c.sent-c.failed) / float64(c.sent)
}

func (c *Instrumented) Stats() models.ChannelStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rate := 1.0
	if c.sent > 0 {
		rate = float64(c.sent-c.failed) / float64(c.sent)
	}
	return models.ChannelStats{
		Name:        c.channel.Name(),
		Enabled:     c.channel.IsEnabled(),
		LastUsed:    c.lastUsed,
		ErrorCount:  c.failed,
		SuccessRate: rate,
	}
}

package alerting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/netvigil/vigil-core/internal/channels"
	"github.com/netvigil/vigil-core/internal/metrics"
	"github.com/netvigil/vigil-core/internal/models"
	"github.com/netvigil/vigil-core/pkg/logger"
)

// Dispatcher routes alerts to notification channels. Severity picks the
// default channel set; a comma-separated "channels" label unions extra
// targets in. One channel's failure never prevents attempting the rest.
type Dispatcher struct {
	registry *channels.Registry
	logger   logger.Logger
}

func NewDispatcher(registry *channels.Registry, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   log,
	}
}

func severityChannels(severity string) []string {
	switch severity {
	case models.SeverityCritical:
		return []string{"email", "sms", "pager", "chat"}
	case models.SeverityWarning:
		return []string{"email", "chat"}
	case models.SeverityInfo:
		return []string{"chat"}
	default:
		return []string{"email"}
	}
}

// Targets resolves the channel names an alert should go to, before filtering
// by registration and enablement.
func (d *Dispatcher) Targets(alert *models.Alert) []string {
	seen := make(map[string]bool)
	var targets []string
	for _, name := range severityChannels(alert.Severity) {
		if !seen[name] {
			seen[name] = true
			targets = append(targets, name)
		}
	}

	if override := alert.Labels["channels"]; override != "" {
		for _, name := range strings.Split(override, ",") {
			name = strings.TrimSpace(name)
			if name != "" && !seen[name] {
				seen[name] = true
				targets = append(targets, name)
			}
		}
	}

	sort.Strings(targets)
	return targets
}

// Dispatch fans the alert out to its resolved targets and waits for every
// send to finish, success or failure.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.Alert) map[string]models.ChannelResult {
	return d.DispatchTo(ctx, alert, d.Targets(alert))
}

// DispatchTo sends to an explicit channel list (used by escalation levels and
// resolution notifications). Unregistered or disabled channels are skipped.
func (d *Dispatcher) DispatchTo(ctx context.Context, alert *models.Alert, names []string) map[string]models.ChannelResult {
	results := make(map[string]models.ChannelResult)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range names {
		ch, ok := d.registry.Get(name)
		if !ok {
			continue
		}

		wg.Add(1)
		go func(name string, ch *channels.Instrumented) {
			defer wg.Done()

			result := models.ChannelResult{Success: true}
			start := time.Now()

			func() {
				// A panicking adapter must not take down the pipeline.
				defer func() {
					if r := recover(); r != nil {
						result = models.ChannelResult{Success: false, Error: fmt.Sprintf("channel panic: %v", r)}
					}
				}()
				if err := ch.Send(ctx, alert); err != nil {
					result = models.ChannelResult{Success: false, Error: err.Error()}
				}
			}()

			metrics.DispatchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
			metrics.NotificationsSent.WithLabelValues(name, fmt.Sprintf("%t", result.Success)).Inc()
			if !result.Success {
				d.logger.Error("Channel dispatch failed", "channel", name, "alert", alert.ID, "error", result.Error)
			}

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, ch)
	}

	wg.Wait()
	return results
}

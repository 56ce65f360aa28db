package channels

import (
	"sort"
	"sync"

	"github.com/netvigil/vigil-core/internal/config"
	"github.com/netvigil/vigil-core/internal/models"
	"github.com/netvigil/vigil-core/pkg/logger"
)

// Registry maps channel names to implementations of the channel capability.
// It is populated at startup; the dispatcher only ever sees the interface.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Instrumented
	logger   logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		channels: make(map[string]*Instrumented),
		logger:   log,
	}
}

// NewRegistryFromConfig builds a registry with the built-in adapters
// registered under their conventional names.
func NewRegistryFromConfig(cfg config.ChannelsConfig, log logger.Logger) *Registry {
	r := NewRegistry(log)
	r.Register(NewSlackChannel(cfg.Slack, log))
	r.Register(NewTeamsChannel(cfg.MSTeams, log))
	r.Register(NewEmailChannel(cfg.Email, log))
	return r
}

func (r *Registry) Register(channel NotificationChannel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[channel.Name()] = NewInstrumented(channel)
	r.logger.Info("Notification channel registered", "channel", channel.Name(), "enabled", channel.IsEnabled())
}

// Get returns the named channel when it is both registered and enabled.
func (r *Registry) Get(name string) (*Instrumented, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[name]
	if !ok || !ch.IsEnabled() {
		return nil, false
	}
	return ch, true
}

// Names returns all registered channel names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns usage statistics for every registered channel.
func (r *Registry) Stats() []models.ChannelStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]models.ChannelStats, 0, len(r.channels))
	for _, ch := range r.channels {
		stats = append(stats, ch.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

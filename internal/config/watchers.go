package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/netvigil/vigil-core/pkg/logger"
)

// RulesWatcher reloads the rules file when it changes on disk and hands the
// parsed RuleSet to registered callbacks.
type RulesWatcher struct {
	rulesPath string
	logger    logger.Logger
	mu        sync.RWMutex
	current   *RuleSet
	callbacks []func(*RuleSet)
	stopCh    chan struct{}
}

func NewRulesWatcher(rulesPath string, initial *RuleSet, log logger.Logger) *RulesWatcher {
	return &RulesWatcher{
		rulesPath: rulesPath,
		logger:    log,
		current:   initial,
		stopCh:    make(chan struct{}),
	}
}

// Start begins watching for rules file changes. Blocks until the context is
// cancelled or Stop is called.
func (w *RulesWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.rulesPath); err != nil {
		return fmt.Errorf("failed to watch rules file: %w", err)
	}

	w.logger.Info("Rules watcher started", "rulesPath", w.rulesPath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.logger.Info("Rules file changed, reloading", "file", event.Name)

				if err := w.reload(); err != nil {
					// Keep serving the last good rule set.
					w.logger.Error("Failed to reload rules", "error", err)
					continue
				}

				w.notifyCallbacks()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Rules watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Info("Rules watcher stopping")
			return nil

		case <-w.stopCh:
			w.logger.Info("Rules watcher stopped")
			return nil
		}
	}
}

// RegisterCallback adds a callback invoked after every successful reload.
func (w *RulesWatcher) RegisterCallback(callback func(*RuleSet)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Rules returns the current rule set (thread-safe).
func (w *RulesWatcher) Rules() *RuleSet {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Stop stops the watcher.
func (w *RulesWatcher) Stop() {
	close(w.stopCh)
}

func (w *RulesWatcher) reload() error {
	rs, err := LoadRules(w.rulesPath)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.current = rs
	w.mu.Unlock()

	w.logger.Info("Rules reloaded",
		"suppressionRules", len(rs.SuppressionRules),
		"correlationRules", len(rs.CorrelationRules),
		"escalationPolicies", len(rs.Policies))
	return nil
}

func (w *RulesWatcher) notifyCallbacks() {
	w.mu.RLock()
	rules := w.current
	callbacks := make([]func(*RuleSet), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb(rules)
	}
}

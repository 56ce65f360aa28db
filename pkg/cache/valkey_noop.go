package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/netvigil/vigil-core/pkg/logger"
)

// noopValkey is an in-memory, process-local fallback that satisfies Valkey
// when no external cache is configured. Best-effort only: counters and
// snapshots are not shared across replicas and are lost on restart.
type noopValkey struct {
	mu      sync.RWMutex
	m       map[string][]byte
	expires map[string]time.Time
	logger  logger.Logger
}

func NewNoopValkey(log logger.Logger) Valkey {
	log.Warn("Valkey cache not configured; using in-memory fallback")
	return &noopValkey{
		m:       make(map[string][]byte),
		expires: make(map[string]time.Time),
		logger:  log,
	}
}

func (n *noopValkey) Get(ctx context.Context, key string) ([]byte, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if exp, ok := n.expires[key]; ok && time.Now().After(exp) {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	b, ok := n.m[key]
	if !ok {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return b, nil
}

func (n *noopValkey) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		jb, err := json.Marshal(v)
		if err != nil {
			return err
		}
		b = jb
	}

	n.mu.Lock()
	n.m[key] = b
	if ttl > 0 {
		n.expires[key] = time.Now().Add(ttl)
	} else {
		delete(n.expires, key)
	}
	n.mu.Unlock()
	return nil
}

func (n *noopValkey) Delete(ctx context.Context, key string) error {
	n.mu.Lock()
	delete(n.m, key)
	delete(n.expires, key)
	n.mu.Unlock()
	return nil
}

func (n *noopValkey) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if exp, ok := n.expires[key]; ok && time.Now().After(exp) {
		delete(n.m, key)
		delete(n.expires, key)
	}

	var count int64
	if b, ok := n.m[key]; ok {
		_ = json.Unmarshal(b, &count)
	}
	count++
	b, _ := json.Marshal(count)
	n.m[key] = b
	if _, ok := n.expires[key]; !ok && ttl > 0 {
		n.expires[key] = time.Now().Add(ttl)
	}
	return count, nil
}

func (n *noopValkey) SaveSnapshot(ctx context.Context, name string, state interface{}) error {
	return n.Set(ctx, fmt.Sprintf("snapshot:%s", name), state, 0)
}

func (n *noopValkey) LoadSnapshot(ctx context.Context, name string) ([]byte, error) {
	return n.Get(ctx, fmt.Sprintf("snapshot:%s", name))
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/netvigil/vigil-core/pkg/logger"
)

// Valkey is the shared cache surface used by the HTTP rate limiter and the
// engine snapshot. Implementations must be safe for concurrent use.
type Valkey interface {
	// General caching
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Atomic counters for request rate limiting
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Engine state snapshots (best-effort rehydration across restarts)
	SaveSnapshot(ctx context.Context, name string, state interface{}) error
	LoadSnapshot(ctx context.Context, name string) ([]byte, error)
}

type valkeyImpl struct {
	client *redis.Client
	logger logger.Logger
	ttl    time.Duration
}

func NewValkey(addr, password string, db int, defaultTTL time.Duration, log logger.Logger) (Valkey, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey at %s: %w", addr, err)
	}

	return &valkeyImpl{
		client: client,
		logger: log,
		ttl:    defaultTTL,
	}, nil
}

func (v *valkeyImpl) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := v.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("key not found: %s", key)
		}
		return nil, err
	}
	return data, nil
}

func (v *valkeyImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = v.ttl
	}

	var payload []byte
	switch val := value.(type) {
	case []byte:
		payload = val
	case string:
		payload = []byte(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("failed to marshal value for key %s: %w", key, err)
		}
		payload = b
	}

	return v.client.Set(ctx, key, payload, ttl).Err()
}

func (v *valkeyImpl) Delete(ctx context.Context, key string) error {
	return v.client.Del(ctx, key).Err()
}

func (v *valkeyImpl) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := v.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// First hit in the window sets the expiry; later hits inherit it.
	if count == 1 && ttl > 0 {
		_ = v.client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}

func (v *valkeyImpl) SaveSnapshot(ctx context.Context, name string, state interface{}) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot %s: %w", name, err)
	}
	// Snapshots have no TTL; a stale snapshot is still better than none.
	return v.client.Set(ctx, fmt.Sprintf("snapshot:%s", name), payload, 0).Err()
}

func (v *valkeyImpl) LoadSnapshot(ctx context.Context, name string) ([]byte, error) {
	return v.Get(ctx, fmt.Sprintf("snapshot:%s", name))
}

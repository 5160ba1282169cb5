package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Throttle admits at most one action per key within a window.
// Release gives the slot back so the key may act again immediately.
type Throttle interface {
	Allow(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type noopThrottle struct{}

func (noopThrottle) Allow(context.Context, string) (bool, error) { return true, nil }

func (noopThrottle) Release(context.Context, string) error { return nil }

type memoryThrottle struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, struct{}]
}

// NewMemoryThrottle keeps recent keys in a bounded expiring LRU.
// Eviction under pressure admits a key early, never late.
func NewMemoryThrottle(size int, window time.Duration) Throttle {
	if window <= 0 {
		return noopThrottle{}
	}
	if size <= 0 {
		size = 10000
	}
	return &memoryThrottle{cache: expirable.NewLRU[string, struct{}](size, nil, window)}
}

func (t *memoryThrottle) Allow(_ context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.cache.Get(key); ok {
		return false, nil
	}
	t.cache.Add(key, struct{}{})
	return true, nil
}

func (t *memoryThrottle) Release(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache.Remove(key)
	return nil
}

type redisThrottle struct {
	client *redis.Client
	window time.Duration
	prefix string
}

// NewRedisThrottle shares the window across instances through SET NX.
func NewRedisThrottle(client *redis.Client, window time.Duration) Throttle {
	if window <= 0 || client == nil {
		return noopThrottle{}
	}
	return &redisThrottle{client: client, window: window, prefix: "pin-issuer:throttle:"}
}

func (t *redisThrottle) Allow(ctx context.Context, key string) (bool, error) {
	return t.client.SetNX(ctx, t.prefix+key, 1, t.window).Result()
}

func (t *redisThrottle) Release(ctx context.Context, key string) error {
	return t.client.Del(ctx, t.prefix+key).Err()
}

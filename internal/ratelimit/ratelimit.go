package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Manager provides per-caller rate limiting for the billing routes.
// With Redis configured the window is shared across replicas; without
// it, an in-process token bucket per subject applies.
type Manager struct {
	redis *redis.Client
	rpm   int

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

// NewManager connects to Redis at redisURL. An empty URL yields a
// process-local manager.
func NewManager(redisURL string, rpm int) (*Manager, error) {
	if rpm <= 0 {
		rpm = 60
	}
	m := &Manager{rpm: rpm, local: make(map[string]*rate.Limiter)}
	if redisURL == "" {
		return m, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	m.redis = client
	return m, nil
}

func (m *Manager) Close() error {
	if m.redis == nil {
		return nil
	}
	return m.redis.Close()
}

// Allow reports whether subject may proceed, and when not, how many
// seconds until the window resets. Redis failures fail open: billing
// must not go down with the limiter.
func (m *Manager) Allow(ctx context.Context, subject string) (allowed bool, resetSec int) {
	if m.redis == nil {
		return m.allowLocal(subject), 60
	}

	now := time.Now().UTC()
	window := now.Unix() / 60
	key := fmt.Sprintf("rl:%s:%d", subject, window)

	pipe := m.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0
	}
	if int(incr.Val()) > m.rpm {
		return false, 60 - int(now.Unix()%60)
	}
	return true, 0
}

func (m *Manager) allowLocal(subject string) bool {
	m.mu.Lock()
	lim, ok := m.local[subject]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.rpm)), m.rpm)
		m.local[subject] = lim
	}
	m.mu.Unlock()
	return lim.Allow()
}

// Package ratelimit implements a fixed-window request limiter for the auth
// endpoints. Counter state lives behind the Store interface and is passed
// in explicitly, so tests run in isolation and deployments can swap the
// in-process map for a shared Redis counter.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrRateLimited = errors.New("rate limited")

// Store counts events within a fixed window.
type Store interface {
	// Increment adds one to the key's counter and returns the new count.
	// A key seen for the first time starts a fresh window of the given
	// duration; the counter resets when the window elapses.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Config tunes one limiter. Zero values fall back to 10 attempts per minute.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter rejects callers that exceed MaxAttempts within Window.
type Limiter struct {
	store Store
	cfg   Config
}

func New(store Store, cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{store: store, cfg: cfg}
}

// Allow consumes one attempt for key. Returns ErrRateLimited when the
// budget is spent; any store error is returned as-is so the caller decides
// whether to fail open or closed.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	count, err := l.store.Increment(ctx, key, l.cfg.Window)
	if err != nil {
		return err
	}
	if count > int64(l.cfg.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is a process-local Store. Good enough for a single instance;
// multi-instance deployments should use RedisStore.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*memoryWindow), now: time.Now}
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return w.count, nil
}

package memory

import (
	"context"
	"sync"
	"time"
)

// RateLimiter — скользящее окно в памяти процесса (для -dev и -memory без Redis).
type RateLimiter struct {
	mu    sync.Mutex
	times map[string][]time.Time
	now   func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{times: make(map[string][]time.Time), now: time.Now}
}

func (r *RateLimiter) Close() error { return nil }

func (r *RateLimiter) Allow(_ context.Context, key string, max int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	cutoff := now.Add(-window)
	slice := r.times[key]
	i := 0
	for _, t := range slice {
		if t.After(cutoff) {
			slice[i] = t
			i++
		}
	}
	slice = slice[:i]
	if len(slice) >= max {
		r.times[key] = slice
		return false, nil
	}
	r.times[key] = append(slice, now)
	return true, nil
}

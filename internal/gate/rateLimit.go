package gate

import (
	"sync"
	"time"
)

type Bucket struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window attempt counter keyed by source identity.
// It lives for the lifetime of the process and is never persisted.
type Limiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*Bucket
}

func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		buckets: map[string]*Bucket{},
	}
}

// Hit records one attempt for key at now. When the key has used up its
// window it reports false together with the instant the window resets;
// a refused attempt is not counted.
func (l *Limiter) Hit(key string, now time.Time) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		// expired buckets are replaced here rather than swept
		b = &Bucket{count: 1, resetAt: now.Add(l.window)}
		l.buckets[key] = b
		return true, b.resetAt
	}
	if b.count >= l.max {
		return false, b.resetAt
	}
	b.count++
	return true, b.resetAt
}

// Len returns the number of buckets held, including expired ones that
// have not been touched since.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

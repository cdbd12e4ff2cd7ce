package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultWindow = 60 * time.Second
	DefaultLimit  = 60
)

// Limiter is a sliding-window admission controller keyed by client
// identity. Each identity may make at most limit requests per window; a
// rejected request leaves no trace, so hammering a full window never
// extends it.
type Limiter struct {
	window time.Duration
	limit  int

	mu      sync.Mutex
	history map[string][]time.Time

	now func() time.Time
}

func New(window time.Duration, limit int) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Limiter{
		window:  window,
		limit:   limit,
		history: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow reports whether a request from the given identity is admitted, and
// records it if so.
func (l *Limiter) Allow(identity string) bool {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.history[identity][:0]
	for _, ts := range l.history[identity] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.limit {
		l.history[identity] = recent
		return false
	}

	l.history[identity] = append(recent, now)
	return true
}

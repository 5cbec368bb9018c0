package queue

import (
	"sync"
	"time"
)

// WindowLimiter admits at most limit events per rolling window. It is
// shared by all workers of one pool.
type WindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	starts []time.Time
	now    func() time.Time
}

// NewWindowLimiter creates a limiter allowing limit events per window.
func NewWindowLimiter(limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records an event and returns true when the window has room.
func (l *WindowLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.evict(now)
	if len(l.starts) >= l.limit {
		return false
	}
	l.starts = append(l.starts, now)
	return true
}

// Release gives back the most recent admission, used when a worker was
// admitted but found nothing to claim.
func (l *WindowLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.starts); n > 0 {
		l.starts = l.starts[:n-1]
	}
}

// Count returns the number of admissions inside the current window.
func (l *WindowLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.now())
	return len(l.starts)
}

// NextFree returns how long until another event would be admitted.
func (l *WindowLimiter) NextFree() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.evict(now)
	if len(l.starts) < l.limit {
		return 0
	}
	return l.starts[0].Add(l.window).Sub(now)
}

func (l *WindowLimiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.starts) && !l.starts[i].After(cutoff) {
		i++
	}
	l.starts = l.starts[i:]
}

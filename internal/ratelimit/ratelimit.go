package ratelimit

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Limiter throttles commands per user.
type Limiter interface {
	Allow(userID int64) bool
}

// InMemoryLimiter keeps one token bucket per user.
type InMemoryLimiter struct {
	users map[int64]*rate.Limiter
	mu    sync.Mutex
	r     rate.Limit
	b     int
	clock clockwork.Clock
}

// NewInMemoryLimiter allows requests per period with the given burst.
// NewInMemoryLimiter(1, 3*time.Second, 3, clock) lets a user run three
// commands back to back and then one every three seconds.
func NewInMemoryLimiter(requests int, per time.Duration, burst int, clock clockwork.Clock) *InMemoryLimiter {
	if requests <= 0 {
		requests = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &InMemoryLimiter{
		users: make(map[int64]*rate.Limiter),
		r:     rate.Every(per / time.Duration(requests)),
		b:     burst,
		clock: clock,
	}
}

var _ Limiter = (*InMemoryLimiter)(nil)

func (l *InMemoryLimiter) Allow(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.users[userID]
	if !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.users[userID] = limiter
	}

	return limiter.AllowN(l.clock.Now(), 1)
}

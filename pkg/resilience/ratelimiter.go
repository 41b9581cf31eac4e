package resilience

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a client exceeds its request budget.
var ErrRateLimited = errors.New("rate limited")

// LimiterOpts configures the token bucket rate limiter.
type LimiterOpts struct {
	// Rate is the number of tokens added per second.
	Rate float64
	// Burst is the maximum number of tokens (bucket capacity).
	Burst int
	// IdleTTL evicts per-key buckets that have not been used for this long.
	IdleTTL time.Duration
}

// DefaultLimiterOpts allows a steady request every two seconds per key with
// short bursts.
var DefaultLimiterOpts = LimiterOpts{
	Rate:    0.5,
	Burst:   5,
	IdleTTL: 10 * time.Minute,
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// KeyedLimiter keeps one token bucket per key (user id, client address).
type KeyedLimiter struct {
	mu      sync.Mutex
	opts    LimiterOpts
	buckets map[string]*bucket
	now     func() time.Time
}

// NewKeyedLimiter creates a per-key token bucket rate limiter.
func NewKeyedLimiter(opts LimiterOpts) *KeyedLimiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultLimiterOpts.IdleTTL
	}
	return &KeyedLimiter{
		opts:    opts,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// limiter returns the bucket for key, creating it and sweeping idle ones. Must hold mu.
func (l *KeyedLimiter) limiter(key string) *rate.Limiter {
	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(l.opts.Rate), l.opts.Burst)}
		l.buckets[key] = b
		for k, other := range l.buckets {
			if now.Sub(other.seen) > l.opts.IdleTTL && k != key {
				delete(l.buckets, k)
			}
		}
	}
	b.seen = now
	return b.lim
}

// Allow checks if a request for key is allowed (non-blocking).
func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	lim := l.limiter(key)
	now := l.now()
	l.mu.Unlock()
	return lim.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

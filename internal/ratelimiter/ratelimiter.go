package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket shared by every request it guards.
//
// A rate of zero disables limiting entirely. All methods are safe for
// concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a bucket refilled at requestsPerSecond tokens per second
// holding at most burst tokens.
//
// A burst smaller than one is raised to one so that a non-zero rate can
// ever admit a request.
func New(requestsPerSecond, burst uint) *RateLimiter {
	return &RateLimiter{limiter: newLimiter(requestsPerSecond, burst)}
}

func newLimiter(requestsPerSecond, burst uint) *rate.Limiter {
	if requestsPerSecond == 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst == 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst))
}

// Allow consumes a token if one is available and reports whether it did.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Unlimited reports whether the limiter admits everything.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// Tokens returns the number of tokens currently in the bucket.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}

// Keyed keeps one bucket per key (a remote address, a bearer subject)
// so that a single noisy peer cannot starve the others.
type Keyed struct {
	mu       sync.Mutex
	rps      uint
	burst    uint
	limiters map[string]*keyedEntry
}

type keyedEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyed creates a per-key limiter. Every key gets its own bucket with
// the given rate and burst.
func NewKeyed(requestsPerSecond, burst uint) *Keyed {
	return &Keyed{
		rps:      requestsPerSecond,
		burst:    burst,
		limiters: make(map[string]*keyedEntry),
	}
}

func (k *Keyed) get(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.limiters[key]
	if !ok {
		entry = &keyedEntry{limiter: newLimiter(k.rps, k.burst)}
		k.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Allow consumes a token from key's bucket.
func (k *Keyed) Allow(key string) bool {
	return k.get(key).Allow()
}

// Wait blocks until key's bucket yields a token or ctx is done.
func (k *Keyed) Wait(ctx context.Context, key string) error {
	return k.get(key).Wait(ctx)
}

// Prune forgets buckets idle for longer than idle and returns how many
// were dropped.
func (k *Keyed) Prune(idle time.Duration) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	dropped := 0
	for key, entry := range k.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(k.limiters, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

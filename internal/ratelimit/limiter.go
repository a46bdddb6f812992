// Package ratelimit provides a token bucket per client key.
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sweepEvery = 512

// KeyedLimiter applies a token bucket per key and periodically evicts idle entries.
// A nil *KeyedLimiter allows everything.
type KeyedLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	hits    uint64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a keyed limiter, or nil when rps or burst disable limiting
func New(rps float64, burst int, idleTTL time.Duration) *KeyedLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &KeyedLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether key may perform one more request at now
func (l *KeyedLimiter) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%sweepEvery == 0 {
		l.evictIdle(now)
	}

	return allowed
}

func (l *KeyedLimiter) evictIdle(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}

// Len returns the number of tracked keys
func (l *KeyedLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

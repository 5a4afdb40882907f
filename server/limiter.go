package server

import (
	"sync"
	"time"
)

// RateLimiter gates inbound messages per connection. Consulted before a
// decoded message is dispatched to the session state machine.
type RateLimiter interface {
	AllowMessage(connID string) bool
	Remove(connID string)
}

// UnlimitedRateLimiter admits everything.
type UnlimitedRateLimiter struct{}

func (UnlimitedRateLimiter) AllowMessage(string) bool { return true }
func (UnlimitedRateLimiter) Remove(string)            {}

// TokenBucketLimiter keeps one token bucket per connection. Buckets are
// created atomically on first use and removed on connection teardown to
// bound memory.
type TokenBucketLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	maxTokens  float64
	refillRate float64 // tokens per second
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucketLimiter creates a limiter allowing bursts of maxBurst
// messages, refilled at perSecond.
func NewTokenBucketLimiter(maxBurst int, perSecond float64) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		buckets:    make(map[string]*bucket),
		maxTokens:  float64(maxBurst),
		refillRate: perSecond,
	}
}

func (l *TokenBucketLimiter) AllowMessage(connID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[connID]
	if !ok {
		b = &bucket{tokens: l.maxTokens, lastRefill: time.Now()}
		l.buckets[connID] = b
	}

	now := time.Now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * l.refillRate
	if b.tokens > l.maxTokens {
		b.tokens = l.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (l *TokenBucketLimiter) Remove(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, connID)
}

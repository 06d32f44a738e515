package service

import (
	"math"
	"sync"
	"time"
)

// TokenBucket is an in-memory per-key rate limiter. It guards the login
// endpoint, keyed by client IP. Safe for concurrent use.
type TokenBucket struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     float64 // tokens added per second
	capacity float64
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewTokenBucket creates a limiter holding up to capacity tokens per key,
// refilled at rate tokens per second. Stale buckets are swept in the
// background until Stop is called.
func NewTokenBucket(rate, capacity float64) *TokenBucket {
	tb := &TokenBucket{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		capacity: capacity,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go tb.cleanup(5*time.Minute, 10*time.Minute)
	return tb
}

// PerMinute builds a limiter allowing n requests per minute with a burst of n.
func PerMinute(n int) *TokenBucket {
	return NewTokenBucket(float64(n)/60, float64(n))
}

// Allow consumes a token for key and reports whether one was available.
func (tb *TokenBucket) Allow(key string) bool {
	ok, _ := tb.Reserve(key)
	return ok
}

// Reserve is Allow that also reports how long until the next token when the
// bucket is empty.
func (tb *TokenBucket) Reserve(key string) (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: tb.capacity, last: now}
		tb.buckets[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	b.tokens = min(b.tokens+elapsed*tb.rate, tb.capacity)
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if tb.rate <= 0 {
		return false, 0
	}
	wait := time.Duration(math.Ceil((1-b.tokens)/tb.rate)) * time.Second
	return false, wait
}

// Stop ends the background sweep.
func (tb *TokenBucket) Stop() {
	tb.stopOnce.Do(func() { close(tb.done) })
}

func (tb *TokenBucket) cleanup(every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-tb.done:
			return
		case <-ticker.C:
			tb.mu.Lock()
			cutoff := tb.now().Add(-idle)
			for key, b := range tb.buckets {
				if b.last.Before(cutoff) {
					delete(tb.buckets, key)
				}
			}
			tb.mu.Unlock()
		}
	}
}

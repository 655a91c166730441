package extract

import (
	"context"
	"sync"
	"time"
)

// rateLimiter is a token-bucket limiter guarding the search API. Tokens
// refill at a constant rate up to the burst size; Wait blocks until a
// token is available or the context is done.
type rateLimiter struct {
	rate     float64
	burst    float64
	tokens   float64
	lastTime time.Time
	mu       sync.Mutex
}

// newRateLimiter creates a limiter allowing rate requests per second
// with the given burst. The bucket starts full.
func newRateLimiter(rate float64, burst int) *rateLimiter {
	return &rateLimiter{
		rate:     rate,
		burst:    float64(burst),
		tokens:   float64(burst),
		lastTime: time.Now(),
	}
}

// Wait blocks until a request is allowed.
func (l *rateLimiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		delay := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
		l.mu.Unlock()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill adds tokens for the time elapsed since the last refill. Caller
// holds the lock.
func (l *rateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastTime).Seconds()
	l.lastTime = now

	l.tokens += elapsed * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
}

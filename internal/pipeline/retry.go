package pipeline

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines per-stage retry behavior with exponential backoff.
// MaxRetries counts additional attempts after the initial one: a stage runs
// at most MaxRetries+1 times before the job is failed.
type RetryPolicy struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// NewRetryPolicy creates the default retry policy: 3 retries, 1s initial
// backoff doubling up to 60s.
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// MaxAttempts returns the total delivery budget per stage (initial + retries).
func (p *RetryPolicy) MaxAttempts() int {
	return p.MaxRetries + 1
}

// ShouldRetry reports whether a failed attempt (1-based) has budget left and
// the error is worth retrying.
func (p *RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.MaxAttempts() {
		return false
	}
	return !IsTerminal(err)
}

// CalculateBackoff returns the delay before redelivering after the given
// failed attempt (1-based): InitialBackoff * Multiplier^(attempt-1), capped
// at MaxBackoff, with ±25% jitter to decorrelate retry storms.
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	// Add jitter (±25%)
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoff += jitter

	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}

	return time.Duration(backoff)
}

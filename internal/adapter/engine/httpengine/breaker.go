package httpengine

import (
	"log/slog"
	"sync"
	"time"
)

// BreakerState represents the state of an engine's circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets searches through.
	BreakerClosed BreakerState = iota
	// BreakerOpen short-circuits searches after repeated failures.
	BreakerOpen
	// BreakerHalfOpen lets a single probe through after the cool-down.
	BreakerHalfOpen
)

// String returns a string representation of the breaker state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker stops hammering an upstream that keeps failing. While open the
// engine reports a failure immediately so the dispatcher moves on.
type Breaker struct {
	mu               sync.Mutex
	agent            string
	failureThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time

	state           BreakerState
	failureCount    int
	lastFailureTime time.Time
	totalRequests   int
	totalFailures   int
}

// NewBreaker creates a breaker that opens after threshold consecutive failures
// and probes again after recovery.
func NewBreaker(agent string, threshold int, recovery time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if recovery <= 0 {
		recovery = 30 * time.Second
	}
	return &Breaker{
		agent:            agent,
		failureThreshold: threshold,
		recoveryTimeout:  recovery,
		now:              time.Now,
	}
}

// Allow reports whether a search should be attempted. An open breaker whose
// cool-down elapsed moves to half-open and admits the caller.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.lastFailureTime) <= b.recoveryTimeout {
			return false
		}
		b.state = BreakerHalfOpen
		return true
	default:
		return true
	}
}

// RecordSuccess closes the breaker and clears the failure streak.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++
	b.failureCount = 0
	if b.state != BreakerClosed {
		b.state = BreakerClosed
		slog.Info("engine breaker closed after successful probe", slog.String("agent", b.agent))
	}
}

// RecordFailure counts a failure and opens the breaker once the streak hits
// the threshold. A failed half-open probe reopens it at once.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.totalFailures++
	b.totalRequests++
	b.lastFailureTime = b.now()

	if b.state == BreakerHalfOpen || b.failureCount >= b.failureThreshold {
		if b.state != BreakerOpen {
			slog.Warn("engine breaker opened",
				slog.String("agent", b.agent),
				slog.Int("failure_count", b.failureCount),
				slog.Int("threshold", b.failureThreshold))
		}
		b.state = BreakerOpen
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// GetStats returns breaker statistics.
func (b *Breaker) GetStats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	failureRate := 0.0
	if b.totalRequests > 0 {
		failureRate = float64(b.totalFailures) / float64(b.totalRequests)
	}
	return map[string]interface{}{
		"agent":          b.agent,
		"state":          b.state.String(),
		"failure_count":  b.failureCount,
		"total_requests": b.totalRequests,
		"total_failures": b.totalFailures,
		"failure_rate":   failureRate,
		"last_failure":   b.lastFailureTime,
	}
}

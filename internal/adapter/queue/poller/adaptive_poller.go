// Package poller computes idle sleep intervals for in-process worker loops.
package poller

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"log/slog"
)

// AdaptivePoller stretches the idle interval while a queue stays empty and
// snaps back to the base interval as soon as work shows up.
type AdaptivePoller struct {
	mu              sync.RWMutex
	baseInterval    time.Duration
	maxInterval     time.Duration
	backoffFactor   float64
	jitter          float64
	workCount       int
	idleCount       int
	consecutiveIdle int
	lastWorkTime    time.Time
	lastIdleTime    time.Time
}

// NewAdaptivePoller creates a poller that backs off from base up to max.
func NewAdaptivePoller(base, ceiling time.Duration) *AdaptivePoller {
	if base <= 0 {
		base = 2 * time.Second
	}
	if ceiling < base {
		ceiling = base
	}
	return &AdaptivePoller{
		baseInterval:  base,
		maxInterval:   ceiling,
		backoffFactor: 1.2,
		jitter:        0.1,
	}
}

// NextInterval returns how long the worker should sleep before polling again.
func (ap *AdaptivePoller) NextInterval() time.Duration {
	ap.mu.RLock()
	defer ap.mu.RUnlock()

	if ap.consecutiveIdle <= 1 {
		return ap.baseInterval
	}

	multiplier := math.Pow(ap.backoffFactor, float64(ap.consecutiveIdle-1))
	interval := float64(ap.baseInterval) * multiplier
	// jitter keeps several workers from waking in lockstep
	interval += interval * ap.jitter * (rand.Float64() - 0.5)
	if interval > float64(ap.maxInterval) {
		interval = float64(ap.maxInterval)
	}
	if interval < float64(ap.baseInterval) {
		interval = float64(ap.baseInterval)
	}
	slog.Debug("adaptive poller backoff",
		slog.Duration("interval", time.Duration(interval)),
		slog.Int("consecutive_idle", ap.consecutiveIdle),
		slog.Float64("backoff_multiplier", multiplier))
	return time.Duration(interval)
}

// RecordWork records a poll that found a task.
func (ap *AdaptivePoller) RecordWork() {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	ap.workCount++
	ap.consecutiveIdle = 0
	ap.lastWorkTime = time.Now()
}

// RecordIdle records a poll that found the queue empty.
func (ap *AdaptivePoller) RecordIdle() {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	ap.idleCount++
	ap.consecutiveIdle++
	ap.lastIdleTime = time.Now()
}

// GetStats returns polling statistics
func (ap *AdaptivePoller) GetStats() map[string]interface{} {
	ap.mu.RLock()
	defer ap.mu.RUnlock()

	total := ap.workCount + ap.idleCount
	busyRate := 0.0
	if total > 0 {
		busyRate = float64(ap.workCount) / float64(total)
	}
	return map[string]interface{}{
		"base_interval":    ap.baseInterval,
		"max_interval":     ap.maxInterval,
		"work_count":       ap.workCount,
		"idle_count":       ap.idleCount,
		"consecutive_idle": ap.consecutiveIdle,
		"total_polls":      total,
		"busy_rate":        busyRate,
		"last_work_time":   ap.lastWorkTime,
		"last_idle_time":   ap.lastIdleTime,
	}
}

// Reset resets the poller statistics
func (ap *AdaptivePoller) Reset() {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	ap.workCount = 0
	ap.idleCount = 0
	ap.consecutiveIdle = 0
}

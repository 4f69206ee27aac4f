package poller

import (
	"testing"
	"time"
)

func TestAdaptivePoller_IdleBackoffAndWorkReset(t *testing.T) {
	base := 2 * time.Second
	ceiling := 10 * time.Second
	p := NewAdaptivePoller(base, ceiling)

	if iv := p.NextInterval(); iv != base {
		t.Fatalf("initial interval should be base, got %v", iv)
	}

	p.RecordIdle()
	if iv := p.NextInterval(); iv != base {
		t.Fatalf("first idle poll should sleep base, got %v", iv)
	}

	for i := 0; i < 4; i++ {
		p.RecordIdle()
	}
	iv := p.NextInterval()
	if iv <= base || iv > ceiling {
		t.Fatalf("idle backoff interval out of range: %v (base=%v, max=%v)", iv, base, ceiling)
	}

	for i := 0; i < 50; i++ {
		p.RecordIdle()
	}
	if iv := p.NextInterval(); iv != ceiling {
		t.Fatalf("expected interval capped at %v, got %v", ceiling, iv)
	}

	p.RecordWork()
	if iv := p.NextInterval(); iv != base {
		t.Fatalf("work should reset interval to base, got %v", iv)
	}
}

func TestAdaptivePoller_Defaults(t *testing.T) {
	p := NewAdaptivePoller(0, time.Millisecond)
	if p.baseInterval != 2*time.Second {
		t.Fatalf("expected default base interval, got %v", p.baseInterval)
	}
	if p.maxInterval != p.baseInterval {
		t.Fatalf("max below base should clamp to base, got %v", p.maxInterval)
	}
}

func TestAdaptivePoller_GetStatsAndReset(t *testing.T) {
	p := NewAdaptivePoller(time.Second, 5*time.Second)
	p.RecordWork()
	p.RecordIdle()

	stats := p.GetStats()
	if stats["total_polls"].(int) != 2 {
		t.Fatalf("expected total_polls=2, got %v", stats["total_polls"])
	}
	if stats["busy_rate"].(float64) != 0.5 {
		t.Fatalf("expected busy_rate=0.5, got %v", stats["busy_rate"])
	}

	p.Reset()
	stats = p.GetStats()
	if stats["total_polls"].(int) != 0 || stats["consecutive_idle"].(int) != 0 {
		t.Fatalf("expected stats reset, got %v", stats)
	}
}

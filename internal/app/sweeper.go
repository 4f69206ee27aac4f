package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Purger drops expired state and reports how many items it removed.
type Purger interface {
	Purge() int
}

// Sweeper periodically purges idle search boxes and expired outbox entries.
type Sweeper struct {
	targets  map[string]Purger
	interval time.Duration
}

// NewSweeper returns nil when there is nothing to sweep.
func NewSweeper(interval time.Duration, targets map[string]Purger) *Sweeper {
	live := make(map[string]Purger, len(targets))
	for name, p := range targets {
		if p != nil {
			live[name] = p
		}
	}
	if len(live) == 0 {
		return nil
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{targets: live, interval: interval}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) map[string]int {
	_, span := otel.Tracer("app.sweeper").Start(ctx, "Sweeper.sweepOnce")
	defer span.End()

	removed := make(map[string]int, len(s.targets))
	for name, p := range s.targets {
		n := s.purge(name, p)
		removed[name] = n
		span.SetAttributes(attribute.Int("sweeper."+name+".removed", n))
		if n > 0 {
			slog.Debug("sweeper purged", slog.String("target", name), slog.Int("removed", n))
		}
	}
	return removed
}

func (s *Sweeper) purge(name string, p Purger) (n int) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("sweeper target panicked", slog.String("target", name), slog.Any("recover", rec))
			n = 0
		}
	}()
	return p.Purge()
}

// Package usecase contains the dispatch, session and history services that
// sit between the chat transport and the search/chat backends.
package usecase

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/observability"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
	obsctx "github.com/fairyhunter13/chatbot-dispatcher/internal/observability"
)

// NoResultFunc renders the "nothing found" reply once every engine has been
// tried without success.
type NoResultFunc func(ctx domain.Context, task *domain.Task)

// engineSlot gives each engine a stable identity independent of its dynamic type.
type engineSlot struct {
	engine domain.Engine
}

// Dispatcher runs a task against an ordered list of engines, falling through
// to the next engine on failure and promoting the first engine that succeeds
// after others failed.
type Dispatcher struct {
	service  string
	monitor  domain.Monitor
	noResult NoResultFunc

	mu    sync.Mutex
	slots []*engineSlot
}

// NewDispatcher builds a dispatcher over a private copy of engines.
func NewDispatcher(service string, engines []domain.Engine, monitor domain.Monitor, noResult NoResultFunc) *Dispatcher {
	slots := make([]*engineSlot, 0, len(engines))
	for _, e := range engines {
		if e != nil {
			slots = append(slots, &engineSlot{engine: e})
		}
	}
	return &Dispatcher{
		service:  service,
		monitor:  monitor,
		noResult: noResult,
		slots:    slots,
	}
}

// Service returns the name reported to the monitor.
func (d *Dispatcher) Service() string { return d.service }

// Engines returns the current failover order.
func (d *Dispatcher) Engines() []domain.Engine {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Engine, len(d.slots))
	for i, s := range d.slots {
		out[i] = s.engine
	}
	return out
}

func (d *Dispatcher) snapshot() []*engineSlot {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*engineSlot, len(d.slots))
	copy(out, d.slots)
	return out
}

// promote moves slot to the front. The slot may have moved since the
// snapshot was taken, so it is located by identity under the lock.
func (d *Dispatcher) promote(slot *engineSlot) (from int, moved bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.slots {
		if s != slot {
			continue
		}
		if i == 0 {
			return 0, false
		}
		copy(d.slots[1:i+1], d.slots[:i])
		d.slots[0] = slot
		return i, true
	}
	return -1, false
}

// Dispatch tries engines in order until one succeeds. It returns false when
// the task was cancelled, the engine list is empty, or no engine succeeded.
func (d *Dispatcher) Dispatch(ctx domain.Context, task *domain.Task) bool {
	lg := obsctx.LoggerFromContext(ctx).With(
		slog.String("service", d.service),
		slog.String("task_id", task.ID),
	)
	slots := d.snapshot()
	count := len(slots)
	if count == 0 {
		lg.Error("search engines not set", slog.Any("error", domain.ErrNoEngines))
		observability.ObserveDispatch(d.service, "no_engines")
		return false
	}

	ctx, span := otel.Tracer("search.dispatcher").Start(ctx, "Dispatcher.Dispatch",
		trace.WithAttributes(
			attribute.String("dispatch.service", d.service),
			attribute.Int("dispatch.engines", count),
		))
	defer span.End()

	failed := 0
	index := 0
	var winner *engineSlot
	for ; index < count; index++ {
		if task.IsCancelled() || ctx.Err() != nil {
			lg.Info("task cancelled before engine call", slog.Int("index", index))
			span.SetAttributes(attribute.Bool("dispatch.cancelled", true))
			observability.ObserveDispatch(d.service, "cancelled")
			return false
		}
		slot := slots[index]
		agent := slot.engine.Agent()
		start := time.Now()
		code := d.search(ctx, lg, slot.engine, task)
		dur := time.Since(start)
		span.AddEvent("engine.search", trace.WithAttributes(
			attribute.String("engine.agent", agent),
			attribute.Int("engine.code", code),
			attribute.Int("engine.index", index),
		))

		switch {
		case code > 0:
			observability.ObserveEngineResult(d.service, agent, "success", dur)
			d.report(lg, func(m domain.Monitor) { m.ReportSuccess(d.service, agent) })
			winner = slot
		case code == domain.CodeCancelled:
			observability.ObserveEngineResult(d.service, agent, "cancelled", dur)
			lg.Info("task cancelled by engine", slog.String("agent", agent))
			span.SetAttributes(attribute.Bool("dispatch.cancelled", true))
			observability.ObserveDispatch(d.service, "cancelled")
			return false
		case code < 0:
			observability.ObserveEngineResult(d.service, agent, "failure", dur)
			lg.Error("search error from engine", slog.String("agent", agent), slog.Int("code", code))
			d.report(lg, func(m domain.Monitor) { m.ReportFailure(d.service, agent) })
			failed++
		default:
			// zero is reserved: neither success nor failure, try the next engine
			observability.ObserveEngineResult(d.service, agent, "empty", dur)
			lg.Warn("engine returned reserved code", slog.String("agent", agent))
		}
		if winner != nil {
			break
		}
	}

	if winner == nil {
		// a late cancellation must not produce a user-visible reply
		if !task.IsCancelled() && d.noResult != nil {
			d.respondNoResult(ctx, lg, task)
		}
		if failed == count {
			lg.Error("all engines failed", slog.Int("engines", count))
			span.SetStatus(codes.Error, "all engines failed")
			d.report(lg, func(m domain.Monitor) { m.ReportCrash(d.service) })
			observability.ObserveCrash(d.service)
			observability.ObserveDispatch(d.service, "crash")
			return false
		}
		observability.ObserveDispatch(d.service, "exhausted")
		return false
	}

	if index > 0 {
		if from, moved := d.promote(winner); moved {
			lg.Warn("move engine position", slog.Int("from", from), slog.String("agent", winner.engine.Agent()))
			observability.ObservePromotion(d.service)
		}
	}
	observability.ObserveDispatch(d.service, "success")
	return true
}

// search calls the engine and maps errors and panics to domain.CodeEngineFault.
func (d *Dispatcher) search(ctx domain.Context, lg *slog.Logger, engine domain.Engine, task *domain.Task) (code int) {
	defer func() {
		if rec := recover(); rec != nil {
			lg.Error("engine panicked", slog.String("agent", engine.Agent()), slog.Any("recover", rec))
			code = domain.CodeEngineFault
		}
	}()
	code, err := engine.Search(ctx, task)
	if err != nil {
		lg.Error("failed to search", slog.String("agent", engine.Agent()), slog.String("keywords", task.Keywords), slog.Any("error", err))
		return domain.CodeEngineFault
	}
	return code
}

// report forwards to the monitor; a misbehaving monitor never affects dispatch.
func (d *Dispatcher) report(lg *slog.Logger, fn func(domain.Monitor)) {
	if d.monitor == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			lg.Error("monitor panicked", slog.Any("recover", rec))
		}
	}()
	fn(d.monitor)
}

func (d *Dispatcher) respondNoResult(ctx domain.Context, lg *slog.Logger, task *domain.Task) {
	defer func() {
		if rec := recover(); rec != nil {
			lg.Error("no-result responder panicked", slog.Any("recover", rec))
		}
	}()
	d.noResult(ctx, task)
}

// String implements fmt.Stringer for log output.
func (d *Dispatcher) String() string {
	engines := d.Engines()
	agents := make([]string, len(engines))
	for i, e := range engines {
		agents[i] = e.Agent()
	}
	return fmt.Sprintf("<Dispatcher service=%q engines=%v>", d.service, agents)
}

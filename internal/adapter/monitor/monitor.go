// Package monitor aggregates per-engine health counters and periodically
// reports them to supervisors.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
)

// Bottle counts outcomes for one engine agent.
type Bottle struct {
	Agent   string `json:"agent"`
	Success int    `json:"success"`
	Failure int    `json:"failure"`
}

// Barrel groups the bottles of one service for a report window.
type Barrel struct {
	Service string    `json:"service"`
	Start   time.Time `json:"start"`
	Bottles []Bottle  `json:"bottles"`
	Success int       `json:"success"`
	Crash   int       `json:"crash"`
}

type barrel struct {
	service string
	start   time.Time
	agents  []string
	bottles map[string]*Bottle
	success int
	crash   int
}

func newBarrel(service string, start time.Time) *barrel {
	return &barrel{service: service, start: start, bottles: make(map[string]*Bottle)}
}

func (b *barrel) bottle(agent string) *Bottle {
	bt, ok := b.bottles[agent]
	if !ok {
		bt = &Bottle{Agent: agent}
		b.bottles[agent] = bt
		b.agents = append(b.agents, agent)
	}
	return bt
}

func (b *barrel) snapshot() Barrel {
	out := Barrel{
		Service: b.service,
		Start:   b.start,
		Bottles: make([]Bottle, 0, len(b.agents)),
		Success: b.success,
		Crash:   b.crash,
	}
	for _, a := range b.agents {
		out.Bottles = append(out.Bottles, *b.bottles[a])
	}
	return out
}

// Emitter delivers a rendered report to one supervisor.
type Emitter interface {
	Emit(ctx context.Context, supervisor, text string) error
}

// Options configures a Monitor.
type Options struct {
	Emitter     Emitter
	Supervisors []string
	Interval    time.Duration
	Clock       domain.Clock
}

// Monitor implements domain.Monitor. Counters accumulate until the next
// report, which resets them.
type Monitor struct {
	emitter     Emitter
	supervisors []string
	interval    time.Duration
	clock       domain.Clock

	mu      sync.Mutex
	barrels map[string]*barrel
	order   []string
}

var _ domain.Monitor = (*Monitor)(nil)

// New builds a monitor. Without an emitter reports are only logged.
func New(opts Options) *Monitor {
	if opts.Clock == nil {
		opts.Clock = domain.SystemClock{}
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.Emitter == nil {
		opts.Emitter = LogEmitter{}
	}
	return &Monitor{
		emitter:     opts.Emitter,
		supervisors: opts.Supervisors,
		interval:    opts.Interval,
		clock:       opts.Clock,
		barrels:     make(map[string]*barrel),
	}
}

func (m *Monitor) barrel(service string) *barrel {
	b, ok := m.barrels[service]
	if !ok {
		b = newBarrel(service, m.clock.Now())
		m.barrels[service] = b
		m.order = append(m.order, service)
	}
	return b
}

// ReportSuccess counts a successful search by agent.
func (m *Monitor) ReportSuccess(service, agent string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.barrel(service)
	b.bottle(agent).Success++
	b.success++
}

// ReportFailure counts a failed search by agent.
func (m *Monitor) ReportFailure(service, agent string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.barrel(service).bottle(agent).Failure++
}

// ReportCrash counts a dispatch where every engine failed.
func (m *Monitor) ReportCrash(service string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.barrel(service).crash++
}

// Snapshot returns the current counters without resetting them.
func (m *Monitor) Snapshot() []Barrel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Barrel, 0, len(m.order))
	for _, s := range m.order {
		out = append(out, m.barrels[s].snapshot())
	}
	return out
}

func (m *Monitor) drain() []Barrel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Barrel, 0, len(m.order))
	for _, s := range m.order {
		out = append(out, m.barrels[s].snapshot())
	}
	m.barrels = make(map[string]*barrel)
	m.order = nil
	return out
}

// Flush sends one report per service to every supervisor and resets the
// counters. Emit failures are logged and do not stop the remaining reports.
func (m *Monitor) Flush(ctx context.Context) int {
	now := m.clock.Now()
	barrels := m.drain()
	slog.Info("reporting services to supervisors",
		slog.Int("services", len(barrels)),
		slog.Any("supervisors", m.supervisors))
	sent := 0
	for _, b := range barrels {
		text := RenderReport(b, now)
		for _, sup := range m.supervisors {
			if err := m.emitter.Emit(ctx, sup, text); err != nil {
				slog.Error("failed to send monitor report",
					slog.String("service", b.Service),
					slog.String("supervisor", sup),
					slog.Any("error", err))
				continue
			}
			sent++
		}
	}
	return sent
}

// Run flushes a report every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Flush(ctx)
		}
	}
}

const reportTimeLayout = "2006-01-02 15:04:05"

// RenderReport renders one service's counters as markdown.
func RenderReport(b Barrel, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**:\n", b.Service)
	for _, bt := range b.Bottles {
		fmt.Fprintf(&sb, "- **%s** - success: %d, failure: %d\n", bt.Agent, bt.Success, bt.Failure)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Start [%s]\n", b.Start.Format(reportTimeLayout))
	fmt.Fprintf(&sb, "End   [%s]\n", now.Format(reportTimeLayout))
	fmt.Fprintf(&sb, "Totally, success: **%d**, crash: **%d**", b.Success, b.Crash)
	return sb.String()
}

package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
)

type fakeEngine struct {
	agent string
	code  int
	err   error
	panic bool
	// onSearch runs before the result is returned
	onSearch func(task *domain.Task)

	mu    sync.Mutex
	calls int
}

func (e *fakeEngine) Agent() string { return e.agent }

func (e *fakeEngine) Search(_ context.Context, task *domain.Task) (int, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.onSearch != nil {
		e.onSearch(task)
	}
	if e.panic {
		panic("engine exploded")
	}
	return e.code, e.err
}

func (e *fakeEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type monitorEvent struct {
	kind    string
	service string
	agent   string
}

type fakeMonitor struct {
	mu     sync.Mutex
	events []monitorEvent
	panics bool
}

func (m *fakeMonitor) record(ev monitorEvent) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	if m.panics {
		panic("monitor down")
	}
}

func (m *fakeMonitor) ReportSuccess(service, agent string) {
	m.record(monitorEvent{kind: "success", service: service, agent: agent})
}

func (m *fakeMonitor) ReportFailure(service, agent string) {
	m.record(monitorEvent{kind: "failure", service: service, agent: agent})
}

func (m *fakeMonitor) ReportCrash(service string) {
	m.record(monitorEvent{kind: "crash", service: service})
}

func (m *fakeMonitor) Events() []monitorEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]monitorEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *fakeMonitor) count(kind string) int {
	n := 0
	for _, ev := range m.Events() {
		if ev.kind == kind {
			n++
		}
	}
	return n
}

type sentReply struct {
	text  string
	req   domain.Request
	muted bool
}

type fakeResponder struct {
	mu      sync.Mutex
	replies []sentReply
	names   map[string]string
	err     error
}

func (r *fakeResponder) RespondMarkdown(_ context.Context, text string, req domain.Request, opts ...domain.ResponseOption) error {
	o := domain.ApplyResponseOptions(opts...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, sentReply{text: text, req: req, muted: o.Muted})
	return r.err
}

func (r *fakeResponder) GetName(_ context.Context, id string) string {
	if n, ok := r.names[id]; ok {
		return n
	}
	return ""
}

func (r *fakeResponder) Replies() []sentReply {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentReply, len(r.replies))
	copy(out, r.replies)
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeBackend struct {
	mu     sync.Mutex
	answer string
	err    error
	asked  []string
	onAsk  func(q string)
}

func (b *fakeBackend) Ask(_ context.Context, q string) (string, error) {
	b.mu.Lock()
	b.asked = append(b.asked, q)
	b.mu.Unlock()
	if b.onAsk != nil {
		b.onAsk(q)
	}
	return b.answer, b.err
}

func (b *fakeBackend) Asked() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.asked))
	copy(out, b.asked)
	return out
}

var errBoom = errors.New("boom")

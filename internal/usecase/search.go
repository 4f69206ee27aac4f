package usecase

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
	obsctx "github.com/fairyhunter13/chatbot-dispatcher/internal/observability"
)

// DefaultSuggestionLimit caps the history keywords offered with a no-result reply.
const DefaultSuggestionLimit = 10

// SearchClientConfig wires the collaborators shared by every search box.
type SearchClientConfig struct {
	Service         string
	Engines         []domain.Engine
	Monitor         domain.Monitor
	History         *History
	Responder       domain.Responder
	Clock           domain.Clock
	BoxExpires      time.Duration
	PurgeInterval   time.Duration
	SuggestionLimit int
}

// SearchClient keeps one SearchBox per conversation. Each box owns its own
// copy of the engine order, so promotions in one conversation do not affect
// another.
type SearchClient struct {
	cfg SearchClientConfig

	mu          sync.Mutex
	boxes       map[string]*SearchBox
	nextPurgeAt time.Time

	inflight sync.WaitGroup
}

// NewSearchClient builds a client. Missing settings fall back to defaults.
func NewSearchClient(cfg SearchClientConfig) *SearchClient {
	if cfg.Service == "" {
		cfg.Service = "SearchBox"
	}
	if cfg.History == nil {
		cfg.History = NewHistory(domain.HistoryCapacity)
	}
	if cfg.Clock == nil {
		cfg.Clock = domain.SystemClock{}
	}
	if cfg.BoxExpires <= 0 {
		cfg.BoxExpires = domain.SessionExpires
	}
	if cfg.PurgeInterval <= 0 {
		cfg.PurgeInterval = domain.PurgeInterval
	}
	if cfg.SuggestionLimit <= 0 {
		cfg.SuggestionLimit = DefaultSuggestionLimit
	}
	engines := make([]domain.Engine, len(cfg.Engines))
	copy(engines, cfg.Engines)
	cfg.Engines = engines
	return &SearchClient{
		cfg:   cfg,
		boxes: make(map[string]*SearchBox),
	}
}

// History returns the shared command history.
func (c *SearchClient) History() *History { return c.cfg.History }

// Service returns the service name reported to the monitor.
func (c *SearchClient) Service() string { return c.cfg.Service }

// EngineCount returns the number of configured engines.
func (c *SearchClient) EngineCount() int { return len(c.cfg.Engines) }

// Box returns the box for conversation, creating it on first use.
func (c *SearchClient) Box(conversation string) *SearchBox {
	now := c.cfg.Clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	box, ok := c.boxes[conversation]
	if !ok {
		box = c.newBox(conversation, now)
		c.boxes[conversation] = box
	}
	box.touch(now)
	return box
}

func (c *SearchClient) newBox(conversation string, now time.Time) *SearchBox {
	box := &SearchBox{
		id:         conversation,
		client:     c,
		lastActive: now,
	}
	box.dispatcher = NewDispatcher(c.cfg.Service, c.cfg.Engines, c.cfg.Monitor, box.respondNoResult)
	return box
}

// Len returns the number of open boxes.
func (c *SearchClient) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.boxes)
}

// Purge closes boxes idle for longer than the box expiry, cancelling their
// tasks. It scans at most once per purge interval and returns how many boxes
// were removed.
func (c *SearchClient) Purge() int {
	now := c.cfg.Clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Before(c.nextPurgeAt) {
		return 0
	}
	c.nextPurgeAt = now.Add(c.cfg.PurgeInterval)
	removed := 0
	for id, box := range c.boxes {
		if now.Sub(box.LastActive()) <= c.cfg.BoxExpires {
			continue
		}
		box.CancelTask()
		delete(c.boxes, id)
		removed++
	}
	if removed > 0 {
		slog.Info("purged idle search boxes", slog.Int("removed", removed), slog.Int("remaining", len(c.boxes)))
	}
	return removed
}

// Wait blocks until every background dispatch has finished.
func (c *SearchClient) Wait() { c.inflight.Wait() }

// SearchBox is the per-conversation search front end. It records every query
// in history, handles the system commands and runs searches in the background.
type SearchBox struct {
	id         string
	client     *SearchClient
	dispatcher *Dispatcher

	mu         sync.Mutex
	task       *domain.Task
	lastActive time.Time
}

// ID returns the conversation identifier.
func (b *SearchBox) ID() string { return b.id }

// Engines returns this box's current engine order.
func (b *SearchBox) Engines() []domain.Engine { return b.dispatcher.Engines() }

// LastActive returns the time of the last request routed to this box.
func (b *SearchBox) LastActive() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastActive
}

func (b *SearchBox) touch(now time.Time) {
	b.mu.Lock()
	b.lastActive = now
	b.mu.Unlock()
}

// CurrentTask returns the live task, or nil.
func (b *SearchBox) CurrentTask() *domain.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.task
}

// CancelTask cancels and forgets the live task, if any.
func (b *SearchBox) CancelTask() {
	b.mu.Lock()
	task := b.task
	b.task = nil
	b.mu.Unlock()
	if task != nil {
		slog.Warn("cancelling task", slog.String("box", b.id), slog.String("task_id", task.ID))
		task.Cancel()
	}
}

// NewTask creates the box's live task, cancelling the previous one.
func (b *SearchBox) NewTask(keywords string, req domain.Request) *domain.Task {
	task := domain.NewTask(uuid.NewString(), keywords, req, b.client.cfg.Responder)
	b.mu.Lock()
	prev := b.task
	b.task = task
	b.mu.Unlock()
	if prev != nil {
		slog.Warn("cancelling task", slog.String("box", b.id), slog.String("task_id", prev.ID))
		prev.Cancel()
	}
	return task
}

func (b *SearchBox) finish(task *domain.Task) {
	b.mu.Lock()
	if b.task == task {
		b.task = nil
	}
	b.mu.Unlock()
}

// HandleQuery processes one inbound message. Blank text is ignored. Every
// other query cancels the running search and is recorded in history; system
// commands ("cancel", "stop", "show history") are answered inline, anything
// else starts a background search whose task is returned.
func (b *SearchBox) HandleQuery(ctx domain.Context, req domain.Request) *domain.Task {
	keywords := strings.TrimSpace(req.Text)
	if keywords == "" {
		return nil
	}
	lg := obsctx.LoggerFromContext(ctx).With(slog.String("box", b.id))
	lg.Info("received search prompt", slog.String("keywords", keywords), slog.String("sender", req.Sender), slog.String("group", req.Group))

	b.CancelTask()
	hist := b.client.cfg.History
	when := req.Time
	if when.IsZero() {
		when = b.client.cfg.Clock.Now()
	}
	hist.AddCommand(keywords, when, req.Sender, req.Group)

	switch strings.ToLower(keywords) {
	case "cancel", "stop":
		return nil
	case "show history":
		b.respondHistory(ctx, lg, req)
		return nil
	}

	task := b.NewTask(keywords, req)
	runCtx := obsctx.DetachedContext(ctx)
	b.client.inflight.Add(1)
	go func() {
		defer b.client.inflight.Done()
		defer func() {
			if rec := recover(); rec != nil {
				lg.Error("search dispatch panicked", slog.Any("recover", rec))
			}
		}()
		defer b.finish(task)
		b.dispatcher.Dispatch(runCtx, task)
	}()
	return task
}

func (b *SearchBox) respondHistory(ctx domain.Context, lg *slog.Logger, req domain.Request) {
	r := b.client.cfg.Responder
	if r == nil {
		return
	}
	text := renderHistory(ctx, b.client.cfg.History.Commands(), r.GetName)
	if err := r.RespondMarkdown(ctx, text, req); err != nil {
		lg.Error("failed to respond history", slog.Any("error", err))
	}
}

func (b *SearchBox) respondNoResult(ctx domain.Context, task *domain.Task) {
	r := task.Owner
	if r == nil {
		return
	}
	limit := b.client.cfg.SuggestionLimit
	suggestions := make([]string, 0, limit)
	for _, kw := range b.client.cfg.History.Keywords(limit + 1) {
		if len(suggestions) < limit && !strings.EqualFold(kw, task.Keywords) {
			suggestions = append(suggestions, kw)
		}
	}
	text := renderNoResult(task.Keywords, suggestions)
	if err := r.RespondMarkdown(ctx, text, task.Request); err != nil {
		obsctx.LoggerFromContext(ctx).Error("failed to respond no result", slog.String("task_id", task.ID), slog.Any("error", err))
	}
}

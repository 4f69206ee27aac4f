package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/observability"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
	obsctx "github.com/fairyhunter13/chatbot-dispatcher/internal/observability"
)

// ErrWorkerRunning is returned when Run is called while a worker loop is active.
var ErrWorkerRunning = errors.New("chat worker already running")

// ChatTask pairs a queued request with the callback that receives its answer.
type ChatTask struct {
	Request  domain.ChatRequest
	Callback domain.ChatCallback
}

// respond invokes the callback, containing any panic it raises.
func (t *ChatTask) respond(lg *slog.Logger, answer string) {
	defer func() {
		if rec := recover(); rec != nil {
			lg.Error("chat callback panicked", slog.Any("recover", rec))
		}
	}()
	if t.Callback != nil {
		t.Callback(answer, t.Request)
	}
}

// TaskQueue is an unbounded FIFO safe for many producers and one consumer.
type TaskQueue struct {
	mu    sync.Mutex
	tasks []*ChatTask
}

// Push appends a task at the tail.
func (q *TaskQueue) Push(task *ChatTask) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	n := len(q.tasks)
	q.mu.Unlock()
	observability.SetChatQueueDepth(n)
}

// Pop removes the head task, or returns nil when the queue is empty.
func (q *TaskQueue) Pop() *ChatTask {
	q.mu.Lock()
	if len(q.tasks) == 0 {
		q.mu.Unlock()
		return nil
	}
	task := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	n := len(q.tasks)
	q.mu.Unlock()
	observability.SetChatQueueDepth(n)
	return task
}

// Len returns the number of waiting tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// IdleBackoff decides how long the worker sleeps after an empty poll.
type IdleBackoff interface {
	NextInterval() time.Duration
	RecordWork()
	RecordIdle()
}

type fixedIdle time.Duration

func (f fixedIdle) NextInterval() time.Duration { return time.Duration(f) }
func (fixedIdle) RecordWork() {}
func (fixedIdle) RecordIdle() {}

// ChatClientConfig carries the connection settings handed to new sessions.
type ChatClientConfig struct {
	BaseURL   string
	Referer   string
	AuthToken string
	// NewHTTPClient builds the shared client passed to sessions; it is
	// rebuilt once HTTPClientTTL has elapsed.
	NewHTTPClient func() *http.Client
	HTTPClientTTL time.Duration
	Idle          IdleBackoff
	Clock         domain.Clock
}

// ChatClient serializes chat requests through a single worker that resolves
// each user's session and delivers the answer to the request's callback.
type ChatClient struct {
	pool  *SessionPool
	queue *TaskQueue
	cfg   ChatClientConfig

	httpMu      sync.Mutex
	httpClient  *http.Client
	httpExpires time.Time

	running atomic.Bool
}

// NewChatClient builds a client over pool.
func NewChatClient(pool *SessionPool, cfg ChatClientConfig) *ChatClient {
	if cfg.Clock == nil {
		cfg.Clock = domain.SystemClock{}
	}
	if cfg.Idle == nil {
		cfg.Idle = fixedIdle(2 * time.Second)
	}
	if cfg.HTTPClientTTL <= 0 {
		cfg.HTTPClientTTL = domain.SessionExpires
	}
	if cfg.NewHTTPClient == nil {
		cfg.NewHTTPClient = func() *http.Client { return &http.Client{Timeout: 60 * time.Second} }
	}
	return &ChatClient{
		pool:  pool,
		queue: &TaskQueue{},
		cfg:   cfg,
	}
}

// Queue exposes the pending task queue.
func (c *ChatClient) Queue() *TaskQueue { return c.queue }

// Request enqueues a question from user and returns the request ID. It never
// blocks on backend work.
func (c *ChatClient) Request(question, user string, callback domain.ChatCallback) string {
	req := domain.ChatRequest{
		ID:       uuid.NewString(),
		Question: question,
		User:     user,
		Time:     c.cfg.Clock.Now(),
	}
	c.queue.Push(&ChatTask{Request: req, Callback: callback})
	observability.ChatTaskEvent("enqueued")
	return req.ID
}

// HTTPClient returns the shared outbound client, recreating it when stale.
func (c *ChatClient) HTTPClient() *http.Client {
	c.httpMu.Lock()
	defer c.httpMu.Unlock()
	now := c.cfg.Clock.Now()
	if c.httpClient == nil || now.After(c.httpExpires) {
		c.httpClient = c.cfg.NewHTTPClient()
		c.httpExpires = now.Add(c.cfg.HTTPClientTTL)
	}
	return c.httpClient
}

func (c *ChatClient) sessionParams() domain.SessionParams {
	return domain.SessionParams{
		BaseURL:    c.cfg.BaseURL,
		Referer:    c.cfg.Referer,
		AuthToken:  c.cfg.AuthToken,
		HTTPClient: c.HTTPClient(),
	}
}

// Process handles at most one queued task. It returns false when the queue
// was empty (after giving the pool a chance to purge) or the task was dropped.
func (c *ChatClient) Process(ctx domain.Context) bool {
	task := c.queue.Pop()
	if task == nil {
		c.pool.Purge()
		return false
	}
	req := task.Request
	lg := obsctx.LoggerFromContext(ctx).With(
		slog.String("chat_request_id", req.ID),
		slog.String("user", req.User),
	)

	question := req.Question
	if IsGreeting(question) {
		question = Greeting(greetingLanguage(question))
	}

	session, err := c.pool.GetSession(req.User, c.sessionParams())
	if err != nil {
		lg.Error("failed to get chat session, drop request", slog.String("question", question), slog.Any("error", err))
		observability.ChatTaskEvent("dropped")
		return false
	}

	answer, ok := session.Ask(ctx, question)
	switch {
	case !ok:
		lg.Error("failed to get answer", slog.String("question", question), slog.Any("error", domain.ErrNoAnswer))
		answer = domain.NotFoundPayload
		observability.ChatTaskEvent("fallback")
	case answer == "":
		lg.Warn("empty answer", slog.String("question", question))
		answer = domain.NoContentPayload
		observability.ChatTaskEvent("fallback")
	}

	task.respond(lg, answer)
	observability.ChatTaskEvent("completed")
	return true
}

// Run drives Process until ctx is done. Busy loops continue immediately; idle
// loops sleep for the interval chosen by the configured IdleBackoff.
func (c *ChatClient) Run(ctx domain.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("op=chat.run: %w", ErrWorkerRunning)
	}
	defer c.running.Store(false)

	lg := obsctx.LoggerFromContext(ctx)
	lg.Info("chat worker started")
	defer lg.Info("chat worker stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if c.processSafely(ctx, lg) {
			c.cfg.Idle.RecordWork()
			continue
		}
		c.cfg.Idle.RecordIdle()
		timer.Reset(c.cfg.Idle.NextInterval())
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

func (c *ChatClient) processSafely(ctx domain.Context, lg *slog.Logger) (busy bool) {
	defer func() {
		if rec := recover(); rec != nil {
			lg.Error("chat worker panic recovered", slog.Any("recover", rec))
			busy = false
		}
	}()
	return c.Process(ctx)
}

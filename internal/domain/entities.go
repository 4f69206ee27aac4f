package domain

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrNoEngines          = errors.New("no engines configured")
	ErrSessionUnavailable = errors.New("session unavailable")
	ErrNoAnswer           = errors.New("no answer")
	ErrUpstreamTimeout    = errors.New("upstream timeout")
	ErrUpstreamRateLimit  = errors.New("upstream rate limit")
	ErrInternal           = errors.New("internal error")
)

// Engine result codes. Positive codes mean success, zero is reserved and any
// other negative value is an engine-specific failure.
const (
	CodeCancelled   = -205
	CodeNotFound    = -404
	CodeEngineFault = -500
)

// Stable limits shared by the dispatcher, session pool and history.
const (
	SessionExpires  = 36000 * time.Second
	PurgeInterval   = 60 * time.Second
	HistoryCapacity = 50
)

// Fallback payloads delivered to chat callbacks.
const (
	NoContentPayload = `{
    "code": 204,
    "error": "No Content."
}`
	NotFoundPayload = `{
    "code": 404,
    "error": "No response, please try again later."
}`
)

// Context is an alias to allow decoupling from std context in domain.
type Context = context.Context

// Request is the inbound message a search box answers. It is handed back
// untouched to the Responder so adapters can correlate their replies.
type Request struct {
	ID     string
	Sender string
	Group  string // empty for personal messages
	Time   time.Time
	Text   string
	Tag    string
}

// Task is one in-flight search owned by a single conversation box.
// Cancellation is cooperative: engines poll IsCancelled between steps.
type Task struct {
	ID       string
	Keywords string
	Request  Request
	Owner    Responder

	cancelled atomic.Bool
}

// NewTask builds a live task.
func NewTask(id, keywords string, req Request, owner Responder) *Task {
	return &Task{ID: id, Keywords: keywords, Request: req, Owner: owner}
}

// Cancel marks the task as cancelled. Safe to call more than once.
func (t *Task) Cancel() { t.cancelled.Store(true) }

// IsCancelled reports whether the task was cancelled.
func (t *Task) IsCancelled() bool { return t.cancelled.Load() }

// HistoryEntry is one recorded command. Immutable once appended.
type HistoryEntry struct {
	Sender string    `json:"sender"`
	Group  string    `json:"group,omitempty"`
	When   time.Time `json:"when"`
	Cmd    string    `json:"cmd"`
}

// ChatRequest is a queued question for the chat-completion worker.
type ChatRequest struct {
	ID       string
	Question string
	User     string
	Time     time.Time
}

// ChatCallback receives the answer for an accepted chat request. It is
// invoked exactly once per accepted task.
type ChatCallback func(answer string, req ChatRequest)

// Ports
//go:generate mockery --name=Engine --with-expecter --filename=engine_mock.go
//go:generate mockery --name=Monitor --with-expecter --filename=monitor_mock.go

// Engine is a pluggable search backend.
type Engine interface {
	// Agent identifies the engine for monitor reporting.
	Agent() string
	// Search returns a signed result code. A returned error is treated as an
	// engine fault regardless of the code.
	Search(ctx Context, task *Task) (int, error)
}

// Monitor observes engine health. Calls are fire-and-forget.
type Monitor interface {
	ReportSuccess(service, agent string)
	ReportFailure(service, agent string)
	ReportCrash(service string)
}

// Responder delivers markdown replies for a request.
type Responder interface {
	RespondMarkdown(ctx Context, text string, req Request, opts ...ResponseOption) error
	GetName(ctx Context, identifier string) string
}

// Backend is one conversational connection to a chat-completion service.
type Backend interface {
	Ask(ctx Context, question string) (string, error)
}

// SessionParams carries what a backend needs to be constructed.
type SessionParams struct {
	BaseURL    string
	Referer    string
	AuthToken  string
	HTTPClient *http.Client
}

// SessionFactory builds a backend from params. Must not mutate shared state.
type SessionFactory func(params SessionParams) (Backend, error)

// Clock abstracts time for expiry bookkeeping.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

package httpserver

import (
	"strings"
	"sync"
	"time"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
	obsctx "github.com/fairyhunter13/chatbot-dispatcher/internal/observability"
)

// Reply is one markdown message produced for a request.
type Reply struct {
	Text  string         `json:"text"`
	Muted bool           `json:"muted,omitempty"`
	Extra map[string]any `json:"extra,omitempty"`
	Time  time.Time      `json:"time"`
}

type outboxEntry struct {
	replies   []Reply
	expiresAt time.Time
}

// Outbox is a domain.Responder that keeps replies in memory until a client
// fetches them or they expire.
type Outbox struct {
	ttl   time.Duration
	clock domain.Clock

	mu      sync.Mutex
	entries map[string]*outboxEntry
	names   map[string]string
}

var _ domain.Responder = (*Outbox)(nil)

// NewOutbox returns an outbox whose entries live for ttl after their last reply.
func NewOutbox(ttl time.Duration, clock domain.Clock) *Outbox {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Outbox{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]*outboxEntry),
		names:   make(map[string]string),
	}
}

// Open registers a request so it can be polled before any reply arrives.
func (o *Outbox) Open(requestID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.entries[requestID]; !ok {
		o.entries[requestID] = &outboxEntry{expiresAt: o.clock.Now().Add(o.ttl)}
	}
}

// RespondMarkdown implements domain.Responder.
func (o *Outbox) RespondMarkdown(ctx domain.Context, text string, req domain.Request, opts ...domain.ResponseOption) error {
	if req.ID == "" {
		return domain.ErrInvalidArgument
	}
	ro := domain.ApplyResponseOptions(opts...)
	now := o.clock.Now()

	o.mu.Lock()
	e, ok := o.entries[req.ID]
	if !ok {
		e = &outboxEntry{}
		o.entries[req.ID] = e
	}
	e.replies = append(e.replies, Reply{Text: text, Muted: ro.Muted, Extra: ro.Extra, Time: now})
	e.expiresAt = now.Add(o.ttl)
	o.mu.Unlock()

	obsctx.LoggerFromContext(ctx).Debug("reply stored", "request_id", req.ID, "bytes", len(text))
	return nil
}

// SetName records a display name for a sender or group id.
func (o *Outbox) SetName(id, name string) {
	name = strings.TrimSpace(name)
	if id == "" || name == "" {
		return
	}
	o.mu.Lock()
	o.names[id] = name
	o.mu.Unlock()
}

// GetName implements domain.Responder. Unknown ids resolve to "".
func (o *Outbox) GetName(_ domain.Context, identifier string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.names[identifier]
}

// Replies returns the replies stored for requestID. ok is false when the
// request is unknown or expired.
func (o *Outbox) Replies(requestID string) (replies []Reply, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, found := o.entries[requestID]
	if !found || o.clock.Now().After(e.expiresAt) {
		return nil, false
	}
	out := make([]Reply, len(e.replies))
	copy(out, e.replies)
	return out, true
}

// Purge drops expired entries and returns how many were removed.
func (o *Outbox) Purge() int {
	now := o.clock.Now()
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for id, e := range o.entries {
		if now.After(e.expiresAt) {
			delete(o.entries, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored requests.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

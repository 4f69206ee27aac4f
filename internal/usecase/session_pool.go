package usecase

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/observability"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
	obsctx "github.com/fairyhunter13/chatbot-dispatcher/internal/observability"
)

// ChatSession wraps one backend connection and tracks its inactivity expiry.
type ChatSession struct {
	backend domain.Backend
	clock   domain.Clock
	ttl     time.Duration

	mu        sync.Mutex
	expiresAt time.Time
}

func newChatSession(backend domain.Backend, clock domain.Clock, ttl time.Duration) *ChatSession {
	return &ChatSession{
		backend:   backend,
		clock:     clock,
		ttl:       ttl,
		expiresAt: clock.Now().Add(ttl),
	}
}

// ExpiresAt returns the current expiry instant.
func (s *ChatSession) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// IsExpired reports whether now is past the expiry instant.
func (s *ChatSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt())
}

// Ask refreshes the expiry and forwards the question to the backend.
// The expiry is refreshed even when the backend fails.
func (s *ChatSession) Ask(ctx domain.Context, question string) (answer string, ok bool) {
	s.mu.Lock()
	s.expiresAt = s.clock.Now().Add(s.ttl)
	s.mu.Unlock()

	lg := obsctx.LoggerFromContext(ctx)
	defer func() {
		if rec := recover(); rec != nil {
			lg.Error("chat backend panicked", slog.Any("recover", rec))
			answer, ok = "", false
		}
	}()

	start := time.Now()
	answer, err := s.backend.Ask(ctx, question)
	observability.ObserveChatAsk(time.Since(start))
	if err != nil {
		lg.Error("chat backend error", slog.Any("error", err))
		return "", false
	}
	return answer, true
}

type poolEntry struct {
	session *ChatSession
}

// SessionPool hands out one ChatSession per user. Entries are only removed by
// Purge, once their session has expired.
type SessionPool struct {
	factory       domain.SessionFactory
	clock         domain.Clock
	ttl           time.Duration
	purgeInterval time.Duration

	mu          sync.Mutex
	byUser      map[string]*poolEntry
	live        map[*ChatSession]struct{}
	nextPurgeAt time.Time
}

// SessionPoolOption customises a SessionPool.
type SessionPoolOption func(*SessionPool)

// WithClock overrides the wall clock.
func WithClock(c domain.Clock) SessionPoolOption {
	return func(p *SessionPool) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithSessionExpires overrides domain.SessionExpires.
func WithSessionExpires(d time.Duration) SessionPoolOption {
	return func(p *SessionPool) {
		if d > 0 {
			p.ttl = d
		}
	}
}

// WithPurgeInterval overrides domain.PurgeInterval.
func WithPurgeInterval(d time.Duration) SessionPoolOption {
	return func(p *SessionPool) {
		if d > 0 {
			p.purgeInterval = d
		}
	}
}

// NewSessionPool builds an empty pool backed by factory.
func NewSessionPool(factory domain.SessionFactory, opts ...SessionPoolOption) *SessionPool {
	p := &SessionPool{
		factory:       factory,
		clock:         domain.SystemClock{},
		ttl:           domain.SessionExpires,
		purgeInterval: domain.PurgeInterval,
		byUser:        make(map[string]*poolEntry),
		live:          make(map[*ChatSession]struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// GetSession returns the cached session for user or creates one. A cached
// session is returned even if it has expired but not been purged yet.
func (p *SessionPool) GetSession(user string, params domain.SessionParams) (*ChatSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.byUser[user]; ok {
		return e.session, nil
	}
	if p.factory == nil {
		return nil, fmt.Errorf("op=session.get: %w: no session factory", domain.ErrSessionUnavailable)
	}
	backend, err := p.factory(params)
	if err != nil {
		return nil, fmt.Errorf("op=session.get: %w: %v", domain.ErrSessionUnavailable, err)
	}
	if backend == nil {
		return nil, fmt.Errorf("op=session.get: %w: factory returned nil backend", domain.ErrSessionUnavailable)
	}
	s := newChatSession(backend, p.clock, p.ttl)
	p.byUser[user] = &poolEntry{session: s}
	p.live[s] = struct{}{}
	observability.SetLiveSessions(len(p.live))
	return s, nil
}

// Purge drops expired sessions. It scans at most once per purge interval and
// reports whether a scan ran. The first call always scans.
func (p *SessionPool) Purge() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	if now.Before(p.nextPurgeAt) {
		return false
	}
	p.nextPurgeAt = now.Add(p.purgeInterval)

	removed := 0
	for s := range p.live {
		if !s.IsExpired(now) {
			continue
		}
		delete(p.live, s)
		removed++
	}
	if removed > 0 {
		for user, e := range p.byUser {
			if _, ok := p.live[e.session]; !ok {
				delete(p.byUser, user)
			}
		}
		slog.Info("purged expired chat sessions", slog.Int("removed", removed), slog.Int("remaining", len(p.live)))
		observability.AddPurgedSessions(removed)
	}
	observability.SetLiveSessions(len(p.live))
	return true
}

// Len returns the number of live sessions.
func (p *SessionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

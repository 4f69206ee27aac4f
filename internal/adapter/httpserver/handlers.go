package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/monitor"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/config"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/usecase"
	"github.com/fairyhunter13/chatbot-dispatcher/pkg/textx"
)

// MonitorView exposes the current engine health counters.
type MonitorView interface {
	Snapshot() []monitor.Barrel
}

// Server aggregates handlers dependencies.
type Server struct {
	Cfg        config.Config
	Search     *usecase.SearchClient
	Chat       *usecase.ChatClient
	Outbox     *Outbox
	Monitor    MonitorView
	RedisCheck func(ctx context.Context) error
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, search *usecase.SearchClient, chat *usecase.ChatClient, outbox *Outbox, mon MonitorView, redisCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Search: search, Chat: chat, Outbox: outbox, Monitor: mon, RedisCheck: redisCheck}
}

// decodeAndValidate reads a JSON body capped at 1MB and validates it.
// It writes the error response itself and reports whether to continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if a := r.Header.Get("Accept"); a != "" && a != "*/*" && !strings.Contains(a, "application/json") {
		writeError(w, r, fmt.Errorf("%w: not acceptable", domain.ErrInvalidArgument), map[string]any{"accept": a})
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
		return false
	}
	if err := getValidator().Struct(dst); err != nil {
		verrs := map[string]string{}
		if ve, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range ve {
				verrs[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
		return false
	}
	return true
}

// SearchHandler accepts a query for a conversation and dispatches it in the
// background. Replies are fetched from ResponsesHandler with the returned id.
func (s *Server) SearchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Search == nil {
			writeError(w, r, fmt.Errorf("op=search: %w", domain.ErrNoEngines), nil)
			return
		}
		var req struct {
			Conversation string `json:"conversation" validate:"required,max=200"`
			Sender       string `json:"sender" validate:"required,max=200"`
			SenderName   string `json:"sender_name" validate:"max=200"`
			Group        string `json:"group" validate:"max=200"`
			GroupName    string `json:"group_name" validate:"max=200"`
			Text         string `json:"text" validate:"required,max=2000"`
			Tag          string `json:"tag" validate:"max=100"`
		}
		if !decodeAndValidate(w, r, &req) {
			return
		}
		text := textx.NormalizeQuery(req.Text)
		if text == "" {
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), map[string]string{"text": "required"})
			return
		}
		s.Outbox.SetName(req.Sender, req.SenderName)
		s.Outbox.SetName(req.Group, req.GroupName)

		id := newReqID()
		s.Outbox.Open(id)
		task := s.Search.Box(req.Conversation).HandleQuery(r.Context(), domain.Request{
			ID:     id,
			Sender: req.Sender,
			Group:  req.Group,
			Time:   time.Now(),
			Text:   text,
			Tag:    req.Tag,
		})
		resp := map[string]string{"id": id, "conversation": req.Conversation}
		if task != nil {
			resp["task_id"] = task.ID
		}
		writeJSON(w, http.StatusAccepted, resp)
	}
}

// CancelHandler cancels the running search of a conversation.
func (s *Server) CancelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Search == nil {
			writeError(w, r, fmt.Errorf("op=cancel: %w", domain.ErrNoEngines), nil)
			return
		}
		s.Search.Box(chi.URLParam(r, "conversation")).CancelTask()
		w.WriteHeader(http.StatusNoContent)
	}
}

// ResponsesHandler returns the replies collected for a search request.
func (s *Server) ResponsesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		replies, ok := s.Outbox.Replies(id)
		if !ok {
			writeError(w, r, fmt.Errorf("%w: request %s", domain.ErrNotFound, id), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "responses": replies})
	}
}

// ChatHandler queues a question and waits for the worker's answer.
func (s *Server) ChatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Chat == nil {
			writeError(w, r, fmt.Errorf("op=chat: %w", domain.ErrSessionUnavailable), nil)
			return
		}
		var req struct {
			User     string `json:"user" validate:"required,max=200"`
			Question string `json:"question" validate:"required,max=8000"`
		}
		if !decodeAndValidate(w, r, &req) {
			return
		}
		type result struct {
			answer string
			req    domain.ChatRequest
		}
		done := make(chan result, 1)
		question := textx.SanitizeText(req.Question)
		if question == "" {
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), map[string]string{"question": "required"})
			return
		}
		id := s.Chat.Request(question, req.User, func(answer string, cr domain.ChatRequest) {
			done <- result{answer: answer, req: cr}
		})

		ctx := r.Context()
		if s.Cfg.ChatWaitTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.Cfg.ChatWaitTimeout)
			defer cancel()
		}
		select {
		case res := <-done:
			writeJSON(w, http.StatusOK, map[string]string{"id": res.req.ID, "user": res.req.User, "answer": res.answer})
		case <-ctx.Done():
			writeError(w, r, fmt.Errorf("op=chat: %w: request %s still queued", domain.ErrNoAnswer, id), map[string]any{"id": id})
		}
	}
}

// HistoryHandler lists the recorded commands, oldest first.
func (s *Server) HistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := []domain.HistoryEntry{}
		if s.Search != nil && s.Search.History() != nil {
			entries = s.Search.History().Commands()
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	}
}

// MonitorHandler shows the engine health counters of the current period.
func (s *Server) MonitorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		barrels := []monitor.Barrel{}
		if s.Monitor != nil {
			barrels = s.Monitor.Snapshot()
		}
		writeJSON(w, http.StatusOK, map[string]any{"barrels": barrels})
	}
}

// ReadyzHandler reports dependency health.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 2)
		if s.RedisCheck != nil {
			if err := s.RedisCheck(ctx); err != nil {
				checks = append(checks, check{Name: "redis", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "redis", OK: true})
			}
		}
		if s.Search != nil {
			if s.Search.EngineCount() == 0 {
				checks = append(checks, check{Name: "engines", OK: false, Details: domain.ErrNoEngines.Error()})
			} else {
				checks = append(checks, check{Name: "engines", OK: true})
			}
		}
		ok := true
		for _, c := range checks {
			if !c.OK {
				ok = false
				break
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}

// Package real implements chat sessions against an OpenAI-compatible
// chat-completions API.
package real

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/observability"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/config"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
)

const provider = "chat"

// Options holds settings shared by every session the factory creates.
type Options struct {
	Model         string
	SystemSetting string
	MaxTokens     int
	MinCount      int
	Backoff       func() *backoff.ExponentialBackOff
	Counter       TokenCounter
}

// OptionsFromConfig derives session options from the application config.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Model:         cfg.ChatModel,
		SystemSetting: cfg.ChatSystemSetting,
		MaxTokens:     cfg.ChatHistoryMaxTokens,
		MinCount:      cfg.ChatHistoryMinCount,
		Backoff: func() *backoff.ExponentialBackOff {
			expo := backoff.NewExponentialBackOff()
			maxElapsedTime, initialInterval, maxInterval, multiplier := cfg.GetAIBackoffConfig()
			expo.MaxElapsedTime = maxElapsedTime
			expo.InitialInterval = initialInterval
			expo.MaxInterval = maxInterval
			expo.Multiplier = multiplier
			return expo
		},
	}
}

// NewFactory returns a session factory bound to opts.
func NewFactory(opts Options) domain.SessionFactory {
	return func(params domain.SessionParams) (domain.Backend, error) {
		return NewSession(params, opts)
	}
}

// Session is one conversation with the chat-completions API. It keeps its own
// message history so follow-up questions carry context.
type Session struct {
	params  domain.SessionParams
	model   string
	hc      *http.Client
	queue   *MessageQueue
	backoff func() *backoff.ExponentialBackOff
}

var _ domain.Backend = (*Session)(nil)

// NewSession validates params and builds a session.
func NewSession(params domain.SessionParams, opts Options) (*Session, error) {
	if strings.TrimSpace(params.BaseURL) == "" {
		return nil, fmt.Errorf("op=chat.new_session: %w: base url required", domain.ErrInvalidArgument)
	}
	hc := params.HTTPClient
	if hc == nil {
		hc = observability.NewHTTPClient(60 * time.Second)
	}
	if opts.Model == "" {
		opts.Model = "gpt-3.5-turbo"
	}
	if opts.Counter == nil {
		opts.Counter = tokencount.DefaultCounter
	}
	if opts.Backoff == nil {
		opts.Backoff = func() *backoff.ExponentialBackOff { return backoff.NewExponentialBackOff() }
	}
	return &Session{
		params:  params,
		model:   opts.Model,
		hc:      hc,
		queue:   NewMessageQueue(opts.Counter, opts.Model, opts.SystemSetting, opts.MaxTokens, opts.MinCount),
		backoff: opts.Backoff,
	}, nil
}

// History returns the session's conversation memory.
func (s *Session) History() []Message { return s.queue.Messages() }

type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Ask sends question with the conversation history and returns the reply.
// An empty reply is returned as "" with a nil error.
func (s *Session) Ask(ctx domain.Context, question string) (string, error) {
	endpoint := strings.TrimRight(s.params.BaseURL, "/") + "/chat/completions"
	body, err := json.Marshal(map[string]any{
		"model":    s.model,
		"messages": s.queue.Build(question),
	})
	if err != nil {
		return "", fmt.Errorf("op=chat.ask: %w", err)
	}

	var out completionResponse
	op := func() error {
		start := time.Now()
		// recreate the request each attempt so the body is not reused
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		r.Header.Set("Content-Type", "application/json")
		if s.params.AuthToken != "" {
			r.Header.Set("Authorization", "Bearer "+s.params.AuthToken)
		}
		if s.params.Referer != "" {
			r.Header.Set("Referer", s.params.Referer)
		}
		resp, err := s.hc.Do(r)
		if err != nil {
			observability.ObserveUpstream(provider, "ask", "error", time.Since(start))
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		observability.ObserveUpstream(provider, "ask", strconv.Itoa(resp.StatusCode), time.Since(start))

		bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			slog.Warn("chat provider rate limited", slog.String("op", "ask"), slog.Int("status", resp.StatusCode))
			return fmt.Errorf("%w: 429", domain.ErrUpstreamRateLimit)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			slog.Warn("chat provider 4xx", slog.String("op", "ask"), slog.Int("status", resp.StatusCode), slog.String("endpoint", endpoint), slog.String("body", snippet(bodyBytes)))
			return backoff.Permanent(fmt.Errorf("chat status %d", resp.StatusCode))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			slog.Error("chat provider non-2xx", slog.String("op", "ask"), slog.Int("status", resp.StatusCode), slog.String("endpoint", endpoint), slog.String("body", snippet(bodyBytes)))
			return fmt.Errorf("chat status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode completion: %w", err))
		}
		return nil
	}

	bo := backoff.WithContext(s.backoff(), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		slog.Error("chat api failed after retries", slog.String("model", s.model), slog.Any("error", err))
		if errors.Is(err, domain.ErrUpstreamRateLimit) {
			return "", fmt.Errorf("op=chat.ask: %w", err)
		}
		return "", fmt.Errorf("op=chat.ask: %w: %w", domain.ErrUpstreamTimeout, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("op=chat.ask: %w: empty choices", domain.ErrNoAnswer)
	}

	msg := out.Choices[0].Message
	if msg.Role == "" {
		msg.Role = "assistant"
	}
	if msg.Content != "" {
		s.queue.Push(Message{Role: msg.Role, Content: msg.Content})
	}
	return msg.Content, nil
}

func snippet(b []byte) string {
	if len(b) > 512 {
		b = b[:512]
	}
	return string(b)
}

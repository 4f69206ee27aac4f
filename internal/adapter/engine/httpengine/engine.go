// Package httpengine implements search engines backed by a JSON HTTP API
// described in the engine catalog.
package httpengine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/observability"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/config"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
	obsctx "github.com/fairyhunter13/chatbot-dispatcher/internal/observability"
)

const (
	// CodeFound is returned when at least one result was delivered.
	CodeFound = 200

	keywordsPlaceholder = "{keywords}"
)

// Result is one hit returned by the upstream search API.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Engine queries one upstream search API.
type Engine struct {
	agent      string
	urlTmpl    string
	maxResults int
	hc         *http.Client
	breaker    *Breaker
	backoff    func() *backoff.ExponentialBackOff
}

var _ domain.Engine = (*Engine)(nil)

// Option customises an Engine.
type Option func(*Engine)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(e *Engine) { e.hc = hc } }

// WithBackoff overrides the retry policy.
func WithBackoff(fn func() *backoff.ExponentialBackOff) Option {
	return func(e *Engine) { e.backoff = fn }
}

// WithBreaker overrides the circuit breaker.
func WithBreaker(b *Breaker) Option { return func(e *Engine) { e.breaker = b } }

// New builds an engine from its catalog entry.
func New(cfg config.EngineConfig, opts ...Option) (*Engine, error) {
	if cfg.Agent == "" || !strings.Contains(cfg.URL, keywordsPlaceholder) {
		return nil, fmt.Errorf("op=httpengine.New: %w: agent and url with %s required", domain.ErrInvalidArgument, keywordsPlaceholder)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	e := &Engine{
		agent:      cfg.Agent,
		urlTmpl:    cfg.URL,
		maxResults: cfg.MaxResults,
		backoff: func() *backoff.ExponentialBackOff {
			expo := backoff.NewExponentialBackOff()
			expo.InitialInterval = 200 * time.Millisecond
			expo.MaxInterval = 2 * time.Second
			expo.MaxElapsedTime = timeout
			return expo
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.hc == nil {
		e.hc = observability.NewHTTPClient(timeout)
	}
	if e.breaker == nil {
		e.breaker = NewBreaker(cfg.Agent, 3, 30*time.Second)
	}
	if e.maxResults <= 0 {
		e.maxResults = 5
	}
	return e, nil
}

// FromCatalog builds engines in catalog order.
func FromCatalog(entries []config.EngineConfig, opts ...Option) ([]domain.Engine, error) {
	out := make([]domain.Engine, 0, len(entries))
	for _, c := range entries {
		e, err := New(c, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Agent implements domain.Engine.
func (e *Engine) Agent() string { return e.agent }

// Breaker exposes the engine's circuit breaker.
func (e *Engine) Breaker() *Breaker { return e.breaker }

// Search implements domain.Engine. It returns CodeFound after responding with
// the results, domain.CodeNotFound when there were none, domain.CodeCancelled
// when the task was cancelled around the upstream call and
// domain.CodeEngineFault when the upstream is unusable.
func (e *Engine) Search(ctx domain.Context, task *domain.Task) (int, error) {
	lg := obsctx.LoggerFromContext(ctx).With(slog.String("agent", e.agent), slog.String("task_id", task.ID))
	if task.IsCancelled() {
		return domain.CodeCancelled, nil
	}
	if !e.breaker.Allow() {
		lg.Warn("engine breaker open, skipping")
		return domain.CodeEngineFault, nil
	}

	results, err := e.fetch(ctx, task.Keywords)
	if task.IsCancelled() {
		// a reply for a superseded task must not reach the user
		return domain.CodeCancelled, nil
	}
	if err != nil {
		e.breaker.RecordFailure()
		lg.Error("search request failed", slog.Any("error", err))
		return domain.CodeEngineFault, nil
	}
	e.breaker.RecordSuccess()
	if len(results) == 0 {
		return domain.CodeNotFound, nil
	}
	if task.Owner == nil {
		return domain.CodeEngineFault, fmt.Errorf("op=httpengine.search: %w: task has no owner", domain.ErrInternal)
	}
	if err := task.Owner.RespondMarkdown(ctx, RenderResults(task.Keywords, results), task.Request); err != nil {
		return domain.CodeEngineFault, fmt.Errorf("op=httpengine.respond: %w", err)
	}
	return CodeFound, nil
}

func (e *Engine) endpoint(keywords string) string {
	return strings.ReplaceAll(e.urlTmpl, keywordsPlaceholder, url.QueryEscape(keywords))
}

func (e *Engine) fetch(ctx domain.Context, keywords string) ([]Result, error) {
	endpoint := e.endpoint(keywords)
	var out searchResponse
	op := func() error {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := e.hc.Do(req)
		if err != nil {
			observability.ObserveUpstream(e.agent, "search", "error", time.Since(start))
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		observability.ObserveUpstream(e.agent, "search", strconv.Itoa(resp.StatusCode), time.Since(start))

		switch {
		case resp.StatusCode == http.StatusNotFound:
			out = searchResponse{}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: 429", domain.ErrUpstreamRateLimit)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(fmt.Errorf("search status %d", resp.StatusCode))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return fmt.Errorf("search status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode results: %w", err))
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(e.backoff(), ctx)); err != nil {
		if errors.Is(err, domain.ErrUpstreamRateLimit) {
			return nil, fmt.Errorf("op=httpengine.fetch: %w", err)
		}
		return nil, fmt.Errorf("op=httpengine.fetch: %w: %w", domain.ErrUpstreamTimeout, err)
	}
	if len(out.Results) > e.maxResults {
		out.Results = out.Results[:e.maxResults]
	}
	return out.Results, nil
}

// RenderResults formats hits as a markdown list.
func RenderResults(keywords string, results []Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Results for **%q**:\n", keywords)
	for i, r := range results {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = r.URL
		}
		fmt.Fprintf(&b, "\n%d. [%s](%s)", i+1, title, r.URL)
		if s := strings.TrimSpace(r.Snippet); s != "" {
			fmt.Fprintf(&b, "\n   %s", s)
		}
	}
	b.WriteString("\n")
	return b.String()
}

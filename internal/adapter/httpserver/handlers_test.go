package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/ai/stub"
	httpserver "github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/httpserver"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/monitor"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/queue/poller"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/config"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/usecase"
)

// echoEngine answers every query with its keywords.
type echoEngine struct{ code int }

func (echoEngine) Agent() string { return "echo" }

func (e echoEngine) Search(ctx context.Context, task *domain.Task) (int, error) {
	if e.code > 0 {
		_ = task.Owner.RespondMarkdown(ctx, "found "+task.Keywords, task.Request)
	}
	return e.code, nil
}

type fixture struct {
	srv    *httpserver.Server
	outbox *httpserver.Outbox
	search *usecase.SearchClient
	mon    *monitor.Monitor
	router http.Handler
}

func newFixture(t *testing.T, engines ...domain.Engine) *fixture {
	t.Helper()
	outbox := httpserver.NewOutbox(time.Minute, nil)
	mon := monitor.New(monitor.Options{})
	search := usecase.NewSearchClient(usecase.SearchClientConfig{
		Service:   "SearchBox",
		Engines:   engines,
		Monitor:   mon,
		Responder: outbox,
	})
	pool := usecase.NewSessionPool(stub.Factory)
	chat := usecase.NewChatClient(pool, usecase.ChatClientConfig{
		BaseURL: "http://stub",
		Idle:    poller.NewAdaptivePoller(5*time.Millisecond, 20*time.Millisecond),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = chat.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		search.Wait()
	})

	srv := httpserver.NewServer(config.Config{ChatWaitTimeout: 2 * time.Second}, search, chat, outbox, mon, nil)
	r := chi.NewRouter()
	r.Post("/v1/search", srv.SearchHandler())
	r.Post("/v1/search/{conversation}/cancel", srv.CancelHandler())
	r.Get("/v1/responses/{id}", srv.ResponsesHandler())
	r.Post("/v1/chat", srv.ChatHandler())
	r.Get("/v1/history", srv.HistoryHandler())
	r.Get("/v1/monitor", srv.MonitorHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	return &fixture{srv: srv, outbox: outbox, search: search, mon: mon, router: r}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rw := httptest.NewRecorder()
	f.router.ServeHTTP(rw, req)
	return rw
}

func decode(t *testing.T, rw *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &out))
	return out
}

func TestSearchHandler_RepliesThroughOutbox(t *testing.T) {
	f := newFixture(t, echoEngine{code: 200})

	rw := f.do(http.MethodPost, "/v1/search", `{"conversation":"c1","sender":"u1","sender_name":"Alice","text":"golang"}`)
	require.Equal(t, http.StatusAccepted, rw.Code)
	body := decode(t, rw)
	id := body["id"].(string)
	assert.NotEmpty(t, body["task_id"])
	f.search.Wait()

	rw = f.do(http.MethodGet, "/v1/responses/"+id, "")
	require.Equal(t, http.StatusOK, rw.Code)
	var got struct {
		Responses []httpserver.Reply `json:"responses"`
	}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Len(t, got.Responses, 1)
	assert.Equal(t, "found golang", got.Responses[0].Text)

	assert.Equal(t, "Alice", f.outbox.GetName(context.Background(), "u1"))
}

func TestSearchHandler_Validation(t *testing.T) {
	f := newFixture(t, echoEngine{code: 200})

	rw := f.do(http.MethodPost, "/v1/search", `{"conversation":"c1","text":"x"}`)
	require.Equal(t, http.StatusBadRequest, rw.Code)
	var e struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &e))
	assert.Equal(t, "INVALID_ARGUMENT", e.Error.Code)
	assert.Equal(t, "required", e.Error.Details["sender"])

	rw = f.do(http.MethodPost, "/v1/search", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	rw = f.do(http.MethodPost, "/v1/search", `{"conversation":"c1","sender":"u1","text":" \n\t "}`)
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestSearchHandler_NormalizesText(t *testing.T) {
	f := newFixture(t, echoEngine{code: 200})
	f.do(http.MethodPost, "/v1/search", `{"conversation":"c1","sender":"u1","text":"  go   generics\n"}`)
	f.search.Wait()
	entries := f.search.History().Commands()
	require.Len(t, entries, 1)
	assert.Equal(t, "go generics", entries[0].Cmd)
}

func TestSearchHandler_NoResultSuggestsHistory(t *testing.T) {
	f := newFixture(t, echoEngine{code: domain.CodeNotFound})

	f.do(http.MethodPost, "/v1/search", `{"conversation":"c1","sender":"u1","text":"rust"}`)
	f.search.Wait()
	rw := f.do(http.MethodPost, "/v1/search", `{"conversation":"c1","sender":"u1","text":"zig"}`)
	id := decode(t, rw)["id"].(string)
	f.search.Wait()

	replies, ok := f.outbox.Replies(id)
	require.True(t, ok)
	require.Len(t, replies, 1)
	assert.True(t, strings.HasPrefix(replies[0].Text, `No contents for **"zig"**`))
	assert.Contains(t, replies[0].Text, "- **rust**")

	rw = f.do(http.MethodGet, "/v1/monitor", "")
	require.Equal(t, http.StatusOK, rw.Code)
	var mon struct {
		Barrels []monitor.Barrel `json:"barrels"`
	}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &mon))
	require.Len(t, mon.Barrels, 1)
	assert.Equal(t, 2, mon.Barrels[0].Crash)
}

func TestSearchHandler_SystemCommandHasNoTask(t *testing.T) {
	f := newFixture(t, echoEngine{code: 200})
	rw := f.do(http.MethodPost, "/v1/search", `{"conversation":"c1","sender":"u1","text":"cancel"}`)
	require.Equal(t, http.StatusAccepted, rw.Code)
	_, hasTask := decode(t, rw)["task_id"]
	assert.False(t, hasTask)

	rw = f.do(http.MethodPost, "/v1/search/c1/cancel", "")
	assert.Equal(t, http.StatusNoContent, rw.Code)
}

func TestResponsesHandler_Unknown(t *testing.T) {
	f := newFixture(t)
	rw := f.do(http.MethodGet, "/v1/responses/nope", "")
	assert.Equal(t, http.StatusNotFound, rw.Code)
}

func TestHistoryHandler(t *testing.T) {
	f := newFixture(t, echoEngine{code: 200})
	f.do(http.MethodPost, "/v1/search", `{"conversation":"c1","sender":"u1","group":"g1","text":"one"}`)
	f.do(http.MethodPost, "/v1/search", `{"conversation":"c1","sender":"u2","text":"two"}`)
	f.search.Wait()

	rw := f.do(http.MethodGet, "/v1/history", "")
	require.Equal(t, http.StatusOK, rw.Code)
	var got struct {
		Entries []domain.HistoryEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "one", got.Entries[0].Cmd)
	assert.Equal(t, "g1", got.Entries[0].Group)
	assert.Equal(t, "u2", got.Entries[1].Sender)
}

func TestChatHandler_WaitsForAnswer(t *testing.T) {
	f := newFixture(t)
	rw := f.do(http.MethodPost, "/v1/chat", `{"user":"u1","question":"hello there"}`)
	require.Equal(t, http.StatusOK, rw.Code)
	body := decode(t, rw)
	assert.Equal(t, "#1 you said: hello there", body["answer"])
	assert.Equal(t, "u1", body["user"])

	// same user, same session
	rw = f.do(http.MethodPost, "/v1/chat", `{"user":"u1","question":"again"}`)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "#2 you said: again", decode(t, rw)["answer"])
}

func TestChatHandler_Validation(t *testing.T) {
	f := newFixture(t)
	rw := f.do(http.MethodPost, "/v1/chat", `{"user":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestChatHandler_TimesOut(t *testing.T) {
	outbox := httpserver.NewOutbox(time.Minute, nil)
	// no worker running, the answer never arrives
	chat := usecase.NewChatClient(usecase.NewSessionPool(stub.Factory), usecase.ChatClientConfig{})
	srv := httpserver.NewServer(config.Config{ChatWaitTimeout: 20 * time.Millisecond}, nil, chat, outbox, nil, nil)

	rw := httptest.NewRecorder()
	srv.ChatHandler()(rw, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"user":"u","question":"q"}`)))
	assert.Equal(t, http.StatusGatewayTimeout, rw.Code)
	assert.Equal(t, 1, chat.Queue().Len())
}

func TestReadyzHandler(t *testing.T) {
	t.Run("all ok", func(t *testing.T) {
		f := newFixture(t, echoEngine{code: 200})
		f.srv.RedisCheck = func(context.Context) error { return nil }
		rw := f.do(http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusOK, rw.Code)
	})
	t.Run("redis down", func(t *testing.T) {
		f := newFixture(t, echoEngine{code: 200})
		f.srv.RedisCheck = func(context.Context) error { return errors.New("dial tcp: refused") }
		rw := f.do(http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusServiceUnavailable, rw.Code)
		assert.Contains(t, rw.Body.String(), "refused")
	})
	t.Run("no engines", func(t *testing.T) {
		f := newFixture(t)
		rw := f.do(http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusServiceUnavailable, rw.Code)
	})
}

func TestSearchHandler_NoSearchClient(t *testing.T) {
	srv := httpserver.NewServer(config.Config{}, nil, nil, httpserver.NewOutbox(0, nil), nil, nil)
	rw := httptest.NewRecorder()
	srv.SearchHandler()(rw, httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rw.Code)
}

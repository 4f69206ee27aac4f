package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
)

func newSearchFixture(t *testing.T, engines ...domain.Engine) (*SearchClient, *fakeResponder, *fakeMonitor, *fakeClock) {
	t.Helper()
	responder := &fakeResponder{names: map[string]string{"u-1": "Alice", "g-1": "Gophers"}}
	mon := &fakeMonitor{}
	clock := newFakeClock()
	client := NewSearchClient(SearchClientConfig{
		Service:   "SearchBox",
		Engines:   engines,
		Monitor:   mon,
		History:   NewHistory(domain.HistoryCapacity),
		Responder: responder,
		Clock:     clock,
	})
	return client, responder, mon, clock
}

func query(text string) domain.Request {
	return domain.Request{ID: "req-" + text, Sender: "u-1", Text: text, Time: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)}
}

func TestSearchBox_HandleQueryDispatchesInBackground(t *testing.T) {
	eng := &fakeEngine{agent: "A", code: 200}
	client, responder, mon, _ := newSearchFixture(t, eng)
	box := client.Box("conv-1")

	task := box.HandleQuery(context.Background(), query("  golang  "))
	require.NotNil(t, task)
	client.Wait()

	assert.Equal(t, "golang", task.Keywords)
	assert.Same(t, responder, task.Owner)
	assert.Equal(t, 1, eng.Calls())
	assert.Equal(t, 1, mon.count("success"))
	assert.Nil(t, box.CurrentTask())
	require.Len(t, client.History().Commands(), 1)
	assert.Equal(t, "golang", client.History().Commands()[0].Cmd)
}

func TestSearchBox_BlankQueryIgnored(t *testing.T) {
	client, _, _, _ := newSearchFixture(t, &fakeEngine{agent: "A", code: 200})
	assert.Nil(t, client.Box("c").HandleQuery(context.Background(), query("   ")))
	assert.Zero(t, client.History().Len())
}

func TestSearchBox_NewQueryCancelsPrevious(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	slow := &fakeEngine{agent: "slow", code: -1, onSearch: func(*domain.Task) {
		started <- struct{}{}
		<-release
	}}
	next := &fakeEngine{agent: "next", code: 200}
	client, _, mon, _ := newSearchFixture(t, slow, next)
	box := client.Box("conv")

	first := box.HandleQuery(context.Background(), query("first"))
	<-started
	second := box.HandleQuery(context.Background(), query("second"))
	<-started
	close(release)
	client.Wait()

	assert.True(t, first.IsCancelled())
	assert.False(t, second.IsCancelled())
	// the cancelled dispatch never reached the second engine
	assert.Equal(t, 1, next.Calls())
	assert.Zero(t, mon.count("crash"))
}

func TestSearchBox_SystemCommands(t *testing.T) {
	eng := &fakeEngine{agent: "A", code: 200}
	client, responder, _, _ := newSearchFixture(t, eng)
	box := client.Box("conv")

	for _, cmd := range []string{"Cancel", "STOP"} {
		assert.Nil(t, box.HandleQuery(context.Background(), query(cmd)))
	}
	req := query("show history")
	req.Group = "g-1"
	assert.Nil(t, box.HandleQuery(context.Background(), req))
	client.Wait()

	assert.Zero(t, eng.Calls())
	assert.Equal(t, 3, client.History().Len())
	replies := responder.Replies()
	require.Len(t, replies, 1)
	text := replies[0].text
	assert.True(t, strings.HasPrefix(text, "Search history:\n| From | Keyword | Time |\n|------|---------|------|\n"))
	assert.Contains(t, text, `| **"Alice"** | Cancel | 2024-05-06 07:08:09 |`)
	assert.Contains(t, text, `| **"Alice"** (Gophers) | show history | 2024-05-06 07:08:09 |`)
}

func TestSearchBox_CancelCommandStopsRunningTask(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	eng := &fakeEngine{agent: "A", code: -1, onSearch: func(*domain.Task) {
		close(started)
		<-release
	}}
	other := &fakeEngine{agent: "B", code: 200}
	client, responder, _, _ := newSearchFixture(t, eng, other)
	box := client.Box("conv")

	task := box.HandleQuery(context.Background(), query("movies"))
	<-started
	box.HandleQuery(context.Background(), query("cancel"))
	close(release)
	client.Wait()

	assert.True(t, task.IsCancelled())
	assert.Zero(t, other.Calls())
	assert.Empty(t, responder.Replies())
}

func TestSearchBox_NoResultOffersHistorySuggestions(t *testing.T) {
	client, responder, mon, _ := newSearchFixture(t,
		&fakeEngine{agent: "A", code: -1},
		&fakeEngine{agent: "B", code: domain.CodeNotFound},
	)
	box := client.Box("conv")
	client.History().AddCommand("rust", time.Now(), "u-2", "")
	client.History().AddCommand("zig", time.Now(), "u-2", "")

	box.HandleQuery(context.Background(), query("cobol"))
	client.Wait()

	replies := responder.Replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "No contents for **\"cobol\"**, you can try the following keywords:\n\n----\n- **zig**\n- **rust**\n", replies[0].text)
	assert.Equal(t, "req-cobol", replies[0].req.ID)
	assert.Equal(t, 1, mon.count("crash"))
}

func TestSearchClient_BoxesHaveIndependentEngineOrder(t *testing.T) {
	a := &fakeEngine{agent: "A", code: -1}
	b := &fakeEngine{agent: "B", code: 200}
	client, _, _, _ := newSearchFixture(t, a, b)

	box1 := client.Box("one")
	box2 := client.Box("two")
	box1.HandleQuery(context.Background(), query("x"))
	client.Wait()

	assert.Same(t, box1, client.Box("one"))
	assert.Equal(t, 2, client.EngineCount())
	assert.Equal(t, []string{"B", "A"}, agents(box1.dispatcher))
	assert.Equal(t, []string{"A", "B"}, agents(box2.dispatcher))
}

func TestSearchClient_PurgeIdleBoxes(t *testing.T) {
	client, _, _, clock := newSearchFixture(t, &fakeEngine{agent: "A", code: 200})
	client.Box("stale")
	clock.Advance(domain.SessionExpires - time.Minute)
	client.Box("fresh")
	clock.Advance(2 * time.Minute)

	assert.Equal(t, 1, client.Purge())
	assert.Equal(t, 1, client.Len())
	// rate limited
	clock.Advance(30 * time.Second)
	assert.Zero(t, client.Purge())
	clock.Advance(domain.SessionExpires)
	assert.Equal(t, 1, client.Purge())
	assert.Zero(t, client.Len())
}

func TestRenderNoResult_NoSuggestions(t *testing.T) {
	assert.Equal(t, "No contents for **\"q\"**, you can try the following keywords:\n\n----\n", renderNoResult("q", nil))
}

func TestRenderHistory_EscapesCells(t *testing.T) {
	when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	text := renderHistory(context.Background(), []domain.HistoryEntry{{Sender: "id-9", When: when, Cmd: "a|b\nc"}}, nil)
	assert.Contains(t, text, `| **"id-9"** | a\|b c | 2024-01-02 03:04:05 |`)
}

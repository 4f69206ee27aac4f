package httpserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

func TestOutbox_StoresRepliesWithOptions(t *testing.T) {
	clk := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	o := NewOutbox(time.Minute, clk)
	req := domain.Request{ID: "r1"}

	require.NoError(t, o.RespondMarkdown(context.Background(), "first", req))
	require.NoError(t, o.RespondMarkdown(context.Background(), "second", req, domain.Muted(), domain.WithExtra(map[string]any{"k": "v"})))

	replies, ok := o.Replies("r1")
	require.True(t, ok)
	require.Len(t, replies, 2)
	assert.Equal(t, "first", replies[0].Text)
	assert.False(t, replies[0].Muted)
	assert.True(t, replies[1].Muted)
	assert.Equal(t, "v", replies[1].Extra["k"])
}

func TestOutbox_RejectsMissingRequestID(t *testing.T) {
	o := NewOutbox(time.Minute, nil)
	assert.ErrorIs(t, o.RespondMarkdown(context.Background(), "x", domain.Request{}), domain.ErrInvalidArgument)
}

func TestOutbox_OpenThenPoll(t *testing.T) {
	o := NewOutbox(time.Minute, nil)
	o.Open("r1")
	replies, ok := o.Replies("r1")
	assert.True(t, ok)
	assert.Empty(t, replies)

	_, ok = o.Replies("unknown")
	assert.False(t, ok)
}

func TestOutbox_ExpiryAndPurge(t *testing.T) {
	clk := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	o := NewOutbox(time.Minute, clk)
	require.NoError(t, o.RespondMarkdown(context.Background(), "old", domain.Request{ID: "old"}))

	clk.now = clk.now.Add(45 * time.Second)
	require.NoError(t, o.RespondMarkdown(context.Background(), "new", domain.Request{ID: "new"}))

	clk.now = clk.now.Add(30 * time.Second)
	_, ok := o.Replies("old")
	assert.False(t, ok)
	_, ok = o.Replies("new")
	assert.True(t, ok)

	assert.Equal(t, 1, o.Purge())
	assert.Equal(t, 1, o.Len())
}

func TestOutbox_Names(t *testing.T) {
	o := NewOutbox(0, nil)
	o.SetName("u1", " Alice ")
	o.SetName("u2", "")
	o.SetName("", "nobody")
	assert.Equal(t, "Alice", o.GetName(context.Background(), "u1"))
	assert.Equal(t, "", o.GetName(context.Background(), "u2"))
}

// Package stub provides a deterministic chat backend for local runs without
// provider credentials.
package stub

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
)

// Client echoes questions back. It remembers how many questions it answered so
// replies differ across a conversation.
type Client struct {
	mu    sync.Mutex
	turns int
	delay time.Duration
}

// New returns a stub backend with a short simulated latency.
func New() *Client { return &Client{delay: 50 * time.Millisecond} }

// Factory builds a fresh stub client per session.
func Factory(domain.SessionParams) (domain.Backend, error) { return New(), nil }

// Ask answers with the trimmed question. A blank question gets an empty answer.
func (c *Client) Ask(ctx domain.Context, question string) (string, error) {
	if c.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.delay):
		}
	}
	q := strings.TrimSpace(question)
	if q == "" {
		return "", nil
	}
	c.mu.Lock()
	c.turns++
	n := c.turns
	c.mu.Unlock()
	return fmt.Sprintf("#%d you said: %s", n, q), nil
}

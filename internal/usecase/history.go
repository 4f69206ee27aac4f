package usecase

import (
	"strings"
	"sync"
	"time"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/observability"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
)

// History is a bounded, insertion-ordered log of issued commands.
// The oldest entries are evicted first once capacity is reached.
type History struct {
	mu       sync.Mutex
	entries  []domain.HistoryEntry
	capacity int
}

// NewHistory builds a history holding at most capacity entries.
// A non-positive capacity falls back to domain.HistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = domain.HistoryCapacity
	}
	return &History{
		entries:  make([]domain.HistoryEntry, 0, capacity),
		capacity: capacity,
	}
}

// AddCommand appends a command, evicting the oldest entries on overflow.
func (h *History) AddCommand(cmd string, when time.Time, sender, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, domain.HistoryEntry{
		Sender: sender,
		Group:  group,
		When:   when,
		Cmd:    cmd,
	})
	if over := len(h.entries) - h.capacity; over > 0 {
		// shift down instead of reslicing so the backing array does not grow forever
		n := copy(h.entries, h.entries[over:])
		clear(h.entries[n:])
		h.entries = h.entries[:n]
	}
	observability.SetHistoryEntries(len(h.entries))
}

// Commands returns a snapshot copy, oldest first.
func (h *History) Commands() []domain.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]domain.HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Keywords returns up to limit distinct commands, most recent first.
// Matching is case-insensitive; the most recent spelling wins.
func (h *History) Keywords(limit int) []string {
	if limit <= 0 {
		return nil
	}
	entries := h.Commands()
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, min(limit, len(entries)))
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		cmd := entries[i].Cmd
		key := strings.ToLower(cmd)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cmd)
	}
	return out
}

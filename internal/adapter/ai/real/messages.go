package real

import "sync"

// Message is one OpenAI-compatible chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenCounter measures a message in model tokens.
type TokenCounter interface {
	CountMessage(role, content, model string) int
}

// MessageQueue is the conversation memory of one session. Oldest messages are
// dropped while the queue is over its token budget, but never below minCount
// messages.
type MessageQueue struct {
	mu        sync.Mutex
	messages  []Message
	sizes     []int
	total     int
	maxTokens int
	minCount  int
	system    string
	model     string
	counter   TokenCounter
}

// NewMessageQueue builds an empty queue. system, when non-empty, is sent in
// front of every request without counting against the budget.
func NewMessageQueue(counter TokenCounter, model, system string, maxTokens, minCount int) *MessageQueue {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	if minCount <= 0 {
		minCount = 16
	}
	return &MessageQueue{
		maxTokens: maxTokens,
		minCount:  minCount,
		system:    system,
		model:     model,
		counter:   counter,
	}
}

// Push appends msg unless it repeats the last message. It reports whether
// the message was added.
func (q *MessageQueue) Push(msg Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n := len(q.messages); n > 0 && q.messages[n-1] == msg {
		return false
	}
	size := q.counter.CountMessage(msg.Role, msg.Content, q.model)
	q.messages = append(q.messages, msg)
	q.sizes = append(q.sizes, size)
	q.total += size

	for q.total > q.maxTokens && len(q.messages) >= q.minCount {
		q.total -= q.sizes[0]
		q.messages = q.messages[1:]
		q.sizes = q.sizes[1:]
	}
	return true
}

// Messages returns a copy of the queued messages, oldest first.
func (q *MessageQueue) Messages() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Message, len(q.messages))
	copy(out, q.messages)
	return out
}

// Tokens returns the token count of the queued messages.
func (q *MessageQueue) Tokens() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total
}

// Build pushes prompt as a user message and returns the request messages with
// the system setting in front.
func (q *MessageQueue) Build(prompt string) []Message {
	q.Push(Message{Role: "user", Content: prompt})
	msgs := q.Messages()
	if q.system == "" {
		return msgs
	}
	return append([]Message{{Role: "system", Content: q.system}}, msgs...)
}

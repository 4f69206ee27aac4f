// Package tokencount counts tokens for chat-completion messages.
//
// It uses tiktoken-go, a Go port of OpenAI's tiktoken library, so that the
// per-session conversation memory can be trimmed against a token budget
// instead of a byte size.
package tokencount

import (
	"log/slog"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Per-message framing used by OpenAI-compatible chat APIs: every message is
// wrapped as <|start|>{role}<|message|>{content}<|end|>.
const (
	tokensPerMessage = 3
	tokensPerRole    = 1
)

// Counter provides thread-safe token counting for chat models.
type Counter struct {
	encodingCache map[string]*tiktoken.Tiktoken
	mu            sync.RWMutex
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter {
	return &Counter{
		encodingCache: make(map[string]*tiktoken.Tiktoken),
	}
}

// DefaultCounter is a global token counter instance.
var DefaultCounter = NewCounter()

// getEncodingForModel returns the tiktoken encoding for a model, cached per
// normalized model name.
func (c *Counter) getEncodingForModel(model string) (*tiktoken.Tiktoken, error) {
	normalizedModel := normalizeModelName(model)

	c.mu.RLock()
	if enc, ok := c.encodingCache[normalizedModel]; ok {
		c.mu.RUnlock()
		return enc, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encodingCache[normalizedModel]; ok {
		return enc, nil
	}

	enc, err := tiktoken.EncodingForModel(normalizedModel)
	if err != nil {
		slog.Debug("falling back to cl100k_base encoding",
			slog.String("model", model),
			slog.String("normalized", normalizedModel),
			slog.Any("error", err))
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}

	c.encodingCache[normalizedModel] = enc
	return enc, nil
}

// normalizeModelName converts model IDs to tiktoken-compatible names.
func normalizeModelName(model string) string {
	model = strings.ToLower(model)

	// gateway model IDs often carry a provider prefix, e.g. "openai/gpt-4o"
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	model = strings.TrimSuffix(model, ":free")

	if strings.Contains(model, "gpt-3.5") {
		return "gpt-3.5-turbo"
	}
	// everything else is close enough to cl100k_base
	return "gpt-4"
}

// CountTokens counts the number of tokens in a text string for a given model.
func (c *Counter) CountTokens(text, model string) (int, error) {
	enc, err := c.getEncodingForModel(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountMessage counts one chat message including its framing overhead.
// When no encoding is available it falls back to a ~4 chars per token
// estimate so that trimming still works offline.
func (c *Counter) CountMessage(role, content, model string) int {
	enc, err := c.getEncodingForModel(model)
	if err != nil {
		slog.Warn("failed to load token encoding, using estimate",
			slog.String("model", model),
			slog.Any("error", err))
		return tokensPerMessage + tokensPerRole + (len(role)+len(content)+3)/4
	}
	return tokensPerMessage + tokensPerRole +
		len(enc.Encode(role, nil, nil)) +
		len(enc.Encode(content, nil, nil))
}

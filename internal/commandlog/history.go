package commandlog

import (
	"sync"

	"speechcmd/pkg/command"
)

// DefaultHistorySize bounds the in-memory history.
const DefaultHistorySize = 20

// History is a bounded, most-recent-first list of recognised tokens.
type History struct {
	mu     sync.Mutex
	size   int
	tokens []command.Token
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size}
}

// Seed replaces the history with the tail of tokens, which are in log order.
func (h *History) Seed(tokens []command.Token) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := max(0, len(tokens)-h.size)
	h.tokens = make([]command.Token, 0, h.size)
	for i := len(tokens) - 1; i >= start; i-- {
		h.tokens = append(h.tokens, tokens[i])
	}
}

// Push prepends token, dropping the oldest entry when full.
func (h *History) Push(token command.Token) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.tokens = append([]command.Token{token}, h.tokens...)
	if len(h.tokens) > h.size {
		h.tokens = h.tokens[:h.size]
	}
}

// Tokens returns a copy, most recent first.
func (h *History) Tokens() []command.Token {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]command.Token{}, h.tokens...)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tokens)
}

func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tokens = nil
}

package chat

import (
	"unicode/utf8"

	"github.com/verdantlabs/ragchat/llm"
)

// DefaultMemoryTokens bounds a session's history when no bound is given.
const DefaultMemoryTokens = 4000

// Memory is an ordered, token-bounded message history. The system message,
// if present, is pinned: it is always first and never evicted. Eviction runs
// after every append and removes the oldest non-pinned messages until the
// estimated token total fits the bound.
//
// Memory is not safe for concurrent use; the owning Session serializes
// access.
type Memory struct {
	maxTokens int
	pinned    bool
	messages  []llm.Message
}

// NewMemory creates an empty memory bounded to maxTokens estimated tokens.
// Non-positive bounds fall back to DefaultMemoryTokens.
func NewMemory(maxTokens int) *Memory {
	if maxTokens <= 0 {
		maxTokens = DefaultMemoryTokens
	}
	return &Memory{maxTokens: maxTokens}
}

// Pin installs the system message as the permanent first entry.
// An empty text is ignored so an empty persona seeds nothing.
func (m *Memory) Pin(msg llm.Message) {
	if msg.Text == "" {
		return
	}
	if m.pinned {
		m.messages[0] = msg
		return
	}
	m.messages = append([]llm.Message{msg}, m.messages...)
	m.pinned = true
}

// Append adds a message and evicts the oldest non-pinned messages while the
// estimated token total exceeds the bound.
func (m *Memory) Append(msg llm.Message) {
	m.messages = append(m.messages, msg)
	m.evict()
}

// Messages returns a copy of the history in conversation order.
func (m *Memory) Messages() []llm.Message {
	out := make([]llm.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Len returns the number of stored messages, pinned included.
func (m *Memory) Len() int { return len(m.messages) }

// Tokens returns the current estimated token total.
func (m *Memory) Tokens() int {
	total := 0
	for _, msg := range m.messages {
		total += estimateTokens(msg.Text)
	}
	return total
}

func (m *Memory) evict() {
	floor := 0
	if m.pinned {
		floor = 1
	}
	for m.Tokens() > m.maxTokens && len(m.messages) > floor {
		m.messages = append(m.messages[:floor], m.messages[floor+1:]...)
	}
}

// estimateTokens provides a rough token count: rune count divided by 2, a
// conservative estimate that covers both English (~4 chars/token) and CJK
// (~1.5 chars/token) text.
func estimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 2
}

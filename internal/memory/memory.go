package memory

import (
	"fmt"
	"strings"
	"sync"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role
	Content string
	Seq     int
}

// Memory is a bounded conversation log for one session. It keeps at most
// windowSize user/assistant pairs, dropping the oldest turns first. All
// methods are safe for concurrent use.
type Memory struct {
	mu         sync.Mutex
	turns      []Turn
	windowSize int
	nextSeq    int
}

const DefaultWindowSize = 10

// Single words match whole tokens, phrases match as substrings. This is a
// lexical hint for follow-up detection, not coreference resolution.
var (
	followUpWords   = []string{"it", "that", "this", "they", "them", "those", "why", "also"}
	followUpPhrases = []string{"the same", "what about", "how about", "and the"}
)

func New(windowSize int) *Memory {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Memory{windowSize: windowSize}
}

func (m *Memory) AddMessage(role Role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, Turn{Role: role, Content: content, Seq: m.nextSeq})
	m.nextSeq++

	if max := 2 * m.windowSize; len(m.turns) > max {
		m.turns = append([]Turn(nil), m.turns[len(m.turns)-max:]...)
	}
}

func (m *Memory) Messages() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// ContextSummary renders retained turns as "Role: content" lines, truncating
// each message to 200 characters.
func (m *Memory) ContextSummary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.turns) == 0 {
		return ""
	}

	parts := []string{"Recent conversation:"}
	for _, turn := range m.turns {
		label := "User"
		if turn.Role == RoleAssistant {
			label = "Assistant"
		}

		content := truncateRunes(turn.Content, 200)
		parts = append(parts, fmt.Sprintf("  %s: %s", label, content))
	}

	return strings.Join(parts, "\n")
}

// EnrichQuery appends the most recent different user question to short
// follow-up queries so the downstream agent sees the topic being referenced.
func (m *Memory) EnrichQuery(query string) string {
	if !looksLikeFollowUp(query) {
		return query
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.turns) - 1; i >= 0; i-- {
		turn := m.turns[i]
		if turn.Role == RoleUser && turn.Content != query {
			return fmt.Sprintf("%s (in context of: %s)", query, turn.Content)
		}
	}

	return query
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = nil
}

// truncateRunes cuts on a rune boundary so multi-byte punctuation in
// filing text never gets split.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func looksLikeFollowUp(query string) bool {
	lower := strings.ToLower(query)

	words := strings.Fields(lower)
	if len(words) >= 10 {
		return false
	}

	for _, phrase := range followUpPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	for _, word := range words {
		trimmed := strings.Trim(word, ".,!?;:")
		for _, indicator := range followUpWords {
			if trimmed == indicator {
				return true
			}
		}
	}

	return false
}

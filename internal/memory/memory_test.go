package memory

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestAddMessage_WindowTrim(t *testing.T) {
	m := New(3)

	for i := 0; i < 4; i++ {
		m.AddMessage(RoleUser, fmt.Sprintf("question %d", i))
		m.AddMessage(RoleAssistant, fmt.Sprintf("answer %d", i))
	}

	turns := m.Messages()
	if len(turns) != 6 {
		t.Fatalf("expected 6 retained turns, got %d", len(turns))
	}
	// The oldest pair is gone.
	for _, turn := range turns {
		if turn.Content == "question 0" || turn.Content == "answer 0" {
			t.Errorf("oldest pair should have been evicted, found %q", turn.Content)
		}
	}
	if turns[0].Content != "question 1" {
		t.Errorf("first retained turn: got %q, want %q", turns[0].Content, "question 1")
	}
}

func TestContextSummary(t *testing.T) {
	m := New(5)

	if got := m.ContextSummary(); got != "" {
		t.Errorf("empty memory summary: got %q, want empty", got)
	}

	m.AddMessage(RoleUser, "What was the revenue?")
	m.AddMessage(RoleAssistant, strings.Repeat("a", 250))

	summary := m.ContextSummary()
	if !strings.Contains(summary, "User: What was the revenue?") {
		t.Errorf("summary missing user line: %q", summary)
	}
	if !strings.Contains(summary, strings.Repeat("a", 200)+"...") {
		t.Errorf("long message should be truncated at 200 chars with ellipsis")
	}
	if strings.Contains(summary, strings.Repeat("a", 201)) {
		t.Errorf("message not truncated")
	}
}

func TestContextSummary_TruncatesOnRuneBoundary(t *testing.T) {
	m := New(5)
	m.AddMessage(RoleAssistant, strings.Repeat("—", 250))

	summary := m.ContextSummary()
	if !utf8.ValidString(summary) {
		t.Fatal("summary is not valid UTF-8")
	}
	if !strings.Contains(summary, strings.Repeat("—", 200)+"...") {
		t.Errorf("expected 200-rune truncation with ellipsis, got %q", summary)
	}
	if strings.Contains(summary, strings.Repeat("—", 201)) {
		t.Errorf("message not truncated at 200 runes")
	}
}

func TestEnrichQuery_FollowUp(t *testing.T) {
	m := New(5)
	m.AddMessage(RoleUser, "What was Acme's revenue?")
	m.AddMessage(RoleAssistant, "Revenue was $100 million.")

	got := m.EnrichQuery("why did it change?")
	want := "why did it change? (in context of: What was Acme's revenue?)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEnrichQuery_NoIndicator(t *testing.T) {
	m := New(5)
	m.AddMessage(RoleUser, "What was Acme's revenue?")

	q := "what was gross margin in 2024?"
	if got := m.EnrichQuery(q); got != q {
		t.Errorf("query without follow-up indicator should pass through, got %q", got)
	}
}

func TestEnrichQuery_LongQueryUnchanged(t *testing.T) {
	m := New(5)
	m.AddMessage(RoleUser, "What was Acme's revenue?")

	q := "why did the operating margin for the consolidated segment change so much this period overall?"
	if got := m.EnrichQuery(q); got != q {
		t.Errorf("ten-word query should pass through, got %q", got)
	}
}

func TestEnrichQuery_EmptyHistory(t *testing.T) {
	m := New(5)

	q := "why did it change?"
	if got := m.EnrichQuery(q); got != q {
		t.Errorf("no history to enrich from, got %q", got)
	}
}

func TestClear(t *testing.T) {
	m := New(5)
	m.AddMessage(RoleUser, "hello")
	m.Clear()

	if len(m.Messages()) != 0 {
		t.Error("clear should remove all turns")
	}
	if m.ContextSummary() != "" {
		t.Error("summary after clear should be empty")
	}
}

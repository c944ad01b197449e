package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/finsight/backend/internal/agents"
	"github.com/finsight/backend/internal/assess"
	"github.com/finsight/backend/internal/cache/semantic"
	"github.com/finsight/backend/internal/memory"
)

// orthoEmbedder assigns each distinct text its own basis vector, so no
// two different queries ever match semantically.
type orthoEmbedder struct {
	seen map[string]int
}

func (e *orthoEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if e.seen == nil {
		e.seen = make(map[string]int)
	}
	idx, ok := e.seen[text]
	if !ok {
		idx = len(e.seen)
		e.seen[text] = idx
	}
	vec := make([]float32, 64)
	vec[idx%64] = 1
	return vec, nil
}

type stubCollaborator struct {
	answer    *agents.Answer
	err       error
	calls     int
	lastQuery string
}

func (s *stubCollaborator) Answer(ctx context.Context, query string) (*agents.Answer, error) {
	s.calls++
	s.lastQuery = query
	if s.err != nil {
		return nil, s.err
	}
	return s.answer, nil
}

func newTestRouter(fact, summary *stubCollaborator) (*Router, *memory.Memory) {
	mem := memory.New(memory.DefaultWindowSize)
	cache := semantic.New(&orthoEmbedder{}, semantic.DefaultCapacity, semantic.DefaultThreshold)
	return New(cache, mem, assess.New(), fact, summary), mem
}

func TestRouteClarificationGate(t *testing.T) {
	fact := &stubCollaborator{}
	summary := &stubCollaborator{}
	r, mem := newTestRouter(fact, summary)

	resp := r.Route(context.Background(), "What was revenue last year?")

	if !resp.NeedsClarification {
		t.Fatal("expected clarification response")
	}
	if !strings.HasPrefix(resp.Answer, "🤔 **Clarification needed:**\n\n") {
		t.Errorf("unexpected clarification format: %q", resp.Answer)
	}
	if fact.calls != 0 || summary.calls != 0 {
		t.Error("no collaborator should run for a clarification")
	}

	// The clarification itself is recorded as an assistant turn.
	turns := mem.Messages()
	if len(turns) != 2 || turns[1].Role != memory.RoleAssistant {
		t.Errorf("expected user+assistant turns, got %d", len(turns))
	}
}

func TestRoutePreciseFactAndCacheHit(t *testing.T) {
	fact := &stubCollaborator{answer: &agents.Answer{
		Text:      "Revenue was $5 billion in fiscal 2024.",
		Passages:  []string{"Total revenue grew year over year."},
		TokenInfo: "200 tokens",
	}}
	summary := &stubCollaborator{}
	r, _ := newTestRouter(fact, summary)

	query := "What were total liabilities in 2024?"
	resp := r.Route(context.Background(), query)

	if resp.Failed || resp.NeedsClarification || resp.CacheHit {
		t.Fatalf("unexpected response flags: %+v", resp)
	}
	if resp.Intent != IntentPreciseFact {
		t.Errorf("expected precise_fact intent, got %s", resp.Intent)
	}
	if summary.calls != 0 {
		t.Error("summary agent should not run for a fact query")
	}
	if resp.Confidence != assess.ConfidenceHigh {
		t.Errorf("expected high confidence, got %s", resp.Confidence)
	}

	// Same question again comes from the cache without touching the agent.
	again := r.Route(context.Background(), query)
	if !again.CacheHit {
		t.Fatal("expected cache hit on repeat query")
	}
	if again.Similarity != 1.0 {
		t.Errorf("expected exact-match similarity 1.0, got %f", again.Similarity)
	}
	if again.Answer != resp.Answer {
		t.Error("cached answer should match original")
	}
	if fact.calls != 1 {
		t.Errorf("expected 1 collaborator call, got %d", fact.calls)
	}
	if again.Confidence != assess.ConfidenceHigh {
		t.Errorf("cache hit should re-derive confidence, got %s", again.Confidence)
	}
}

func TestRouteSummaryIntent(t *testing.T) {
	fact := &stubCollaborator{}
	summary := &stubCollaborator{answer: &agents.Answer{
		Text:      "The company is in solid shape.",
		TokenInfo: "150 tokens",
	}}
	r, _ := newTestRouter(fact, summary)

	resp := r.Route(context.Background(), "Give me an overview of the company")

	if resp.Intent != IntentSummary {
		t.Fatalf("expected summary intent, got %s", resp.Intent)
	}
	if summary.calls != 1 || fact.calls != 0 {
		t.Errorf("expected summary agent only, got fact=%d summary=%d", fact.calls, summary.calls)
	}
	if len(resp.Passages) != 0 {
		t.Error("summary responses carry no passages")
	}
}

func TestRouteFollowUpEnrichment(t *testing.T) {
	fact := &stubCollaborator{answer: &agents.Answer{
		Text:     "Net income declined.",
		Passages: []string{"Net income decreased due to higher costs."},
	}}
	summary := &stubCollaborator{}
	r, _ := newTestRouter(fact, summary)

	r.Route(context.Background(), "What was Acme's net income in 2024?")
	r.Route(context.Background(), "why did it decline?")

	if fact.calls != 2 {
		t.Fatalf("expected 2 collaborator calls, got %d", fact.calls)
	}
	if !strings.Contains(fact.lastQuery, "why did it decline? (in context of: What was Acme's net income in 2024?)") {
		t.Errorf("expected enriched follow-up in prompt, got %q", fact.lastQuery)
	}
	if !strings.Contains(fact.lastQuery, "CONVERSATION CONTEXT:") {
		t.Errorf("expected conversation context header, got %q", fact.lastQuery)
	}
	if !strings.Contains(fact.lastQuery, "Use the conversation context to better understand the question.") {
		t.Errorf("expected context instruction, got %q", fact.lastQuery)
	}
}

func TestRouteComplexQueryConfidenceFooter(t *testing.T) {
	fact := &stubCollaborator{answer: &agents.Answer{
		Text:     "Costs rose by $300 million in 2024, compressing margins.",
		Passages: []string{"Operating expenses increased."},
	}}
	r, _ := newTestRouter(fact, &stubCollaborator{})

	resp := r.Route(context.Background(), "Why did operating costs rise in 2024?")

	want := "\n\n---\n*🟢 High confidence - Based on specific data from the filing*"
	if !strings.HasSuffix(resp.Answer, want) {
		t.Errorf("expected confidence footer on complex query, got %q", resp.Answer)
	}
}

func TestRouteAppendsFinancialAnalysis(t *testing.T) {
	fact := &stubCollaborator{answer: &agents.Answer{
		Text:     "Revenue reached a record level.",
		Passages: []string{"Revenue was $2.5 billion, up from $2.1 billion."},
	}}
	r, _ := newTestRouter(fact, &stubCollaborator{})

	resp := r.Route(context.Background(), "How much revenue did the company report in 2024?")

	if !strings.Contains(resp.Answer, "\n\n---\n**MCP Analysis:**\n") {
		t.Errorf("expected analysis block, got %q", resp.Answer)
	}
	if !strings.Contains(resp.Answer, "$2,500,000,000.00") {
		t.Errorf("expected extracted amount in analysis, got %q", resp.Answer)
	}
}

func TestRouteCollaboratorFailure(t *testing.T) {
	fact := &stubCollaborator{err: errors.New("model unavailable")}
	r, mem := newTestRouter(fact, &stubCollaborator{})

	query := "What was gross margin in 2024?"
	resp := r.Route(context.Background(), query)

	if !resp.Failed {
		t.Fatal("expected failed response")
	}
	if !strings.HasPrefix(resp.Answer, "Error processing query:") {
		t.Errorf("unexpected error answer: %q", resp.Answer)
	}

	// No assistant turn and no cache write for a failed exchange.
	for _, turn := range mem.Messages() {
		if turn.Role == memory.RoleAssistant {
			t.Error("failed exchange should not record an assistant turn")
		}
	}

	fact.err = nil
	fact.answer = &agents.Answer{Text: "Gross margin was 42%.", Passages: []string{"margin data"}}

	again := r.Route(context.Background(), query)
	if again.CacheHit {
		t.Error("failed exchange should not have been cached")
	}
	if fact.calls != 2 {
		t.Errorf("expected retry to reach the collaborator, got %d calls", fact.calls)
	}
}

func TestRouteStream(t *testing.T) {
	fact := &stubCollaborator{answer: &agents.Answer{
		Text:     "Cash on hand was $900 million.",
		Passages: []string{"Cash and equivalents totaled $900 million."},
	}}
	r, _ := newTestRouter(fact, &stubCollaborator{})

	var b strings.Builder
	var final Chunk

	for chunk := range r.RouteStream(context.Background(), "What was the cash position in 2024?") {
		if chunk.Final {
			final = chunk
			continue
		}
		b.WriteString(chunk.Text)
	}

	if !final.Final {
		t.Fatal("expected a final frame")
	}
	if final.Response == nil || len(final.Response.Passages) == 0 {
		t.Error("final frame should carry the response with passages")
	}
	if !strings.Contains(b.String(), "Cash on hand was $900 million.") {
		t.Errorf("streamed text should contain the answer, got %q", b.String())
	}
}

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		query string
		want  Intent
	}{
		{"What was the revenue in Q4 2024?", IntentPreciseFact},
		{"Summarize the risk factors", IntentSummary},
		{"Give me a high-level view of the business", IntentSummary},
		{"What is the big picture here?", IntentSummary},
		{"When was the 10-K filed?", IntentPreciseFact},
		{"How is the company doing overall?", IntentSummary},
	}

	for _, tt := range tests {
		if got := classifyIntent(tt.query); got != tt.want {
			t.Errorf("classifyIntent(%q) = %s, want %s", tt.query, got, tt.want)
		}
	}
}

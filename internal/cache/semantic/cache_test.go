package semantic

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// stubEmbedder returns canned vectors per text, or fails.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (s *stubEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors[text], nil
}

func TestGet_NormalizedExactMatch(t *testing.T) {
	c := New(nil, 10, 0.8)
	ctx := context.Background()

	c.Put(ctx, "revenue?", "Revenue was $5M.", []string{"p1"}, "tokens=10")

	result, ok := c.Get(ctx, "  Revenue?  ")
	if !ok {
		t.Fatal("expected exact hit after normalization")
	}
	if result.Similarity != 1.0 {
		t.Errorf("similarity: got %v, want 1.0", result.Similarity)
	}
	if result.Answer != "Revenue was $5M." {
		t.Errorf("answer: got %q", result.Answer)
	}
	if len(result.Passages) != 1 || result.Passages[0] != "p1" {
		t.Errorf("passages: got %v", result.Passages)
	}
}

func TestPut_CapacityEvictsOldest(t *testing.T) {
	c := New(nil, 3, 0.8)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		c.Put(ctx, fmt.Sprintf("query %d", i), fmt.Sprintf("answer %d", i), nil, "")
	}

	if got := c.Stats().Size; got != 3 {
		t.Fatalf("size after overflow: got %d, want 3", got)
	}
	if _, ok := c.Get(ctx, "query 0"); ok {
		t.Error("oldest entry should be evicted")
	}
	for i := 1; i < 4; i++ {
		if _, ok := c.Get(ctx, fmt.Sprintf("query %d", i)); !ok {
			t.Errorf("entry %d should remain", i)
		}
	}
}

func TestPut_OverwriteDoesNotEvict(t *testing.T) {
	c := New(nil, 2, 0.8)
	ctx := context.Background()

	c.Put(ctx, "a", "first", nil, "")
	c.Put(ctx, "b", "second", nil, "")
	c.Put(ctx, "A ", "updated", nil, "")

	if got := c.Stats().Size; got != 2 {
		t.Fatalf("size: got %d, want 2", got)
	}

	result, ok := c.Get(ctx, "a")
	if !ok || result.Answer != "updated" {
		t.Errorf("overwritten entry: ok=%v result=%+v", ok, result)
	}
	if _, ok := c.Get(ctx, "b"); !ok {
		t.Error("entry b should not have been evicted by an overwrite")
	}
}

func TestGet_SimilarityThresholdBoundary(t *testing.T) {
	// Integer components keep the arithmetic exact in float32:
	// cosine({1,0}, {4,3}) = 4/5 = 0.8 and cosine({1,0}, {3,4}) = 0.6.
	emb := &stubEmbedder{vectors: map[string][]float32{
		"stored query": {1, 0},
		"at threshold": {4, 3},
		"below":        {3, 4},
	}}
	c := New(emb, 10, 0.8)
	ctx := context.Background()

	c.Put(ctx, "stored query", "the answer", []string{"p"}, "")

	hit, ok := c.Get(ctx, "at threshold")
	if !ok {
		t.Fatal("similarity exactly at threshold should hit")
	}
	if diff := hit.Similarity - 0.8; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("similarity: got %v, want 0.8", hit.Similarity)
	}

	if _, ok := c.Get(ctx, "below"); ok {
		t.Error("similarity below threshold should miss")
	}
}

func TestGet_PicksHighestScoringEntry(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"close":  {0.9, 0.4358899},
		"closer": {0.99, 0.14106736},
		"lookup": {1, 0},
	}}
	c := New(emb, 10, 0.8)
	ctx := context.Background()

	c.Put(ctx, "close", "close answer", nil, "")
	c.Put(ctx, "closer", "closer answer", nil, "")

	hit, ok := c.Get(ctx, "lookup")
	if !ok {
		t.Fatal("expected semantic hit")
	}
	if hit.Answer != "closer answer" {
		t.Errorf("got %q, want the highest-similarity entry", hit.Answer)
	}
}

func TestEmbedderFailure_DegradesToExactMatch(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("embedding service down")}
	c := New(emb, 10, 0.8)
	ctx := context.Background()

	c.Put(ctx, "revenue", "answer", nil, "")

	// Exact lookup still works.
	if _, ok := c.Get(ctx, "REVENUE"); !ok {
		t.Error("exact match must survive embedder failure")
	}

	// Similarity lookup is skipped, not an error.
	if _, ok := c.Get(ctx, "total revenue"); ok {
		t.Error("semantic lookup should miss when the embedder fails")
	}
}

func TestClearAndStats(t *testing.T) {
	c := New(nil, 5, 0.75)
	ctx := context.Background()

	c.Put(ctx, "q1", "a1", nil, "")
	c.Put(ctx, "q2", "a2", nil, "")

	stats := c.Stats()
	if stats.Size != 2 || stats.Capacity != 5 || stats.Threshold != 0.75 {
		t.Errorf("stats: got %+v", stats)
	}

	c.Clear()
	if got := c.Stats().Size; got != 0 {
		t.Errorf("size after clear: got %d, want 0", got)
	}
}

func TestGet_ExactMatchSkipsEmbedding(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{}}
	c := New(emb, 10, 0.8)
	ctx := context.Background()

	c.Put(ctx, "q", "a", nil, "")
	callsAfterPut := emb.calls

	c.Get(ctx, "q")
	if emb.calls != callsAfterPut {
		t.Errorf("exact hit should not call the embedder (calls went %d -> %d)", callsAfterPut, emb.calls)
	}
}

package semantic

import (
	"context"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/finsight/backend/pkg/logger"
)

// Embedder produces a fixed-length embedding for a text. Failures degrade
// the cache to exact-match lookups; they never abort the calling operation.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Result is a cache hit. Similarity is 1.0 for exact key matches and the
// cosine score for semantic matches.
type Result struct {
	Answer     string
	Passages   []string
	TokenInfo  string
	Similarity float64
}

type Stats struct {
	Size      int
	Capacity  int
	Threshold float64
}

type entry struct {
	answer    string
	passages  []string
	tokenInfo string
	embedding []float32
}

// Cache maps normalized queries to previously produced answers, matching
// exactly or by embedding similarity above a threshold. When full it evicts
// the oldest-inserted entry; reads never promote. One mutex serializes
// Get/Put/Clear so eviction and insertion are a single critical section.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	order     []string
	embedder  Embedder
	capacity  int
	threshold float64
}

const (
	DefaultCapacity  = 50
	DefaultThreshold = 0.8
)

func New(embedder Embedder, capacity int, threshold float64) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	return &Cache{
		entries:   make(map[string]*entry),
		embedder:  embedder,
		capacity:  capacity,
		threshold: threshold,
	}
}

func normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func (c *Cache) Get(ctx context.Context, query string) (*Result, bool) {
	key := normalize(query)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		result := e.toResult(1.0)
		c.mu.Unlock()
		return result, true
	}
	c.mu.Unlock()

	queryEmb := c.embed(ctx, query)
	if queryEmb == nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var bestKey string
	bestSim := 0.0

	for cachedKey, e := range c.entries {
		if e.embedding == nil {
			continue
		}
		sim := cosine(queryEmb, e.embedding)
		if sim >= c.threshold && sim > bestSim {
			bestKey = cachedKey
			bestSim = sim
		}
	}

	if bestKey == "" {
		return nil, false
	}

	logger.Debug("Semantic cache hit",
		zap.String("query", query),
		zap.Float64("similarity", bestSim),
	)

	return c.entries[bestKey].toResult(bestSim), true
}

func (c *Cache) Put(ctx context.Context, query, answer string, passages []string, tokenInfo string) {
	key := normalize(query)

	emb := c.embed(ctx, query)

	stored := make([]string, len(passages))
	copy(stored, passages)

	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.entries[key]

	// Overwriting a key keeps its slot; only a genuinely new key can push
	// the cache over capacity.
	if !exists && len(c.entries) >= c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)

		logger.Debug("Semantic cache eviction", zap.String("evicted_key", oldest))
	}

	if !exists {
		c.order = append(c.order, key)
	}

	c.entries[key] = &entry{
		answer:    answer,
		passages:  stored,
		tokenInfo: tokenInfo,
		embedding: emb,
	}
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.order = nil
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Size:      len(c.entries),
		Capacity:  c.capacity,
		Threshold: c.threshold,
	}
}

// embed swallows embedder failures; a nil return means exact-match only.
func (c *Cache) embed(ctx context.Context, text string) []float32 {
	if c.embedder == nil {
		return nil
	}

	emb, err := c.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		logger.Warn("Embedding failed, cache degrades to exact match", zap.Error(err))
		return nil
	}
	if len(emb) == 0 {
		return nil
	}
	return emb
}

func (e *entry) toResult(similarity float64) *Result {
	passages := make([]string, len(e.passages))
	copy(passages, e.passages)

	return &Result{
		Answer:     e.answer,
		Passages:   passages,
		TokenInfo:  e.tokenInfo,
		Similarity: similarity,
	}
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

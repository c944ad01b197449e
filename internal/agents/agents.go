package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/finsight/backend/internal/llm"
	"github.com/finsight/backend/internal/retrieval/milvus"
	"github.com/finsight/backend/pkg/logger"
)

// Answer is what an agent produces: the text plus the passages it was
// grounded on. Summary answers carry no passages.
type Answer struct {
	Text      string
	Passages  []string
	TokenInfo string
}

type embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type chunkSearcher interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int, filters map[string]string) ([]milvus.SearchResult, error)
}

type analystLLM interface {
	AnswerFactQuery(ctx context.Context, query string, excerpts []string) (*llm.CompletionResponse, error)
	AnswerSummaryQuery(ctx context.Context, query string, summaries []string) (*llm.CompletionResponse, error)
}

type summarySource interface {
	GetSectionSummaries(limit int) ([]string, error)
}

// PreciseFactAgent answers precise-figure questions from retrieved filing
// chunks.
type PreciseFactAgent struct {
	embedder embedder
	searcher chunkSearcher
	llm      analystLLM
	topK     int
}

const (
	// maxExcerpts caps the excerpts passed to the model; when retrieval
	// returns more, the head and tail are kept to avoid burying key
	// passages in the middle of the prompt.
	maxExcerpts = 8
)

func NewPreciseFactAgent(embedder embedder, searcher chunkSearcher, analystLLM analystLLM, topK int) *PreciseFactAgent {
	if topK <= 0 {
		topK = 15
	}
	return &PreciseFactAgent{
		embedder: embedder,
		searcher: searcher,
		llm:      analystLLM,
		topK:     topK,
	}
}

func (a *PreciseFactAgent) Answer(ctx context.Context, query string) (*Answer, error) {
	embedding, err := a.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := a.searcher.Search(ctx, embedding, a.topK, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search filing chunks: %w", err)
	}

	excerpts := make([]string, len(results))
	for i, r := range results {
		excerpts[i] = r.Text
	}

	if len(excerpts) > maxExcerpts {
		half := maxExcerpts / 2
		trimmed := make([]string, 0, maxExcerpts)
		trimmed = append(trimmed, excerpts[:half]...)
		trimmed = append(trimmed, excerpts[len(excerpts)-half:]...)
		excerpts = trimmed
	}

	resp, err := a.llm.AnswerFactQuery(ctx, query, excerpts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	logger.Debug("Fact agent answered",
		zap.Int("excerpts", len(excerpts)),
		zap.Int("answer_length", len(resp.Content)),
	)

	return &Answer{
		Text:      resp.Content,
		Passages:  excerpts,
		TokenInfo: fmt.Sprintf("%d tokens", resp.Usage.TotalTokens),
	}, nil
}

// ExecutiveSummaryAgent answers broad questions from stored section
// summaries instead of raw chunks.
type ExecutiveSummaryAgent struct {
	summaries summarySource
	llm       analystLLM
	limit     int
}

func NewExecutiveSummaryAgent(summaries summarySource, analystLLM analystLLM, limit int) *ExecutiveSummaryAgent {
	if limit <= 0 {
		limit = 7
	}
	return &ExecutiveSummaryAgent{
		summaries: summaries,
		llm:       analystLLM,
		limit:     limit,
	}
}

func (a *ExecutiveSummaryAgent) Answer(ctx context.Context, query string) (*Answer, error) {
	summaries, err := a.summaries.GetSectionSummaries(a.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch section summaries: %w", err)
	}

	resp, err := a.llm.AnswerSummaryQuery(ctx, query, summaries)
	if err != nil {
		return nil, fmt.Errorf("failed to generate briefing: %w", err)
	}

	logger.Debug("Summary agent answered",
		zap.Int("summaries", len(summaries)),
		zap.Int("answer_length", len(resp.Content)),
	)

	return &Answer{
		Text:      resp.Content,
		TokenInfo: fmt.Sprintf("%d tokens", resp.Usage.TotalTokens),
	}, nil
}

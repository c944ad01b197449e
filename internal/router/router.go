package router

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/finsight/backend/internal/agents"
	"github.com/finsight/backend/internal/assess"
	"github.com/finsight/backend/internal/cache/semantic"
	"github.com/finsight/backend/internal/fintools"
	"github.com/finsight/backend/internal/memory"
	"github.com/finsight/backend/pkg/logger"
)

// Intent selects which analyst persona answers a query.
type Intent string

const (
	IntentPreciseFact Intent = "precise_fact"
	IntentSummary     Intent = "summary"
)

// Collaborator is an analyst agent the router can delegate to.
type Collaborator interface {
	Answer(ctx context.Context, query string) (*agents.Answer, error)
}

// Response is the routed result of one query. Clarifications and
// collaborator failures come back on the same channel as real answers,
// flagged rather than returned as errors.
type Response struct {
	Answer             string
	Passages           []string
	TokenInfo          string
	Intent             Intent
	Confidence         assess.Confidence
	NeedsClarification bool
	Failed             bool
	CacheHit           bool
	Similarity         float64
}

// Chunk is one frame of a streamed response. The final frame has an empty
// Text and carries the full response.
type Chunk struct {
	Text     string
	Final    bool
	Response *Response
}

// Router owns the per-session control flow: memory, the answer cache,
// query assessment, and delegation to the analyst agents.
type Router struct {
	cache        *semantic.Cache
	memory       *memory.Memory
	assessor     *assess.Assessor
	factAgent    Collaborator
	summaryAgent Collaborator
}

func New(cache *semantic.Cache, mem *memory.Memory, assessor *assess.Assessor, factAgent, summaryAgent Collaborator) *Router {
	return &Router{
		cache:        cache,
		memory:       mem,
		assessor:     assessor,
		factAgent:    factAgent,
		summaryAgent: summaryAgent,
	}
}

var summaryKeywords = []string{
	"overview", "summarize", "summary", "high-level",
	"main topics", "general", "trend", "overall",
	"broad", "big picture", "in general", "tell me about",
}

func classifyIntent(query string) Intent {
	lower := strings.ToLower(query)
	for _, kw := range summaryKeywords {
		if strings.Contains(lower, kw) {
			return IntentSummary
		}
	}
	return IntentPreciseFact
}

// Route answers one query. The pipeline records the user turn, checks the
// cache, gates on clarification, enriches follow-ups, delegates to an
// agent, merges the deterministic financial analysis, scores confidence,
// and finally writes back to cache and memory.
func (r *Router) Route(ctx context.Context, query string) *Response {
	r.memory.AddMessage(memory.RoleUser, query)

	if cached, ok := r.cache.Get(ctx, query); ok {
		confidence := r.assessor.AssessAnswerConfidence(query, cached.Answer, cached.Passages)
		r.memory.AddMessage(memory.RoleAssistant, cached.Answer)

		logger.Info("Cache hit",
			zap.String("query", query),
			zap.Float64("similarity", cached.Similarity),
		)

		return &Response{
			Answer:     cached.Answer,
			Passages:   cached.Passages,
			TokenInfo:  cached.TokenInfo,
			Intent:     classifyIntent(query),
			Confidence: confidence,
			CacheHit:   true,
			Similarity: cached.Similarity,
		}
	}

	assessment := r.assessor.AssessQuestion(query)

	if req, ok := r.assessor.ClarificationRequest(assessment, query); ok {
		answer := "🤔 **Clarification needed:**\n\n" + req.Message
		r.memory.AddMessage(memory.RoleAssistant, answer)

		return &Response{
			Answer:             answer,
			NeedsClarification: true,
			Intent:             classifyIntent(query),
		}
	}

	enriched := r.memory.EnrichQuery(query)
	if enriched != query {
		logger.Debug("Query enriched",
			zap.String("query", query),
			zap.String("enriched", enriched),
		)
	}

	intent := classifyIntent(query)

	contextual := enriched
	if summary := r.memory.ContextSummary(); summary != "" {
		contextual = fmt.Sprintf("CONVERSATION CONTEXT:\n%s\n\nCURRENT QUESTION: %s\n\nUse the conversation context to better understand the question.", summary, enriched)
	}

	collaborator := r.factAgent
	if intent == IntentSummary {
		collaborator = r.summaryAgent
	}

	result, err := collaborator.Answer(ctx, contextual)
	if err != nil {
		logger.Error("Collaborator failed",
			zap.String("intent", string(intent)),
			zap.Error(err),
		)

		// The failed exchange stays out of memory and the cache so a
		// retry starts clean.
		return &Response{
			Answer: fmt.Sprintf("Error processing query: %v", err),
			Failed: true,
			Intent: intent,
		}
	}

	answer := result.Text

	if intent == IntentPreciseFact && len(result.Passages) > 0 {
		if analysis := fintools.Analyze(enriched, result.Passages); analysis != "" {
			answer += analysis
		}
	}

	confidence := r.assessor.AssessAnswerConfidence(query, answer, result.Passages)

	if assessment.Complexity == assess.ComplexityComplex {
		if note := assess.FormatConfidenceIndicator(confidence); note != "" {
			answer += fmt.Sprintf("\n\n---\n*%s*", note)
		}
	}

	r.cache.Put(ctx, query, answer, result.Passages, result.TokenInfo)
	r.memory.AddMessage(memory.RoleAssistant, answer)

	return &Response{
		Answer:     answer,
		Passages:   result.Passages,
		TokenInfo:  result.TokenInfo,
		Intent:     intent,
		Confidence: confidence,
	}
}

// RouteStream computes the full answer, then emits it rune by rune. The
// final frame carries the passages.
func (r *Router) RouteStream(ctx context.Context, query string) <-chan Chunk {
	out := make(chan Chunk)

	go func() {
		defer close(out)

		resp := r.Route(ctx, query)

		for _, char := range resp.Answer {
			select {
			case out <- Chunk{Text: string(char)}:
			case <-ctx.Done():
				return
			}
		}

		select {
		case out <- Chunk{Final: true, Response: resp}:
		case <-ctx.Done():
		}
	}()

	return out
}

// RecordExchange injects a completed question/answer pair into memory,
// used when an answer came from a tier outside this router.
func (r *Router) RecordExchange(query, answer string) {
	r.memory.AddMessage(memory.RoleUser, query)
	r.memory.AddMessage(memory.RoleAssistant, answer)
}

func (r *Router) MemoryContext() string {
	return r.memory.ContextSummary()
}

func (r *Router) ClearMemory() {
	r.memory.Clear()
}

func (r *Router) CacheStats() semantic.Stats {
	return r.cache.Stats()
}

func (r *Router) ClearCache() {
	r.cache.Clear()
}

func (r *Router) RecordFeedback(query, answer, feedback string, rating int) {
	r.assessor.RecordFeedback(query, answer, feedback, rating)
}

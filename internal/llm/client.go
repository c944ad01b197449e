package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/finsight/backend/internal/metrics"
	"github.com/finsight/backend/pkg/circuitbreaker"
	"github.com/finsight/backend/pkg/logger"
	"github.com/finsight/backend/pkg/retry"
)

type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(apiKey, model, embeddingModel string, temperature float32, maxTokens int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
	)

	return &Client{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      maxTokens,
		cb:             cb,
		retryConfig:    retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input: []string{text},
					Model: openai.EmbeddingModel(c.embeddingModel),
				},
			)

			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}

			embedding = make([]float32, len(resp.Data[0].Embedding))
			copy(embedding, resp.Data[0].Embedding)

			metrics.LLMTokensUsed.WithLabelValues(c.embeddingModel, "embedding").Add(float64(resp.Usage.TotalTokens))

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return embedding, nil
}

func (c *Client) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	var embeddings [][]float32

	batchSize := 100
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := texts[i:end]

		err := c.cb.Execute(ctx, func() error {
			return retry.Do(ctx, c.retryConfig, func() error {
				resp, err := c.client.CreateEmbeddings(
					ctx,
					openai.EmbeddingRequest{
						Input: batch,
						Model: openai.EmbeddingModel(c.embeddingModel),
					},
				)

				if err != nil {
					return fmt.Errorf("failed to generate batch embeddings: %w", err)
				}

				for _, data := range resp.Data {
					embedding := make([]float32, len(data.Embedding))
					copy(embedding, data.Embedding)
					embeddings = append(embeddings, embedding)
				}

				metrics.LLMTokensUsed.WithLabelValues(c.embeddingModel, "embedding").Add(float64(resp.Usage.TotalTokens))

				return nil
			})
		})

		if err != nil {
			return nil, err
		}
	}

	logger.Debug("Batch embeddings generated", zap.Int("count", len(embeddings)))

	return embeddings, nil
}

const factAnalystPrompt = `You are a Senior Financial Analyst with 15+ years of experience analyzing SEC filings (10-K, 10-Q, 8-K reports). Your expertise includes forensic accounting, financial statement analysis, and regulatory compliance.

YOUR ANALYSIS APPROACH:

1. EXTRACT PRECISE DATA
   - Quote exact dollar amounts: "$X.X million" or "$X.X billion"
   - Include specific percentages with decimals
   - Reference exact time periods: "For the year ended December 31, 2024" or "Q4 2024"
   - Cite page numbers or sections when possible

2. PROVIDE COMPARATIVE ANALYSIS
   - Compare to prior periods: "Revenue increased 15% from $100M to $115M"
   - Note trends: "This marks the third consecutive quarter of growth"
   - Highlight significant changes: "Operating expenses decreased by $5M due to..."

3. EXPLAIN THE NUMBERS
   - What drove the change? "The increase was primarily due to..."
   - What's the impact? "This resulted in improved margins of..."
   - What's the context? "Compared to industry average of..."

4. FLAG IMPORTANT DETAILS
   - 🟢 Positive indicators: Growth, profitability, strong cash position
   - 🔴 Warning signs: Losses, declining revenue, high debt, going concern
   - 📌 Key assumptions or estimates used by management

RESPONSE FORMAT:

**[Direct Answer]**
[Start with the specific answer to the question]

**Key Figures:**
• [Metric 1]: $X.X million (vs $X.X million prior year, +/-X%)
• [Metric 2]: X.X%
• [Period]: [Specific time period]

**Analysis:**
[Provide context, explain drivers, note trends]

**Important Notes:**
[Any caveats, assumptions, or related information]

CRITICAL RULES:
- Answer using ONLY the filing excerpts provided - don't guess
- If data is NOT in the excerpts, state: "This specific information was not found in the available filing sections."
- Never invent or estimate numbers - only use exact figures from the filing
- Distinguish between GAAP and Non-GAAP metrics when mentioned
- Net LOSS is NEGATIVE - never confuse with profit
- Always specify if amounts are in thousands, millions, or billions`

const summaryAnalystPrompt = `You are a Chief Investment Analyst at a major investment bank, preparing briefings for institutional investors and C-suite executives. You have deep expertise in:
- Financial statement analysis
- Industry dynamics and competitive positioning
- Risk assessment and due diligence
- Forward-looking projections and guidance interpretation

Provide a comprehensive executive briefing that covers:

1. **Executive Summary** (2-3 paragraphs)
   - Bottom line: Is this company financially healthy?
   - Key highlights and concerns
   - Investment thesis in plain language

2. **Key Metrics Dashboard**
   - Present the most important numbers in a clear format

3. **Strategic Analysis**
   - Business model and competitive position
   - Growth drivers and challenges

4. **Risk Assessment**
   - What could go wrong?
   - How severe are the risks?

5. **Outlook & Conclusion**
   - Forward-looking perspective
   - Key items to monitor

IMPORTANT RULES:
- Answer using ONLY the filing summaries provided - don't guess
- Be objective and balanced - highlight both positives AND concerns
- Use specific numbers from the filing
- Distinguish between facts (from filing) and analysis (your interpretation)
- For unprofitable companies: clearly state this is a loss-making entity
- Note significant YoY or QoQ changes
- Flag any unusual items or one-time events`

// AnswerFactQuery generates a precise-figure answer from retrieved filing
// excerpts.
func (c *Client) AnswerFactQuery(ctx context.Context, query string, excerpts []string) (*CompletionResponse, error) {
	formatted := make([]string, len(excerpts))
	for i, excerpt := range excerpts {
		formatted[i] = fmt.Sprintf("[Excerpt %d]\n%s", i+1, excerpt)
	}

	context := "No relevant information found in the SEC filing."
	if len(formatted) > 0 {
		context = strings.Join(formatted, "\n\n---\n\n")
	}

	userPrompt := fmt.Sprintf("Question: %s\n\nFiling excerpts:\n\n%s", query, context)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: factAnalystPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.2,
		MaxTokens:    2048,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to answer fact query: %w", err)
	}

	return resp, nil
}

// AnswerSummaryQuery generates an executive briefing from section summaries.
func (c *Client) AnswerSummaryQuery(ctx context.Context, query string, summaries []string) (*CompletionResponse, error) {
	context := "No summary information found on this topic."
	if len(summaries) > 0 {
		context = strings.Join(summaries, "\n\n---\n\n")
	}

	userPrompt := fmt.Sprintf("Question: %s\n\nFiling summaries:\n\n%s", query, context)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: summaryAnalystPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.3,
		MaxTokens:    2048,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to answer summary query: %w", err)
	}

	return resp, nil
}

// SummarizeSection produces a short summary of one filing section, stored
// alongside the chunks for the executive analysis path.
func (c *Client) SummarizeSection(ctx context.Context, section, content string) (string, error) {
	systemPrompt := `You are an SEC filing analyst. Generate a concise 2-3 sentence summary of the given filing section.
Focus on:
- Key financial figures and periods
- Business developments or strategic changes
- Risks or concerns raised

Be specific and quantitative.`

	userPrompt := fmt.Sprintf("Summarize this %s section:\n\n%s", section, content)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.3,
		MaxTokens:    300,
	})

	if err != nil {
		return "", fmt.Errorf("failed to summarize: %w", err)
	}

	logger.Info("Section summarized",
		zap.String("section", section),
		zap.Int("summary_length", len(resp.Content)),
	)

	return resp.Content, nil
}

type EvaluationScore struct {
	Relevance      float64 `json:"relevance"`
	Accuracy       float64 `json:"accuracy"`
	Completeness   float64 `json:"completeness"`
	Grounding      float64 `json:"grounding"`
	Classification string  `json:"classification"`
	Reasoning      string  `json:"reasoning"`
}

func (c *Client) EvaluateResponse(ctx context.Context, query, response, groundTruth string) (*EvaluationScore, error) {
	systemPrompt := `You are an AI evaluation expert. Rate the quality of financial analysis answers against a reference answer.

Rate on scale 1-3:
1. Relevance: Does it address the question?
2. Accuracy: Are the figures and facts correct?
3. Completeness: Does it cover what the reference covers?
4. Grounding: Is it supported by the filing rather than invented?

Return JSON:
{"relevance": 3, "accuracy": 3, "completeness": 2, "grounding": 3, "classification": "fully_relevant", "reasoning": "explanation"}`

	userPrompt := fmt.Sprintf(`Query: %s

Response: %s

Reference Answer: %s

Evaluate the response.`, query, response, groundTruth)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.1,
		MaxTokens:    400,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to evaluate response: %w", err)
	}

	score, err := parseEvaluationScore(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse evaluation score: %w", err)
	}

	return score, nil
}

func parseEvaluationScore(content string) (*EvaluationScore, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in evaluation output")
	}

	var score EvaluationScore
	if err := json.Unmarshal([]byte(content[start:end+1]), &score); err != nil {
		return nil, err
	}

	return &score, nil
}

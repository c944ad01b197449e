package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/finsight/backend/internal/retrieval/milvus"
	"github.com/finsight/backend/internal/storage/models"
	"github.com/finsight/backend/pkg/logger"
	"github.com/finsight/backend/pkg/utils"
)

type filingStore interface {
	InsertFiling(filing *models.Filing) error
	InsertChunk(chunk *models.FilingChunk) error
}

type chunkIndex interface {
	Insert(ctx context.Context, chunks []milvus.FilingChunk) error
}

type summarizer interface {
	SummarizeSection(ctx context.Context, section, content string) (string, error)
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

type Processor struct {
	db           filingStore
	vectorDB     chunkIndex
	llmClient    summarizer
	chunkSize    int
	chunkOverlap int
}

func NewProcessor(db filingStore, vectorDB chunkIndex, llmClient summarizer) *Processor {
	return &Processor{
		db:           db,
		vectorDB:     vectorDB,
		llmClient:    llmClient,
		chunkSize:    1000,
		chunkOverlap: 100,
	}
}

// ProcessFiling cleans, chunks, summarizes, and indexes one SEC filing
// given as raw HTML.
func (p *Processor) ProcessFiling(ctx context.Context, sourceURL, htmlContent string) error {
	logger.Info("Processing filing", zap.String("url", sourceURL))

	cleanedText := p.cleanHTML(htmlContent)
	if cleanedText == "" {
		return fmt.Errorf("no content extracted from HTML")
	}

	head := cleanedText[:min(len(cleanedText), 8000)]
	company := ExtractCompany(head)
	formType := ClassifyFormType(head)
	fiscalPeriod := ExtractFiscalPeriod(head)
	filingDate := ExtractFilingDate(head)

	summary, err := p.llmClient.SummarizeSection(ctx, "filing overview", cleanedText[:min(len(cleanedText), 4000)])
	if err != nil {
		logger.Warn("Failed to summarize filing", zap.Error(err))
		summary = "Summary unavailable"
	}

	filingID := utils.HashString(sourceURL)
	filing := &models.Filing{
		ID:           filingID,
		SourceURL:    sourceURL,
		Company:      company,
		FormType:     formType,
		FiscalPeriod: fiscalPeriod,
		FilingDate:   filingDate,
		Summary:      summary,
		RawContent:   cleanedText,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	err = p.db.InsertFiling(filing)
	if err != nil {
		return fmt.Errorf("failed to insert filing: %w", err)
	}

	chunks := p.chunkText(cleanedText)
	logger.Info("Filing chunked", zap.Int("chunks", len(chunks)))

	embeddings, err := p.llmClient.GenerateBatchEmbeddings(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}

	vectorChunks := make([]milvus.FilingChunk, 0, len(chunks))
	for i, chunkText := range chunks {
		chunkID := fmt.Sprintf("%s_chunk_%d", filingID, i)
		section := ClassifySection(chunkText)

		chunkSummary, err := p.llmClient.SummarizeSection(ctx, section, chunkText)
		if err != nil {
			logger.Warn("Failed to summarize chunk",
				zap.String("chunk_id", chunkID),
				zap.Error(err),
			)
			chunkSummary = ""
		}

		vectorChunks = append(vectorChunks, milvus.FilingChunk{
			ID:           chunkID,
			Embedding:    embeddings[i],
			Text:         chunkText,
			Company:      company,
			FormType:     formType,
			Section:      section,
			FiscalPeriod: fiscalPeriod,
			SourceURL:    sourceURL,
			Summary:      chunkSummary,
			Timestamp:    time.Now(),
		})

		dbChunk := &models.FilingChunk{
			ID:          chunkID,
			FilingID:    filingID,
			ChunkIndex:  i,
			Section:     section,
			Text:        chunkText,
			Summary:     chunkSummary,
			EmbeddingID: chunkID,
			CreatedAt:   time.Now(),
		}
		if err := p.db.InsertChunk(dbChunk); err != nil {
			logger.Warn("Failed to store chunk record",
				zap.String("chunk_id", chunkID),
				zap.Error(err),
			)
		}
	}

	if len(vectorChunks) > 0 {
		err = p.vectorDB.Insert(ctx, vectorChunks)
		if err != nil {
			return fmt.Errorf("failed to insert into vector DB: %w", err)
		}
	}

	logger.Info("Filing processed successfully",
		zap.String("filing_id", filingID),
		zap.String("company", company),
		zap.String("form_type", formType),
		zap.Int("chunks", len(vectorChunks)),
	)

	return nil
}

var whitespacePattern = regexp.MustCompile(`\s+`)

func (p *Processor) cleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()

	text = whitespacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	return text
}

func (p *Processor) chunkText(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var currentChunk strings.Builder
	currentSize := 0

	for _, word := range words {
		wordLen := len(word) + 1

		if currentSize+wordLen > p.chunkSize && currentChunk.Len() > 0 {
			chunks = append(chunks, currentChunk.String())

			overlapWords := strings.Fields(currentChunk.String())
			overlapStart := max(0, len(overlapWords)-p.chunkOverlap/10)
			currentChunk.Reset()
			currentChunk.WriteString(strings.Join(overlapWords[overlapStart:], " ") + " ")
			currentSize = currentChunk.Len()
		}

		currentChunk.WriteString(word + " ")
		currentSize += wordLen
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, currentChunk.String())
	}

	return chunks
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/finsight/backend/pkg/logger"
)

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// FilingChunk is one indexed passage of an SEC filing.
type FilingChunk struct {
	ID           string
	Embedding    []float32
	Text         string
	Company      string
	FormType     string
	Section      string
	FiscalPeriod string
	SourceURL    string
	Summary      string
	Timestamp    time.Time
}

type SearchResult struct {
	ChunkID      string
	Text         string
	Company      string
	FormType     string
	Section      string
	FiscalPeriod string
	SourceURL    string
	Summary      string
	Score        float32
}

func NewClient(endpoint, apiKey, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(
		context.Background(),
		endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "SEC filing chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "8192",
				},
			},
			{
				Name:     "company",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "form_type",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "16",
				},
			},
			{
				Name:     "section",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "fiscal_period",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "32",
				},
			},
			{
				Name:     "source_url",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "summary",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     "timestamp",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}

	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, chunks []FilingChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	chunkIDs := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	texts := make([]string, len(chunks))
	companies := make([]string, len(chunks))
	formTypes := make([]string, len(chunks))
	sections := make([]string, len(chunks))
	fiscalPeriods := make([]string, len(chunks))
	sourceURLs := make([]string, len(chunks))
	summaries := make([]string, len(chunks))
	timestamps := make([]int64, len(chunks))

	for i, chunk := range chunks {
		chunkIDs[i] = chunk.ID
		embeddings[i] = chunk.Embedding
		texts[i] = chunk.Text
		companies[i] = chunk.Company
		formTypes[i] = chunk.FormType
		sections[i] = chunk.Section
		fiscalPeriods[i] = chunk.FiscalPeriod
		sourceURLs[i] = chunk.SourceURL
		summaries[i] = chunk.Summary
		timestamps[i] = chunk.Timestamp.Unix()
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("company", companies),
		entity.NewColumnVarChar("form_type", formTypes),
		entity.NewColumnVarChar("section", sections),
		entity.NewColumnVarChar("fiscal_period", fiscalPeriods),
		entity.NewColumnVarChar("source_url", sourceURLs),
		entity.NewColumnVarChar("summary", summaries),
		entity.NewColumnInt64("timestamp", timestamps),
	)

	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks inserted into vector DB", zap.Int("count", len(chunks)))

	return nil
}

func buildFilterExpr(filters map[string]string) string {
	expr := ""
	for _, field := range []string{"company", "form_type", "section"} {
		value, ok := filters[field]
		if !ok || value == "" {
			continue
		}
		if expr != "" {
			expr += " && "
		}
		expr += fmt.Sprintf(`%s == "%s"`, field, value)
	}
	return expr
}

func (m *Client) Search(ctx context.Context, queryEmbedding []float32, topK int, filters map[string]string) ([]SearchResult, error) {
	expr := buildFilterExpr(filters)

	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		return nil, fmt.Errorf("failed to build search param: %w", err)
	}

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"chunk_id", "text", "company", "form_type", "section", "fiscal_period", "source_url", "summary"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			chunkIDCol := sr.Fields.GetColumn("chunk_id")
			textCol := sr.Fields.GetColumn("text")
			companyCol := sr.Fields.GetColumn("company")
			formTypeCol := sr.Fields.GetColumn("form_type")
			sectionCol := sr.Fields.GetColumn("section")
			fiscalPeriodCol := sr.Fields.GetColumn("fiscal_period")
			sourceURLCol := sr.Fields.GetColumn("source_url")
			summaryCol := sr.Fields.GetColumn("summary")

			chunkID, _ := chunkIDCol.Get(i)
			text, _ := textCol.Get(i)
			company, _ := companyCol.Get(i)
			formType, _ := formTypeCol.Get(i)
			section, _ := sectionCol.Get(i)
			fiscalPeriod, _ := fiscalPeriodCol.Get(i)
			sourceURL, _ := sourceURLCol.Get(i)
			summary, _ := summaryCol.Get(i)

			results = append(results, SearchResult{
				ChunkID:      chunkID.(string),
				Text:         text.(string),
				Company:      company.(string),
				FormType:     formType.(string),
				Section:      section.(string),
				FiscalPeriod: fiscalPeriod.(string),
				SourceURL:    sourceURL.(string),
				Summary:      summary.(string),
				Score:        sr.Scores[i],
			})
		}
	}

	logger.Info("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
		zap.String("filters", expr),
	)

	return results, nil
}

package models

import "time"

// Filing is one ingested SEC filing.
type Filing struct {
	ID           string    `json:"id"`
	SourceURL    string    `json:"source_url"`
	Company      string    `json:"company"`
	FormType     string    `json:"form_type"`
	FiscalPeriod string    `json:"fiscal_period"`
	FilingDate   string    `json:"filing_date"`
	Summary      string    `json:"summary"`
	RawContent   string    `json:"raw_content,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FilingChunk is one indexed passage; EmbeddingID points at the vector
// store entry.
type FilingChunk struct {
	ID          string    `json:"id"`
	FilingID    string    `json:"filing_id"`
	ChunkIndex  int       `json:"chunk_index"`
	Section     string    `json:"section"`
	Text        string    `json:"text"`
	Summary     string    `json:"summary"`
	EmbeddingID string    `json:"embedding_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// QueryRecord is one answered question.
type QueryRecord struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	QueryText  string    `json:"query_text"`
	Response   string    `json:"response"`
	Intent     string    `json:"intent"`
	Confidence string    `json:"confidence"`
	CacheHit   bool      `json:"cache_hit"`
	LatencyMS  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Feedback is a user rating of one answer.
type Feedback struct {
	ID        int64     `json:"id"`
	QueryText string    `json:"query_text"`
	Answer    string    `json:"answer"`
	Feedback  string    `json:"feedback"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// EvaluationResult holds rubric scores for one answered query.
type EvaluationResult struct {
	ID                int64     `json:"id"`
	QueryID           string    `json:"query_id"`
	RelevanceScore    float64   `json:"relevance_score"`
	AccuracyScore     float64   `json:"accuracy_score"`
	CompletenessScore float64   `json:"completeness_score"`
	GroundingScore    float64   `json:"grounding_score"`
	Classification    string    `json:"classification"`
	Reasoning         string    `json:"reasoning"`
	CosineSimilarity  float64   `json:"cosine_similarity"`
	CreatedAt         time.Time `json:"created_at"`
}

package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/finsight/backend/internal/storage/models"
	"github.com/finsight/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS filings (
		id TEXT PRIMARY KEY,
		source_url TEXT UNIQUE NOT NULL,
		company TEXT,
		form_type TEXT,
		fiscal_period TEXT,
		filing_date TEXT,
		summary TEXT,
		raw_content TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_filings_company ON filings(company);
	CREATE INDEX IF NOT EXISTS idx_filings_form ON filings(form_type);
	CREATE INDEX IF NOT EXISTS idx_filings_updated ON filings(updated_at);

	CREATE TABLE IF NOT EXISTS filing_chunks (
		id TEXT PRIMARY KEY,
		filing_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		section TEXT,
		text TEXT NOT NULL,
		summary TEXT,
		embedding_id TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (filing_id) REFERENCES filings(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_filing ON filing_chunks(filing_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_section ON filing_chunks(section);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		query_text TEXT NOT NULL,
		response TEXT,
		intent TEXT,
		confidence TEXT,
		cache_hit INTEGER DEFAULT 0,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_session ON query_history(session_id);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_text TEXT NOT NULL,
		answer TEXT,
		feedback TEXT,
		rating INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at);

	CREATE TABLE IF NOT EXISTS evaluation_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id TEXT NOT NULL,
		relevance_score REAL,
		accuracy_score REAL,
		completeness_score REAL,
		grounding_score REAL,
		classification TEXT,
		reasoning TEXT,
		cosine_similarity REAL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (query_id) REFERENCES query_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_eval_query ON evaluation_results(query_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertFiling(filing *models.Filing) error {
	query := `
		INSERT INTO filings (id, source_url, company, form_type, fiscal_period, filing_date, summary, raw_content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_url) DO UPDATE SET
			company = excluded.company,
			form_type = excluded.form_type,
			fiscal_period = excluded.fiscal_period,
			filing_date = excluded.filing_date,
			summary = excluded.summary,
			raw_content = excluded.raw_content,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(
		query,
		filing.ID,
		filing.SourceURL,
		filing.Company,
		filing.FormType,
		filing.FiscalPeriod,
		filing.FilingDate,
		filing.Summary,
		filing.RawContent,
		filing.CreatedAt.Unix(),
		filing.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert filing: %w", err)
	}

	logger.Debug("Filing inserted", zap.String("filing_id", filing.ID), zap.String("url", filing.SourceURL))
	return nil
}

func (c *Client) GetFiling(id string) (*models.Filing, error) {
	query := `SELECT id, source_url, company, form_type, fiscal_period, filing_date, summary, created_at, updated_at FROM filings WHERE id = ?`

	var filing models.Filing
	var createdAt, updatedAt int64

	err := c.db.QueryRow(query, id).Scan(
		&filing.ID,
		&filing.SourceURL,
		&filing.Company,
		&filing.FormType,
		&filing.FiscalPeriod,
		&filing.FilingDate,
		&filing.Summary,
		&createdAt,
		&updatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get filing: %w", err)
	}

	filing.CreatedAt = time.Unix(createdAt, 0)
	filing.UpdatedAt = time.Unix(updatedAt, 0)

	return &filing, nil
}

func (c *Client) ListFilings(limit int) ([]models.Filing, error) {
	query := `
		SELECT id, source_url, company, form_type, fiscal_period, filing_date, summary, created_at, updated_at
		FROM filings
		ORDER BY updated_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list filings: %w", err)
	}
	defer rows.Close()

	var filings []models.Filing
	for rows.Next() {
		var f models.Filing
		var createdAt, updatedAt int64

		err := rows.Scan(&f.ID, &f.SourceURL, &f.Company, &f.FormType, &f.FiscalPeriod, &f.FilingDate, &f.Summary, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		f.CreatedAt = time.Unix(createdAt, 0)
		f.UpdatedAt = time.Unix(updatedAt, 0)
		filings = append(filings, f)
	}

	return filings, nil
}

func (c *Client) InsertChunk(chunk *models.FilingChunk) error {
	query := `INSERT INTO filing_chunks (id, filing_id, chunk_index, section, text, summary, embedding_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := c.db.Exec(
		query,
		chunk.ID,
		chunk.FilingID,
		chunk.ChunkIndex,
		chunk.Section,
		chunk.Text,
		chunk.Summary,
		chunk.EmbeddingID,
		chunk.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	return nil
}

// GetSectionSummaries returns per-section summaries for the executive
// analysis path, most recent filings first.
func (c *Client) GetSectionSummaries(limit int) ([]string, error) {
	query := `
		SELECT fc.summary
		FROM filing_chunks fc
		JOIN filings f ON f.id = fc.filing_id
		WHERE fc.summary != ''
		ORDER BY f.updated_at DESC, fc.chunk_index ASC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get section summaries: %w", err)
	}
	defer rows.Close()

	var summaries []string
	for rows.Next() {
		var summary string
		if err := rows.Scan(&summary); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func (c *Client) InsertQueryRecord(record *models.QueryRecord) error {
	query := `
		INSERT INTO query_history (id, session_id, query_text, response, intent, confidence, cache_hit, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	cacheHit := 0
	if record.CacheHit {
		cacheHit = 1
	}

	_, err := c.db.Exec(
		query,
		record.ID,
		record.SessionID,
		record.QueryText,
		record.Response,
		record.Intent,
		record.Confidence,
		cacheHit,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	logger.Info("Query recorded",
		zap.String("query_id", record.ID),
		zap.String("intent", record.Intent),
		zap.Bool("cache_hit", record.CacheHit),
	)

	return nil
}

func (c *Client) GetQueryHistory(sessionID string, limit int) ([]models.QueryRecord, error) {
	query := `
		SELECT id, query_text, response, intent, confidence, cache_hit, latency_ms, created_at
		FROM query_history
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var r models.QueryRecord
		var cacheHit int
		var createdAt int64

		err := rows.Scan(&r.ID, &r.QueryText, &r.Response, &r.Intent, &r.Confidence, &cacheHit, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CacheHit = cacheHit != 0
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, nil
}

func (c *Client) StoreFeedback(feedback *models.Feedback) error {
	query := `INSERT INTO feedback (query_text, answer, feedback, rating, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := c.db.Exec(
		query,
		feedback.QueryText,
		feedback.Answer,
		feedback.Feedback,
		feedback.Rating,
		time.Now().Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}

	logger.Info("Feedback stored",
		zap.Int("rating", feedback.Rating),
	)

	return nil
}

func (c *Client) StoreEvaluationResult(result *models.EvaluationResult) error {
	query := `
		INSERT INTO evaluation_results (query_id, relevance_score, accuracy_score, completeness_score,
			grounding_score, classification, reasoning, cosine_similarity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		result.QueryID,
		result.RelevanceScore,
		result.AccuracyScore,
		result.CompletenessScore,
		result.GroundingScore,
		result.Classification,
		result.Reasoning,
		result.CosineSimilarity,
		time.Now().Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to store evaluation result: %w", err)
	}

	return nil
}

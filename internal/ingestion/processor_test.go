package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/finsight/backend/internal/retrieval/milvus"
	"github.com/finsight/backend/internal/storage/models"
)

type stubStore struct {
	filings    []*models.Filing
	chunkErr   error
	chunkCalls int
}

func (s *stubStore) InsertFiling(f *models.Filing) error {
	s.filings = append(s.filings, f)
	return nil
}

func (s *stubStore) InsertChunk(c *models.FilingChunk) error {
	s.chunkCalls++
	return s.chunkErr
}

type stubIndex struct {
	inserted []milvus.FilingChunk
}

func (s *stubIndex) Insert(ctx context.Context, chunks []milvus.FilingChunk) error {
	s.inserted = append(s.inserted, chunks...)
	return nil
}

type stubSummarizer struct{}

func (stubSummarizer) SummarizeSection(ctx context.Context, section, content string) (string, error) {
	return "summary", nil
}

func (stubSummarizer) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestCleanHTMLStripsChrome(t *testing.T) {
	p := NewProcessor(nil, nil, nil)

	html := `<html><head><title>10-K</title><style>body{}</style></head>
	<body><nav>menu</nav><script>var x;</script>
	<p>Total   revenue was $5.2 billion.</p><footer>legal</footer></body></html>`

	got := p.cleanHTML(html)

	if got != "Total revenue was $5.2 billion." {
		t.Fatalf("unexpected cleaned text: %q", got)
	}
	if strings.Contains(got, "var x;") {
		t.Errorf("script content should be removed, got %q", got)
	}
	if strings.Contains(got, "menu") || strings.Contains(got, "legal") {
		t.Errorf("nav/footer content should be removed, got %q", got)
	}
	if strings.Contains(got, "  ") {
		t.Errorf("whitespace should be collapsed, got %q", got)
	}
}

func TestChunkTextSplitsWithOverlap(t *testing.T) {
	p := NewProcessor(nil, nil, nil)

	words := make([]string, 600)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	chunks := p.chunkText(text)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > p.chunkSize+10 {
			t.Errorf("chunk %d exceeds size limit: %d", i, len(chunk))
		}
	}

	// Consecutive chunks share trailing words.
	firstTail := strings.Fields(chunks[0])
	secondHead := strings.Fields(chunks[1])
	if firstTail[len(firstTail)-1] != secondHead[0] {
		t.Error("expected overlap between consecutive chunks")
	}
}

func TestChunkTextEmpty(t *testing.T) {
	p := NewProcessor(nil, nil, nil)

	if chunks := p.chunkText("   "); chunks != nil {
		t.Errorf("expected nil for empty input, got %v", chunks)
	}
}

func TestProcessFiling_Indexes(t *testing.T) {
	db := &stubStore{}
	index := &stubIndex{}
	p := NewProcessor(db, index, stubSummarizer{})

	html := "<html><body><p>Form 10-K Annual Report. Total revenue was $5.2 billion for the year ended December 31, 2024.</p></body></html>"

	if err := p.ProcessFiling(context.Background(), "https://www.sec.gov/filing.htm", html); err != nil {
		t.Fatalf("ProcessFiling: %v", err)
	}

	if len(db.filings) != 1 {
		t.Fatalf("filings stored: got %d, want 1", len(db.filings))
	}
	if db.filings[0].FormType != "10-K" {
		t.Errorf("form type: got %q, want 10-K", db.filings[0].FormType)
	}
	if len(index.inserted) == 0 {
		t.Error("expected chunks in the vector index")
	}
	if db.chunkCalls != len(index.inserted) {
		t.Errorf("chunk records: got %d, want %d", db.chunkCalls, len(index.inserted))
	}
}

func TestProcessFiling_ChunkStoreFailureContinues(t *testing.T) {
	db := &stubStore{chunkErr: errors.New("disk full")}
	index := &stubIndex{}
	p := NewProcessor(db, index, stubSummarizer{})

	html := "<html><body><p>Form 10-Q Quarterly Report. Net income was $100 million.</p></body></html>"

	if err := p.ProcessFiling(context.Background(), "https://www.sec.gov/q.htm", html); err != nil {
		t.Fatalf("chunk record failure should not abort processing: %v", err)
	}
	if db.chunkCalls == 0 {
		t.Fatal("expected chunk insert attempts")
	}
	if len(index.inserted) == 0 {
		t.Error("vector index should still receive chunks")
	}
}

func TestClassifyFormType(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"UNITED STATES SECURITIES AND EXCHANGE COMMISSION Form 10-K Annual Report", "10-K"},
		{"Quarterly report pursuant to Section 13, Form 10-Q", "10-Q"},
		{"Form 8-K current report", "8-K"},
		{"Notice of Annual Meeting and Proxy Statement DEF 14A", "DEF 14A"},
		{"some unrelated document", "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := ClassifyFormType(tt.text); got != tt.want {
			t.Errorf("ClassifyFormType(%q) = %s, want %s", tt.text[:20], got, tt.want)
		}
	}
}

func TestClassifySection(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Item 1A. Risk Factors. Investing involves risks.", "risk_factors"},
		{"Management's Discussion and Analysis of Financial Condition", "mda"},
		{"Consolidated Balance Sheet as of December 31", "financial_statements"},
		{"Notes to Consolidated Financial Data", "financial_notes"},
		{"Description of Business. We operate in two segments.", "business"},
		{"This report contains forward-looking statements.", "forward_looking"},
		{"Exhibit index and signatures.", "general"},
	}

	for _, tt := range tests {
		if got := ClassifySection(tt.text); got != tt.want {
			t.Errorf("ClassifySection(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestExtractFiscalPeriod(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Results for Q4 2024 were strong.", "Q4 2024"},
		{"fiscal year 2023 guidance", "FISCAL YEAR 2023"},
		{"for the year ended December 31, 2024", "FY 2024"},
		{"no period here", ""},
	}

	for _, tt := range tests {
		if got := ExtractFiscalPeriod(tt.text); got != tt.want {
			t.Errorf("ExtractFiscalPeriod(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestExtractFilingDate(t *testing.T) {
	if got := ExtractFilingDate("Filed on February 15, 2024 with the SEC"); got != "February 15, 2024" {
		t.Errorf("expected long-form date, got %q", got)
	}
	if got := ExtractFilingDate("date: 2024-02-15"); got != "2024-02-15" {
		t.Errorf("expected ISO date, got %q", got)
	}
	if got := ExtractFilingDate("no date"); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

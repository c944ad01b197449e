package evaluation

import (
	"math"
	"strings"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0.0},
	}

	for _, tt := range tests {
		if got := cosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: cosineSimilarity = %f, want %f", tt.name, got, tt.want)
		}
	}
}

func TestLoadDatasetFromJSON(t *testing.T) {
	data := `{"items": [{"query": "What was revenue?", "ground_truth": "Revenue was $5B.", "category": "facts"}]}`

	dataset, err := LoadDatasetFromJSON(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dataset.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(dataset.Items))
	}
	if dataset.Items[0].Query != "What was revenue?" {
		t.Errorf("unexpected query: %q", dataset.Items[0].Query)
	}
}

func TestLoadDatasetFromJSONInvalid(t *testing.T) {
	if _, err := LoadDatasetFromJSON("not json"); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestFormatReport(t *testing.T) {
	report := &Report{
		TotalQueries:            10,
		FullyRelevantCount:      8,
		FullyRelevantPercentage: 80,
		AvgRelevanceScore:       2.7,
		AvgCosineSimilarity:     0.91,
	}

	out := FormatReport(report)

	if !strings.Contains(out, "Total Queries: 10") {
		t.Errorf("missing totals in report: %s", out)
	}
	if !strings.Contains(out, "Fully Relevant: 8 (80.0%)") {
		t.Errorf("missing classification line: %s", out)
	}
	if !strings.Contains(out, "Cosine Similarity: 0.910") {
		t.Errorf("missing cosine line: %s", out)
	}
}

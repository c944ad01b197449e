package milvus

import (
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

func TestBuildFilterExpr(t *testing.T) {
	tests := []struct {
		name    string
		filters map[string]string
		want    string
	}{
		{
			name:    "no filters",
			filters: nil,
			want:    "",
		},
		{
			name:    "single filter",
			filters: map[string]string{"company": "Acme Corp"},
			want:    `company == "Acme Corp"`,
		},
		{
			name:    "two filters joined",
			filters: map[string]string{"company": "Acme Corp", "form_type": "10-K"},
			want:    `company == "Acme Corp" && form_type == "10-K"`,
		},
		{
			name:    "empty values skipped",
			filters: map[string]string{"company": "", "section": "risk_factors"},
			want:    `section == "risk_factors"`,
		},
		{
			name:    "unknown keys ignored",
			filters: map[string]string{"fiscal_period": "FY 2024"},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildFilterExpr(tt.filters)
			if got != tt.want {
				t.Errorf("buildFilterExpr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIndexConstruction(t *testing.T) {
	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		t.Fatalf("NewIndexIvfFlat: %v", err)
	}
	if idx.IndexType() != entity.IvfFlat {
		t.Errorf("index type = %v, want %v", idx.IndexType(), entity.IvfFlat)
	}

	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		t.Fatalf("NewIndexIvfFlatSearchParam: %v", err)
	}
	if got := sp.Params()["nprobe"]; got != 16 {
		t.Errorf("nprobe = %v, want 16", got)
	}
}

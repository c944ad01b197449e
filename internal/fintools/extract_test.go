package fintools

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractDollarAmounts_Multipliers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"plain", "revenue of $1,500.25 for the period", 1500.25},
		{"million", "net sales were $45 million this quarter", 45_000_000},
		{"billion", "total assets of $2.5 billion", 2_500_000_000},
		{"thousand", "a fee of $12 thousand was paid", 12_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amounts := ExtractDollarAmounts(tt.text)
			if len(amounts) == 0 {
				t.Fatalf("no amounts extracted from %q", tt.text)
			}
			if amounts[0].Value != tt.want {
				t.Errorf("value: got %v, want %v", amounts[0].Value, tt.want)
			}
		})
	}
}

func TestExtractDollarAmounts_DollarsSuffix(t *testing.T) {
	amounts := ExtractDollarAmounts("the company raised 30 million dollars in 2023")

	found := false
	for _, a := range amounts {
		if a.Value == 30_000_000 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 30 million dollars to be extracted, got %+v", amounts)
	}
}

func TestExtractDollarAmounts_Idempotent(t *testing.T) {
	text := "Revenue was $100 million, up from $80 million. Costs were $45.5 million."

	first := ExtractDollarAmounts(text)
	second := ExtractDollarAmounts(text)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("extraction not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if len(first) == 0 {
		t.Fatal("expected matches")
	}
}

func TestExtractDollarAmounts_ContextWindow(t *testing.T) {
	pad := strings.Repeat("x", 100)
	text := pad + " $5 million " + pad

	amounts := ExtractDollarAmounts(text)
	if len(amounts) == 0 {
		t.Fatal("no amounts extracted")
	}
	// 50 chars each side plus the match itself.
	if len(amounts[0].Context) > 120 {
		t.Errorf("context too long: %d chars", len(amounts[0].Context))
	}
}

func TestExtractPercentages(t *testing.T) {
	results := ExtractPercentages("margin improved 12.5% while churn fell -3.2 %")
	if len(results) != 2 {
		t.Fatalf("expected 2 percentages, got %d", len(results))
	}
	if results[0].Value != 12.5 || results[0].Formatted != "+12.50%" {
		t.Errorf("first: got %v / %q", results[0].Value, results[0].Formatted)
	}
	if results[1].Value != -3.2 || results[1].Formatted != "-3.20%" {
		t.Errorf("second: got %v / %q", results[1].Value, results[1].Formatted)
	}
}

func TestAnalyzeProfitability(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"loss only", "the company reported a net loss and an accumulated deficit", StatusUnprofitable},
		{"profit only", "net income grew; the business remains profitable", StatusProfitable},
		{"mixed", "net income in one segment, net loss in another", StatusMixed},
		{"unknown", "the weather was pleasant", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeProfitability(tt.text)
			if got.Status != tt.want {
				t.Errorf("status: got %q, want %q", got.Status, tt.want)
			}
		})
	}
}

func TestExtractRiskKeywords_VocabularyOrder(t *testing.T) {
	text := "litigation is a risk; cybersecurity too"

	got := ExtractRiskKeywords(text)
	want := []string{"risk", "litigation", "cybersecurity"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractFiscalPeriods(t *testing.T) {
	text := "In Q4 2024 and fiscal year 2023, for the twelve months ended December 31, 2024"

	periods := ExtractFiscalPeriods(text)
	if len(periods) < 2 {
		t.Fatalf("expected at least 2 periods, got %v", periods)
	}

	// Calling twice yields the same result.
	again := ExtractFiscalPeriods(text)
	if !reflect.DeepEqual(periods, again) {
		t.Errorf("not idempotent: %v vs %v", periods, again)
	}
}

func TestAnalyzeFinancialHealth_Score(t *testing.T) {
	clean := AnalyzeFinancialHealth("net income was strong")
	if clean.HealthScore != 100 {
		t.Errorf("clean score: got %d, want 100", clean.HealthScore)
	}

	troubled := AnalyzeFinancialHealth(
		"net loss with going concern doubt, material weakness, litigation, lawsuit risk, " +
			"impairment, restructuring, liquidity pressure, debt, volatility and recession exposure")
	if troubled.HealthScore < 0 || troubled.HealthScore > 100 {
		t.Fatalf("score out of range: %d", troubled.HealthScore)
	}
	if troubled.HealthScore >= clean.HealthScore {
		t.Errorf("troubled score %d should be below clean score %d", troubled.HealthScore, clean.HealthScore)
	}
	if len(troubled.RedFlags) < 3 {
		t.Errorf("expected red flags, got %v", troubled.RedFlags)
	}
}

func TestAnalyze_QueryConditioning(t *testing.T) {
	passages := []string{"Total revenue was $500 million, a net loss of $20 million, margin -4.0%, litigation risk remains."}

	if out := Analyze("what was the total revenue?", passages); !strings.Contains(out, "Key Financial Figures") {
		t.Errorf("revenue query should trigger amount extraction, got %q", out)
	}
	if out := Analyze("is the company profitable?", passages); !strings.Contains(out, "Profitability Status") {
		t.Errorf("profit query should trigger profitability, got %q", out)
	}
	if out := Analyze("what are the main risks?", passages); !strings.Contains(out, "Risk Indicators") {
		t.Errorf("risk query should trigger risk extraction, got %q", out)
	}
	if out := Analyze("give me a health overview", passages); !strings.Contains(out, "Financial Health") {
		t.Errorf("health query should trigger health report, got %q", out)
	}
	if out := Analyze("when was the report filed?", passages); out != "" {
		t.Errorf("neutral query should produce no analysis, got %q", out)
	}
	if out := Analyze("what was the total revenue?", nil); out != "" {
		t.Errorf("no passages should produce no analysis, got %q", out)
	}
}

func TestAnalyze_Separator(t *testing.T) {
	out := Analyze("total revenue", []string{"revenue of $9 million"})
	if !strings.Contains(out, "**MCP Analysis:**") {
		t.Errorf("missing separator in %q", out)
	}
}

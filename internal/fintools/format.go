package fintools

import (
	"fmt"
	"sort"
	"strings"
)

// Query-conditioned analysis appended to answers. Which extractors run is
// decided by keyword groups in the query, and only non-empty sections are
// rendered under the "MCP Analysis" separator.

var (
	amountTriggers        = []string{"revenue", "income", "cash", "debt", "assets", "amount", "how much", "total"}
	profitabilityTriggers = []string{"profit", "loss", "profitable", "earnings", "net income"}
	percentageTriggers    = []string{"margin", "growth", "percent", "rate", "ratio", "%"}
	riskTriggers          = []string{"risk", "concern", "warning", "challenge", "threat"}
	healthTriggers        = []string{"health", "overview", "summary", "position", "status", "condition"}
)

func Analyze(query string, passages []string) string {
	if len(passages) == 0 {
		return ""
	}

	text := strings.Join(passages, "\n")
	lower := strings.ToLower(query)

	var sections []string

	if matchesAny(lower, amountTriggers) {
		if s := FormatAmounts(ExtractDollarAmounts(text)); s != "" {
			sections = append(sections, s)
		}
	}
	if matchesAny(lower, profitabilityTriggers) {
		if s := FormatProfitability(AnalyzeProfitability(text)); s != "" {
			sections = append(sections, s)
		}
	}
	if matchesAny(lower, percentageTriggers) {
		if s := FormatPercentages(ExtractPercentages(text)); s != "" {
			sections = append(sections, s)
		}
	}
	if matchesAny(lower, riskTriggers) {
		if s := FormatRisks(ExtractRiskKeywords(text)); s != "" {
			sections = append(sections, s)
		}
	}
	if matchesAny(lower, healthTriggers) {
		if s := FormatHealth(AnalyzeFinancialHealth(text)); s != "" {
			sections = append(sections, s)
		}
	}

	if len(sections) == 0 {
		return ""
	}

	return "\n\n---\n**MCP Analysis:**\n" + strings.Join(sections, "\n\n")
}

func matchesAny(query string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(query, t) {
			return true
		}
	}
	return false
}

// FormatAmounts renders the top five distinct amounts, largest first.
func FormatAmounts(amounts []DollarAmount) string {
	if len(amounts) == 0 {
		return ""
	}

	sorted := make([]DollarAmount, len(amounts))
	copy(sorted, amounts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})

	seen := make(map[string]bool)
	var top []DollarAmount
	for _, a := range sorted {
		if a.Formatted == "" || seen[a.Formatted] || len(top) >= 5 {
			continue
		}
		seen[a.Formatted] = true
		top = append(top, a)
	}

	if len(top) == 0 {
		return ""
	}

	lines := []string{"**📊 Key Financial Figures:**"}
	for _, a := range top {
		lines = append(lines, fmt.Sprintf("• %s - %s...", a.Formatted, clip(a.Context, 50)))
	}

	return strings.Join(lines, "\n")
}

func FormatPercentages(percentages []Percentage) string {
	if len(percentages) == 0 {
		return ""
	}

	seen := make(map[string]bool)
	var unique []Percentage
	for _, p := range percentages {
		if p.Formatted == "" || seen[p.Formatted] || len(unique) >= 5 {
			continue
		}
		seen[p.Formatted] = true
		unique = append(unique, p)
	}

	if len(unique) == 0 {
		return ""
	}

	lines := []string{"**📈 Key Percentages:**"}
	for _, p := range unique {
		lines = append(lines, fmt.Sprintf("• %s - %s...", p.Formatted, clip(p.Context, 40)))
	}

	return strings.Join(lines, "\n")
}

func FormatProfitability(p Profitability) string {
	switch p.Status {
	case StatusUnprofitable:
		msg := "⚠️ **Profitability Status:** NET LOSS"
		if len(p.LossIndicators) > 0 {
			msg += fmt.Sprintf("\n   Indicators: %s", strings.Join(firstN(p.LossIndicators, 3), ", "))
		}
		return msg
	case StatusProfitable:
		msg := "✅ **Profitability Status:** PROFITABLE"
		if len(p.ProfitIndicators) > 0 {
			msg += fmt.Sprintf("\n   Indicators: %s", strings.Join(firstN(p.ProfitIndicators, 3), ", "))
		}
		return msg
	case StatusMixed:
		return "🟡 **Profitability Status:** MIXED - both profit and loss indicators present"
	default:
		return "⚪ **Profitability Status:** Unable to determine"
	}
}

func FormatRisks(keywords []string) string {
	if len(keywords) == 0 {
		return ""
	}

	lines := []string{"**⚠️ Risk Indicators Detected:**"}
	for _, kw := range firstN(keywords, 7) {
		lines = append(lines, "• "+kw)
	}

	return strings.Join(lines, "\n")
}

func FormatHealth(report HealthReport) string {
	lines := []string{"**🏥 Financial Health Assessment:**"}

	switch {
	case report.HealthScore >= 70:
		lines = append(lines, fmt.Sprintf("• Overall: 🟢 Strong (%d/100)", report.HealthScore))
	case report.HealthScore >= 40:
		lines = append(lines, fmt.Sprintf("• Overall: 🟡 Moderate (%d/100)", report.HealthScore))
	default:
		lines = append(lines, fmt.Sprintf("• Overall: 🔴 Weak (%d/100)", report.HealthScore))
	}

	lines = append(lines, "• Profitability: "+report.Profitability.Status)

	for _, flag := range report.RedFlags {
		lines = append(lines, "• 🔴 "+flag)
	}

	if len(report.RiskKeywords) > 0 {
		lines = append(lines, fmt.Sprintf("• Risk keywords found: %d", len(report.RiskKeywords)))
	}

	return strings.Join(lines, "\n")
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func firstN(list []string, n int) []string {
	if len(list) <= n {
		return list
	}
	return list[:n]
}

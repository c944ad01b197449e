package ingestion

import (
	"regexp"
	"sort"
	"strings"

	prose "github.com/jdkato/prose/v2"

	"github.com/finsight/backend/internal/fintools"
)

var (
	filingDatePattern    = regexp.MustCompile(`\b(?:\d{4}-\d{2}-\d{2}|[A-Z][a-z]{2,8} \d{1,2}, \d{4})\b`)
	fiscalQuarterPattern = regexp.MustCompile(`(?i)Q[1-4]\s*20\d{2}`)
	fiscalYearPattern    = regexp.MustCompile(`(?i)(?:FY|fiscal\s*year)\s*20\d{2}`)
	yearEndedPattern     = regexp.MustCompile(`(?i)(?:year|twelve months)\s+ended\s+\w+\s+\d{1,2},?\s+(20\d{2})`)
)

// entityStopwords drops generic capitalized tokens the tagger tends to
// pick up in filings.
var entityStopwords = map[string]bool{
	"The": true, "This": true, "That": true, "Company": true,
	"December": true, "January": true, "February": true, "March": true,
	"Item": true, "Part": true, "Form": true, "Annual": true,
	"Report": true, "United": true, "States": true,
}

// ClassifyFormType identifies the SEC form from the document text.
func ClassifyFormType(text string) string {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "10-k") || strings.Contains(lower, "annual report"):
		return "10-K"
	case strings.Contains(lower, "10-q") || strings.Contains(lower, "quarterly report"):
		return "10-Q"
	case strings.Contains(lower, "8-k") || strings.Contains(lower, "current report"):
		return "8-K"
	case strings.Contains(lower, "def 14a") || strings.Contains(lower, "proxy"):
		return "DEF 14A"
	default:
		return "UNKNOWN"
	}
}

// ClassifySection labels one chunk by the filing section it most likely
// belongs to.
func ClassifySection(text string) string {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "risk factor") || strings.Contains(lower, "risks"):
		return "risk_factors"
	case strings.Contains(lower, "management discussion") || strings.Contains(lower, "md&a") ||
		strings.Contains(lower, "management's discussion"):
		return "mda"
	case strings.Contains(lower, "financial statement") || strings.Contains(lower, "balance sheet") ||
		strings.Contains(lower, "income statement"):
		return "financial_statements"
	case strings.Contains(lower, "notes to") || strings.Contains(lower, "footnote"):
		return "financial_notes"
	case strings.Contains(lower, "business overview") || strings.Contains(lower, "description of business"):
		return "business"
	case strings.Contains(lower, "forward-looking") || strings.Contains(lower, "outlook") ||
		strings.Contains(lower, "guidance"):
		return "forward_looking"
	default:
		return "general"
	}
}

// ExtractFilingDate returns the first date-looking string in the text,
// e.g. "2024-02-15" or "February 15, 2024".
func ExtractFilingDate(text string) string {
	return filingDatePattern.FindString(text)
}

// ExtractFiscalPeriod returns a normalized period like "Q4 2024" or
// "FY 2024", preferring quarter references over fiscal-year ones.
func ExtractFiscalPeriod(text string) string {
	if m := fiscalQuarterPattern.FindString(text); m != "" {
		return strings.ToUpper(regexp.MustCompile(`\s+`).ReplaceAllString(m, " "))
	}
	if m := fiscalYearPattern.FindString(text); m != "" {
		return strings.ToUpper(m)
	}
	if m := yearEndedPattern.FindStringSubmatch(text); m != nil {
		return "FY " + m[1]
	}
	if periods := fintools.ExtractFiscalPeriods(text); len(periods) > 0 {
		return periods[0]
	}
	return ""
}

// ExtractCompany picks the most frequently named entity in the text. The
// tagger has no ORG label, so organization names surface as PERSON or GPE
// spans; frequency plus the stopword filter does the disambiguation.
func ExtractCompany(text string) string {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return ""
	}

	counts := make(map[string]int)
	for _, ent := range doc.Entities() {
		name := strings.TrimSpace(ent.Text)
		if name == "" || entityStopwords[name] || len(name) < 2 {
			continue
		}
		counts[name]++
	}

	if len(counts) == 0 {
		return ""
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	return names[0]
}

package fintools

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Deterministic signal extraction over filing text. Every function here is
// pure: same text in, same results out, in the same order.

type DollarAmount struct {
	Value     float64
	Formatted string
	Context   string
}

type Percentage struct {
	Value     float64
	Formatted string
	Context   string
}

type Profitability struct {
	Status           string
	Assessment       string
	LossIndicators   []string
	ProfitIndicators []string
}

type HealthReport struct {
	Profitability Profitability
	RiskKeywords  []string
	RedFlags      []string
	HealthScore   int
	FiscalPeriods []string
	AmountsFound  int
}

const (
	StatusProfitable   = "PROFITABLE"
	StatusUnprofitable = "UNPROFITABLE"
	StatusMixed        = "MIXED"
	StatusUnknown      = "UNKNOWN"
)

var (
	dollarPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\$\s*([\d,]+(?:\.\d+)?)\s*(million|billion|thousand)?`),
		regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?)\s*(million|billion|thousand)?\s*(?:dollars|\$)`),
	}

	percentPattern = regexp.MustCompile(`([-+]?\d+(?:\.\d+)?)\s*%`)

	fiscalPeriodPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Q[1-4]\s*20\d{2}`),
		regexp.MustCompile(`(?i)(?:FY|fiscal year)\s*20\d{2}`),
		regexp.MustCompile(`(?i)(?:first|second|third|fourth)\s+quarter\s+(?:of\s+)?20\d{2}`),
		regexp.MustCompile(`(?i)(?:year|twelve months)\s+ended\s+\w+\s+\d{1,2},?\s+20\d{2}`),
		regexp.MustCompile(`(?i)(?:three|six|nine|twelve)\s+months\s+ended`),
	}

	lossIndicators = []string{
		"net loss", "operating loss", "loss from operations",
		"accumulated deficit", "negative cash flow",
	}

	profitIndicators = []string{
		"net income", "net profit", "operating income",
		"positive cash flow", "profitable",
	}

	riskVocabulary = []string{
		"risk", "uncertainty", "challenge", "competition",
		"regulatory", "compliance", "litigation", "lawsuit",
		"debt", "leverage", "liquidity", "going concern",
		"material weakness", "impairment", "restructuring",
		"concentration", "dependency", "cybersecurity",
		"volatility", "inflation", "recession", "downturn",
	}

	usd = message.NewPrinter(language.English)
)

// contextWindow clips 50 characters on each side of a match.
func contextWindow(text string, start, end int) string {
	from := start - 50
	if from < 0 {
		from = 0
	}
	to := end + 50
	if to > len(text) {
		to = len(text)
	}
	return strings.TrimSpace(text[from:to])
}

func ExtractDollarAmounts(text string) []DollarAmount {
	var results []DollarAmount

	for _, pattern := range dollarPatterns {
		matches := pattern.FindAllStringSubmatchIndex(text, -1)
		for _, m := range matches {
			amountStr := strings.ReplaceAll(text[m[2]:m[3]], ",", "")

			amount, err := strconv.ParseFloat(amountStr, 64)
			if err != nil {
				continue
			}

			multiplier := ""
			if m[4] >= 0 {
				multiplier = strings.ToLower(text[m[4]:m[5]])
			}

			switch multiplier {
			case "billion":
				amount *= 1_000_000_000
			case "million":
				amount *= 1_000_000
			case "thousand":
				amount *= 1_000
			}

			results = append(results, DollarAmount{
				Value:     amount,
				Formatted: usd.Sprintf("$%.2f", amount),
				Context:   contextWindow(text, m[0], m[1]),
			})
		}
	}

	return results
}

func ExtractPercentages(text string) []Percentage {
	var results []Percentage

	for _, m := range percentPattern.FindAllStringSubmatchIndex(text, -1) {
		value, err := strconv.ParseFloat(text[m[2]:m[3]], 64)
		if err != nil {
			continue
		}

		formatted := fmt.Sprintf("%.2f%%", value)
		if value >= 0 {
			formatted = fmt.Sprintf("%+.2f%%", value)
		}

		results = append(results, Percentage{
			Value:     value,
			Formatted: formatted,
			Context:   contextWindow(text, m[0], m[1]),
		})
	}

	return results
}

func ExtractFiscalPeriods(text string) []string {
	seen := make(map[string]bool)
	var results []string

	for _, pattern := range fiscalPeriodPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			if !seen[match] {
				seen[match] = true
				results = append(results, match)
			}
		}
	}

	return results
}

func AnalyzeProfitability(text string) Profitability {
	lower := strings.ToLower(text)

	var losses, profits []string
	for _, ind := range lossIndicators {
		if strings.Contains(lower, ind) {
			losses = append(losses, ind)
		}
	}
	for _, ind := range profitIndicators {
		if strings.Contains(lower, ind) {
			profits = append(profits, ind)
		}
	}

	var status, assessment string
	switch {
	case len(losses) > 0 && len(profits) == 0:
		status = StatusUnprofitable
		assessment = "Company is reporting losses"
	case len(profits) > 0 && len(losses) == 0:
		status = StatusProfitable
		assessment = "Company is reporting profits"
	case len(losses) > 0 && len(profits) > 0:
		status = StatusMixed
		assessment = "Company has both profitable and unprofitable segments/periods"
	default:
		status = StatusUnknown
		assessment = "Profitability status unclear from text"
	}

	return Profitability{
		Status:           status,
		Assessment:       assessment,
		LossIndicators:   losses,
		ProfitIndicators: profits,
	}
}

// ExtractRiskKeywords returns the matched subset of the risk vocabulary, in
// vocabulary order.
func ExtractRiskKeywords(text string) []string {
	lower := strings.ToLower(text)

	var found []string
	for _, kw := range riskVocabulary {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}

	return found
}

func AnalyzeFinancialHealth(text string) HealthReport {
	profitability := AnalyzeProfitability(text)
	risks := ExtractRiskKeywords(text)
	amounts := ExtractDollarAmounts(text)
	periods := ExtractFiscalPeriods(text)

	var redFlags []string
	if profitability.Status == StatusUnprofitable {
		redFlags = append(redFlags, "Company reporting losses")
	}
	if containsString(risks, "going concern") {
		redFlags = append(redFlags, "Going concern warning")
	}
	if containsString(risks, "material weakness") {
		redFlags = append(redFlags, "Material weakness in controls")
	}
	if len(risks) > 5 {
		redFlags = append(redFlags, "Multiple risk factors identified")
	}

	score := 100
	score -= len(redFlags) * 20
	score -= len(risks) * 2
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return HealthReport{
		Profitability: profitability,
		RiskKeywords:  risks,
		RedFlags:      redFlags,
		HealthScore:   score,
		FiscalPeriods: periods,
		AmountsFound:  len(amounts),
	}
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}

package assess

import (
	"strings"
	"sync"
)

type Complexity string

const (
	ComplexitySimple    Complexity = "simple"
	ComplexityModerate  Complexity = "moderate"
	ComplexityComplex   Complexity = "complex"
	ComplexityUncertain Complexity = "uncertain"
)

type Confidence string

const (
	ConfidenceHigh      Confidence = "high"
	ConfidenceMedium    Confidence = "medium"
	ConfidenceLow       Confidence = "low"
	ConfidenceUncertain Confidence = "uncertain"
)

type Assessment struct {
	Complexity            Complexity
	NeedsClarification    bool
	ClarificationQuestion string
	InferenceRequired     bool
}

type ClarificationRequest struct {
	Message       string
	OriginalQuery string
}

type FeedbackEntry struct {
	Query    string
	Answer   string
	Feedback string
	Rating   int
}

// Assessor classifies queries and scores answer confidence using fixed
// keyword decision tables. The rules are evaluated top to bottom; order is
// part of the contract (time-reference clarification wins over vagueness,
// uncertainty phrases win over numeric richness).
type Assessor struct {
	mu       sync.Mutex
	feedback []FeedbackEntry
}

var complexPatterns = []string{
	"what does", "what do you think",
	"what can we infer", "what conclusions",
	"why did", "why does", "why is",
	"what's the implication", "implications of",
	"how will", "how might", "how could",
	"should the company", "what strategy",
	"compare and contrast", "analyze the relationship",
	"what's your assessment", "evaluate",
	"predict", "forecast", "expect",
}

var moderatePatterns = []string{
	"how did", "how does",
	"what caused", "what led to",
	"explain", "describe",
	"summarize", "overview",
	"what are the main", "key",
	"compare", "versus", "vs",
}

var relativeTimeWords = []string{"last year", "this year", "recent"}

var vagueIndicators = []string{"tell me about", "what about", "anything on"}

var uncertaintyPhrases = []string{
	"not found", "could not find", "no information",
	"unclear", "uncertain", "may", "might", "possibly",
}

var yearTokens = []string{
	"2020", "2021", "2022", "2023", "2024",
	"2025", "2026", "2027", "2028", "2029",
}

func New() *Assessor {
	return &Assessor{}
}

func (a *Assessor) AssessQuestion(query string) Assessment {
	lower := strings.ToLower(query)

	assessment := Assessment{Complexity: ComplexitySimple}

	if containsAny(lower, complexPatterns) {
		assessment.Complexity = ComplexityComplex
		assessment.InferenceRequired = true
	} else if containsAny(lower, moderatePatterns) {
		assessment.Complexity = ComplexityModerate
	}

	// Time-reference check first; the vague check never overrides it.
	if containsAny(lower, relativeTimeWords) && !containsAny(query, yearTokens) {
		assessment.NeedsClarification = true
		assessment.ClarificationQuestion = "Which specific year or period are you asking about?"
	}

	if !assessment.NeedsClarification &&
		containsAny(lower, vagueIndicators) && len(strings.Fields(query)) < 5 {
		assessment.NeedsClarification = true
		assessment.ClarificationQuestion = "Could you be more specific? What aspect would you like to know about?"
	}

	return assessment
}

func (a *Assessor) AssessAnswerConfidence(query, answer string, passages []string) Confidence {
	if len(passages) == 0 {
		return ConfidenceUncertain
	}

	lower := strings.ToLower(answer)
	if containsAny(lower, uncertaintyPhrases) {
		return ConfidenceLow
	}

	hasDigit := strings.ContainsAny(answer, "0123456789")
	hasDollar := strings.Contains(answer, "$")
	hasPercent := strings.Contains(answer, "%")

	switch {
	case hasDigit && hasDollar:
		return ConfidenceHigh
	case hasDigit || hasDollar || hasPercent:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func (a *Assessor) ClarificationRequest(assessment Assessment, query string) (ClarificationRequest, bool) {
	if !assessment.NeedsClarification {
		return ClarificationRequest{}, false
	}

	message := assessment.ClarificationQuestion
	if message == "" {
		message = "Could you provide more details?"
	}

	return ClarificationRequest{Message: message, OriginalQuery: query}, true
}

func FormatConfidenceIndicator(confidence Confidence) string {
	switch confidence {
	case ConfidenceHigh:
		return "🟢 High confidence - Based on specific data from the filing"
	case ConfidenceMedium:
		return "🟡 Medium confidence - Based on available information"
	case ConfidenceLow:
		return "🟠 Lower confidence - Some inference required"
	case ConfidenceUncertain:
		return "🔴 Uncertain - Limited data available"
	default:
		return ""
	}
}

func (a *Assessor) RecordFeedback(query, answer, feedback string, rating int) {
	// Cut on a rune boundary; answers carry confidence markers and
	// typographic punctuation that span multiple bytes.
	if runes := []rune(answer); len(runes) > 500 {
		answer = string(runes[:500])
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.feedback = append(a.feedback, FeedbackEntry{
		Query:    query,
		Answer:   answer,
		Feedback: feedback,
		Rating:   rating,
	})
}

func (a *Assessor) FeedbackHistory() []FeedbackEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]FeedbackEntry, len(a.feedback))
	copy(out, a.feedback)
	return out
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

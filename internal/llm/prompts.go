package llm

import (
	_ "embed"
	"strconv"
	"strings"
)

var (
	//go:embed prompts/query.txt
	queryPrompt string
	//go:embed prompts/clause_extract.txt
	clauseExtractPrompt string
	//go:embed prompts/clause_analyze.txt
	clauseAnalyzePrompt string
	//go:embed prompts/feedback_analysis.txt
	feedbackAnalysisPrompt string
	//go:embed prompts/feedback_suggestions.txt
	feedbackSuggestionsPrompt string
	//go:embed prompts/admin_recommendations.txt
	adminRecommendationsPrompt string
)

const (
	QueryTextLimit  = 12000
	ClauseTextLimit = 8000
)

var queryFocus = map[string]string{
	"general":   "general understanding and overview",
	"legal":     "legal implications and compliance",
	"technical": "technical details and specifications",
	"summary":   "summary and key points",
	"specific":  "specific information and details",
}

var clauseFocus = map[string]string{
	"all":         "all types of clauses including legal, contractual, procedural, and policy clauses",
	"legal":       "legal clauses such as liability, indemnification, governing law, dispute resolution",
	"contractual": "contractual clauses such as terms, conditions, obligations, rights",
	"procedural":  "procedural clauses such as processes, steps, requirements, procedures",
	"policy":      "policy clauses such as rules, guidelines, standards, policies",
}

var analysisFocus = map[string]string{
	"comprehensive": "comprehensive analysis including legal implications, risks, and recommendations",
	"legal":         "legal analysis focusing on legal implications and compliance",
	"risk":          "risk analysis identifying potential risks and mitigation strategies",
	"summary":       "summary analysis providing key points and implications",
}

// Truncate keeps the first limit runes of text and marks the cut with "...".
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + " ..."
}

// QueryPrompt renders the document question prompt. Unknown contexts fall back to general.
func QueryPrompt(title, text, question, context, language string) string {
	focus, ok := queryFocus[context]
	if !ok {
		focus = queryFocus["general"]
	}
	return strings.NewReplacer(
		"{{DOCUMENT_TITLE}}", title,
		"{{CONTEXT_FOCUS}}", focus,
		"{{DOCUMENT_TEXT}}", Truncate(text, QueryTextLimit),
		"{{QUESTION}}", question,
		"{{LANGUAGE}}", language,
	).Replace(queryPrompt)
}

// ClauseExtractionPrompt renders the clause extraction prompt.
func ClauseExtractionPrompt(text, clauseTypes, language string) string {
	focus, ok := clauseFocus[clauseTypes]
	if !ok {
		focus = clauseFocus["all"]
	}
	return strings.NewReplacer(
		"{{CLAUSE_FOCUS}}", focus,
		"{{DOCUMENT_TEXT}}", Truncate(text, ClauseTextLimit),
		"{{LANGUAGE}}", language,
	).Replace(clauseExtractPrompt)
}

// ClauseAnalysisPrompt renders the prompt for analysing one stored extraction.
func ClauseAnalysisPrompt(clauseJSON, analysisType, analyzedAt string) string {
	focus, ok := analysisFocus[analysisType]
	if !ok {
		focus = analysisFocus["comprehensive"]
	}
	return strings.NewReplacer(
		"{{ANALYSIS_FOCUS}}", focus,
		"{{CLAUSE_DATA}}", clauseJSON,
		"{{ANALYSIS_TYPE}}", analysisType,
		"{{ANALYZED_AT}}", analyzedAt,
	).Replace(clauseAnalyzePrompt)
}

// IsAnalysisType reports whether t is a supported clause analysis type.
func IsAnalysisType(t string) bool {
	_, ok := analysisFocus[t]
	return ok
}

// FeedbackAnalysisPrompt renders the prompt used after query feedback is saved.
func FeedbackAnalysisPrompt(question, answer string, rating int, feedback string) string {
	return strings.NewReplacer(
		"{{QUESTION}}", question,
		"{{ANSWER}}", answer,
		"{{RATING}}", strconv.Itoa(rating),
		"{{FEEDBACK}}", feedback,
	).Replace(feedbackAnalysisPrompt)
}

// FeedbackSuggestionsPrompt renders the improvement prompt over low-rated feedback lines.
func FeedbackSuggestionsPrompt(feedbackType string, lines []string) string {
	return strings.NewReplacer(
		"{{FEEDBACK_TYPE}}", feedbackType,
		"{{FEEDBACK_LINES}}", strings.Join(lines, "\n"),
	).Replace(feedbackSuggestionsPrompt)
}

// AdminRecommendationsPrompt renders the admin recommendation prompt.
func AdminRecommendationsPrompt(focus, systemJSON string) string {
	return strings.NewReplacer(
		"{{FOCUS}}", focus,
		"{{SYSTEM_DATA}}", systemJSON,
	).Replace(adminRecommendationsPrompt)
}

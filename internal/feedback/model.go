package feedback

import (
	"encoding/json"
	"time"
)

// Kinds name the three feedback tables and double as the ?type= values.
const (
	KindQueries   = "queries"
	KindClauses   = "clauses"
	KindDocuments = "documents"
	KindAll       = "all"

	DefaultFeedbackType = "general"
	DefaultAspect       = "overall"

	minQueryFeedbackLen = 10
	suggestionSample    = 10
	lowRatingThreshold  = 3
)

var Kinds = []string{KindQueries, KindClauses, KindDocuments}

// Feedback is one rating on a query answer, a clause extraction or a
// document. TargetID points at the row of the matching kind. Rows are
// append-only apart from AIAnalysis, which is filled in after the save.
type Feedback struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	TargetID     string          `json:"target_id"`
	UserID       string          `json:"user_id"`
	Rating       int             `json:"rating"`
	Feedback     string          `json:"feedback"`
	FeedbackType string          `json:"feedback_type,omitempty"`
	Aspect       string          `json:"aspect,omitempty"`
	Accuracy     *int            `json:"accuracy,omitempty"`
	Relevance    *int            `json:"relevance,omitempty"`
	Completeness *int            `json:"completeness,omitempty"`
	AIAnalysis   json.RawMessage `json:"ai_analysis,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Analysis is the model's reading of one piece of query feedback.
type Analysis struct {
	Sentiment        string   `json:"sentiment"`
	KeyIssues        []string `json:"key_issues"`
	ImprovementAreas []string `json:"improvement_areas"`
	Suggestions      []string `json:"suggestions"`
	Confidence       float64  `json:"confidence"`
}

// Suggestions is the model's summary of recent low-rated feedback.
type Suggestions struct {
	CommonIssues          []string `json:"common_issues"`
	ImprovementPriorities []string `json:"improvement_priorities"`
	SpecificSuggestions   []string `json:"specific_suggestions"`
	SystemRecommendations []string `json:"system_recommendations"`
}

func isKind(k string) bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

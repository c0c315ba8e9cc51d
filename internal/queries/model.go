package queries

import "time"

// Contexts lists the accepted question focuses.
var Contexts = []string{"general", "legal", "technical", "summary", "specific"}

const (
	DefaultContext    = "general"
	DefaultLanguage   = "en"
	DefaultConfidence = 0.8
	minQuestionLen    = 3
)

// Query is one answered question about a document. Rows are append-only.
type Query struct {
	ID                string    `json:"id"`
	DocumentID        string    `json:"document_id"`
	UserID            string    `json:"user_id"`
	Question          string    `json:"question"`
	Answer            string    `json:"answer"`
	Context           string    `json:"context"`
	Language          string    `json:"language"`
	Confidence        float64   `json:"confidence"`
	Sources           []any     `json:"sources"`
	KeyPoints         []string  `json:"key_points"`
	FollowUpQuestions []string  `json:"follow_up_questions"`
	Summary           string    `json:"summary"`
	CreatedAt         time.Time `json:"created_at"`
}

// details is the JSON column holding the structured parts of an answer.
type details struct {
	Sources           []any    `json:"sources"`
	KeyPoints         []string `json:"key_points"`
	FollowUpQuestions []string `json:"follow_up_questions"`
	Summary           string   `json:"summary"`
}

func (q Query) details() details {
	return details{Sources: q.Sources, KeyPoints: q.KeyPoints, FollowUpQuestions: q.FollowUpQuestions, Summary: q.Summary}
}

func (q *Query) applyDetails(d details) {
	q.Sources = d.Sources
	q.KeyPoints = d.KeyPoints
	q.FollowUpQuestions = d.FollowUpQuestions
	q.Summary = d.Summary
}

func isValidContext(c string) bool {
	for _, v := range Contexts {
		if v == c {
			return true
		}
	}
	return false
}

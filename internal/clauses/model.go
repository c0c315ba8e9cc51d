package clauses

import (
	"encoding/json"
	"time"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"

	DefaultClauseTypes  = "all"
	DefaultLanguage     = "en"
	DefaultAnalysisType = "comprehensive"
	minSearchLen        = 2
)

// Extraction is one stored run of clause extraction over a document.
// ExtractedData holds the model's JSON object verbatim, or an {"error": ...}
// object when the reply could not be parsed.
type Extraction struct {
	ID               string          `json:"id"`
	DocumentID       string          `json:"document_id"`
	UserID           string          `json:"user_id"`
	ClauseTypes      string          `json:"clause_types"`
	Language         string          `json:"language"`
	ExtractedData    json.RawMessage `json:"extracted_data"`
	ExtractionStatus string          `json:"extraction_status"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Clause is the shape of one entry in the model's "clauses" array. Only the
// fields used for search are typed.
type Clause struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// clauses decodes the "clauses" array, returning nil when it is absent or
// not an array.
func (e Extraction) clauses() []Clause {
	var body struct {
		Clauses []Clause `json:"clauses"`
	}
	if err := json.Unmarshal(e.ExtractedData, &body); err != nil {
		return nil
	}
	return body.Clauses
}

// Tally is a count of extractions sharing clause types and status.
type Tally struct {
	ClauseTypes string
	Status      string
	Count       int
}

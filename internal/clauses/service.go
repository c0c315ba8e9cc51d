package clauses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/llm"
	"legaldocs-backend/internal/shared/metrics"
	"legaldocs-backend/internal/shared/telemetry"
	"legaldocs-backend/internal/shared/util"
)

// Request is the input to Extract.
type Request struct {
	ClauseTypes string
	Language    string
}

// Metadata describes one extraction run.
type Metadata struct {
	ClauseTypes    string    `json:"clause_types"`
	Language       string    `json:"language"`
	TotalClauses   int       `json:"total_clauses"`
	ExtractionDate time.Time `json:"extraction_date"`
}

// Result is returned by Extract. Clauses carries the model's object, or an
// {"error": ...} object when the reply could not be parsed.
type Result struct {
	DocumentID         string          `json:"document_id"`
	DocumentTitle      string          `json:"document_title"`
	Clauses            json.RawMessage `json:"clauses"`
	ExtractionMetadata Metadata        `json:"extraction_metadata"`
	ExtractionID       *string         `json:"extraction_id"`
}

// Analysis is returned by Analyze.
type Analysis struct {
	ClauseID     string          `json:"clause_id"`
	AnalysisType string          `json:"analysis_type"`
	Analysis     json.RawMessage `json:"analysis"`
	AnalyzedAt   time.Time       `json:"analyzed_at"`
}

// Entry is an extraction joined with its document.
type Entry struct {
	Extraction
	DocumentTitle    string `json:"document_title,omitempty"`
	DocumentFileName string `json:"document_file_name,omitempty"`
}

type Statistics struct {
	TotalClauses    int            `json:"total_clauses"`
	TypeBreakdown   map[string]int `json:"type_breakdown"`
	StatusBreakdown map[string]int `json:"status_breakdown"`
	SuccessRate     string         `json:"success_rate"`
}

type Service struct {
	Repo Repo
	Docs documents.Repo
	AI   llm.Client
	now  func() time.Time
}

func NewService(repo Repo, docs documents.Repo, ai llm.Client) *Service {
	if ai == nil {
		ai = llm.Unconfigured{}
	}
	return &Service{Repo: repo, Docs: docs, AI: ai, now: time.Now}
}

// Extract runs clause extraction over a completed document and stores the
// outcome. A failed store is logged and the result still returned.
func (s *Service) Extract(ctx context.Context, userID, documentID string, in Request) (Result, error) {
	in.ClauseTypes = strings.TrimSpace(in.ClauseTypes)
	if in.ClauseTypes == "" {
		in.ClauseTypes = DefaultClauseTypes
	}
	in.Language = strings.TrimSpace(in.Language)
	if in.Language == "" {
		in.Language = DefaultLanguage
	}

	doc, err := s.Docs.Get(ctx, userID, documentID)
	if err != nil {
		return Result{}, err
	}
	if !doc.IsReady() {
		return Result{}, ErrNotReady
	}
	if !documents.SupportsAnalysis(doc.FileType) {
		return Result{}, ErrUnsupportedType
	}
	text, err := s.Docs.ExtractedText(ctx, doc.ID)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrNoText
	}

	raw, err := s.AI.Generate(ctx, llm.ClauseExtractionPrompt(text, in.ClauseTypes, in.Language))
	if errors.Is(err, llm.ErrEmptyReply) {
		raw, err = "", nil
	}
	if err != nil {
		return Result{}, aiError(err)
	}
	metrics.IncClauseExtractions()

	data, parsed := parseObject(raw, "Could not parse response")
	status := StatusCompleted
	if !parsed {
		status = StatusFailed
	}
	now := s.now().UTC()
	e := Extraction{
		ID:               uuid.NewString(),
		DocumentID:       doc.ID,
		UserID:           userID,
		ClauseTypes:      in.ClauseTypes,
		Language:         in.Language,
		ExtractedData:    data,
		ExtractionStatus: status,
		CreatedAt:        now,
	}
	out := Result{
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		Clauses:       data,
		ExtractionMetadata: Metadata{
			ClauseTypes:    in.ClauseTypes,
			Language:       in.Language,
			TotalClauses:   len(e.clauses()),
			ExtractionDate: now,
		},
	}
	if err := s.Repo.Create(ctx, e); err != nil {
		telemetry.Warn("clauses.persist_failed", map[string]any{
			"document_id": doc.ID,
			"user_id":     userID,
			"error":       err.Error(),
		})
		return out, nil
	}
	out.ExtractionID = &e.ID
	return out, nil
}

// parseObject pulls the outermost JSON object out of a model reply. When
// that fails it returns an {"error": ...} object and false.
func parseObject(raw, noJSONMessage string) (json.RawMessage, bool) {
	var data json.RawMessage
	err := llm.DecodeJSON(raw, &data)
	switch {
	case errors.Is(err, llm.ErrNoJSON):
		return errorObject(noJSONMessage), false
	case err != nil:
		return errorObject("Invalid JSON response"), false
	}
	return data, true
}

func errorObject(msg string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return b
}

func aiError(err error) error {
	if errors.Is(err, llm.ErrNotConfigured) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrAI, err)
}

// ForDocument lists the user's extractions for one document, newest first.
func (s *Service) ForDocument(ctx context.Context, userID, documentID string) ([]Extraction, error) {
	rows, _, err := s.Repo.List(ctx, ListFilter{UserID: userID, DocumentID: documentID})
	return rows, err
}

// Analyze asks the model to analyse a stored extraction.
func (s *Service) Analyze(ctx context.Context, userID, clauseID, analysisType string) (Analysis, error) {
	analysisType = strings.TrimSpace(analysisType)
	if analysisType == "" {
		analysisType = DefaultAnalysisType
	}
	if !llm.IsAnalysisType(analysisType) {
		return Analysis{}, ErrInvalidAnalysisType
	}
	e, err := s.Repo.Get(ctx, userID, clauseID)
	if err != nil {
		return Analysis{}, err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, e.ExtractedData, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(e.ExtractedData)
	}
	now := s.now().UTC()
	raw, err := s.AI.Generate(ctx, llm.ClauseAnalysisPrompt(pretty.String(), analysisType, now.Format(time.RFC3339)))
	if errors.Is(err, llm.ErrEmptyReply) {
		raw, err = "", nil
	}
	if err != nil {
		return Analysis{}, aiError(err)
	}
	data, _ := parseObject(raw, "Could not parse analysis response")
	return Analysis{ClauseID: e.ID, AnalysisType: analysisType, Analysis: data, AnalyzedAt: now}, nil
}

// Search finds extractions whose clauses mention term in a title or text.
func (s *Service) Search(ctx context.Context, userID, term string, filter ListFilter) ([]Entry, int, error) {
	term = strings.TrimSpace(term)
	if len([]rune(term)) < minSearchLen {
		return nil, 0, ErrSearchTerm
	}
	filter.UserID = userID
	filter.Search = term
	rows, total, err := s.Repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	docs := map[string]documents.Document{}
	if len(rows) > 0 {
		ids := util.Unique(rows, func(e Extraction) string { return e.DocumentID })
		list, _, err := s.Docs.List(ctx, documents.ListFilter{UserID: userID, IDs: ids})
		if err != nil {
			return nil, 0, err
		}
		for _, d := range list {
			docs[d.ID] = d
		}
	}
	out := make([]Entry, 0, len(rows))
	for _, e := range rows {
		entry := Entry{Extraction: e}
		if d, ok := docs[e.DocumentID]; ok {
			entry.DocumentTitle = d.Title
			entry.DocumentFileName = d.FileName
		}
		out = append(out, entry)
	}
	return out, total, nil
}

// Statistics summarises the user's extractions.
func (s *Service) Statistics(ctx context.Context, userID string) (Statistics, error) {
	tallies, err := s.Repo.Tally(ctx, userID)
	if err != nil {
		return Statistics{}, err
	}
	return statisticsFrom(tallies), nil
}

func statisticsFrom(tallies []Tally) Statistics {
	st := Statistics{TypeBreakdown: map[string]int{}, StatusBreakdown: map[string]int{}}
	for _, t := range tallies {
		st.TotalClauses += t.Count
		st.TypeBreakdown[t.ClauseTypes] += t.Count
		st.StatusBreakdown[t.Status] += t.Count
	}
	st.SuccessRate = util.Fixed(util.Percent(st.StatusBreakdown[StatusCompleted], st.TotalClauses), 1)
	return st
}

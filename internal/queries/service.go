package queries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/llm"
	"legaldocs-backend/internal/shared/metrics"
	"legaldocs-backend/internal/shared/telemetry"
)

const (
	rawAnswerConfidence     = 0.7
	invalidJSONConfidence   = 0.5
	fallbackSummaryRuneSize = 200
)

// Question is the input to Ask.
type Question struct {
	Question string
	Context  string
	Language string
}

// Answer is the result of one question against a document.
type Answer struct {
	DocumentID        string    `json:"document_id"`
	DocumentTitle     string    `json:"document_title"`
	Question          string    `json:"question"`
	Answer            string    `json:"answer"`
	Confidence        float64   `json:"confidence"`
	Sources           []any     `json:"sources"`
	KeyPoints         []string  `json:"key_points"`
	FollowUpQuestions []string  `json:"follow_up_questions"`
	Summary           string    `json:"summary"`
	Context           string    `json:"context"`
	Language          string    `json:"language"`
	QueryID           *string   `json:"query_id"`
	Timestamp         time.Time `json:"timestamp"`
}

// modelAnswer is the JSON shape the model is asked to produce.
type modelAnswer struct {
	Answer            string   `json:"answer"`
	Confidence        *float64 `json:"confidence"`
	Sources           []any    `json:"sources"`
	KeyPoints         []string `json:"key_points"`
	FollowUpQuestions []string `json:"follow_up_questions"`
	Summary           string   `json:"summary"`
}

// Entry is a stored query joined with the title of its document.
type Entry struct {
	Query
	DocumentTitle    string `json:"document_title,omitempty"`
	DocumentFileName string `json:"document_file_name,omitempty"`
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

// Ask answers a question about one of the user's documents. Every check on
// the document runs before the model is called.
func (s *Service) Ask(ctx context.Context, userID, documentID string, in Question) (Answer, error) {
	in, err := in.normalize()
	if err != nil {
		return Answer{}, err
	}
	doc, err := s.Docs.Get(ctx, userID, documentID)
	if err != nil {
		return Answer{}, err
	}
	if !doc.IsReady() {
		return Answer{}, ErrNotReady
	}
	if !documents.SupportsAnalysis(doc.FileType) {
		return Answer{}, ErrUnsupportedType
	}
	text, err := s.Docs.ExtractedText(ctx, doc.ID)
	if err != nil {
		return Answer{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Answer{}, ErrNoText
	}

	raw, err := s.AI.Generate(ctx, llm.QueryPrompt(doc.Title, text, in.Question, in.Context, in.Language))
	if errors.Is(err, llm.ErrEmptyReply) {
		raw, err = "", nil
	}
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return Answer{}, err
		}
		return Answer{}, fmt.Errorf("%w: %v", ErrAI, err)
	}
	metrics.IncQueries()

	parsed := parseAnswer(raw)
	now := s.now().UTC()
	q := Query{
		ID:                uuid.NewString(),
		DocumentID:        doc.ID,
		UserID:            userID,
		Question:          in.Question,
		Answer:            parsed.Answer,
		Context:           in.Context,
		Language:          in.Language,
		Confidence:        parsed.confidence(),
		Sources:           parsed.Sources,
		KeyPoints:         parsed.KeyPoints,
		FollowUpQuestions: parsed.FollowUpQuestions,
		Summary:           parsed.Summary,
		CreatedAt:         now,
	}

	out := Answer{
		DocumentID:        doc.ID,
		DocumentTitle:     doc.Title,
		Question:          q.Question,
		Answer:            q.Answer,
		Confidence:        q.Confidence,
		Sources:           orEmpty(q.Sources),
		KeyPoints:         orEmpty(q.KeyPoints),
		FollowUpQuestions: orEmpty(q.FollowUpQuestions),
		Summary:           q.Summary,
		Context:           q.Context,
		Language:          q.Language,
		Timestamp:         now,
	}
	if err := s.Repo.Create(ctx, q); err != nil {
		telemetry.Warn("query.persist_failed", map[string]any{
			"document_id": doc.ID,
			"user_id":     userID,
			"error":       err.Error(),
		})
		return out, nil
	}
	out.QueryID = &q.ID
	return out, nil
}

func (in Question) normalize() (Question, error) {
	in.Question = strings.TrimSpace(in.Question)
	if len([]rune(in.Question)) < minQuestionLen {
		return in, ErrQuestionTooShort
	}
	in.Context = strings.TrimSpace(in.Context)
	if in.Context == "" {
		in.Context = DefaultContext
	}
	if !isValidContext(in.Context) {
		return in, ErrInvalidContext
	}
	in.Language = strings.TrimSpace(in.Language)
	if in.Language == "" {
		in.Language = DefaultLanguage
	}
	return in, nil
}

// parseAnswer turns a model reply into an answer. Replies without a JSON
// object are returned verbatim; malformed JSON keeps the raw text with a
// lower confidence.
func parseAnswer(raw string) modelAnswer {
	var m modelAnswer
	err := llm.DecodeJSON(raw, &m)
	switch {
	case errors.Is(err, llm.ErrNoJSON):
		c := rawAnswerConfidence
		return modelAnswer{Answer: raw, Confidence: &c, Summary: summarize(raw)}
	case err != nil:
		c := invalidJSONConfidence
		return modelAnswer{Answer: raw, Confidence: &c, Summary: summarize(raw)}
	}
	if strings.TrimSpace(m.Answer) == "" {
		m.Answer = raw
	}
	return m
}

func (m modelAnswer) confidence() float64 {
	if m.Confidence == nil {
		return DefaultConfidence
	}
	return min(max(*m.Confidence, 0), 1)
}

func summarize(raw string) string {
	runes := []rune(raw)
	if len(runes) > fallbackSummaryRuneSize {
		runes = runes[:fallbackSummaryRuneSize]
	}
	return string(runes) + "..."
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// History lists the user's queries on one document, newest first.
func (s *Service) History(ctx context.Context, userID, documentID string, limit, offset int) ([]Query, int, error) {
	if _, err := s.Docs.Get(ctx, userID, documentID); err != nil {
		return nil, 0, err
	}
	return s.Repo.List(ctx, ListFilter{UserID: userID, DocumentID: documentID, Limit: limit, Offset: offset})
}

// All lists the user's queries across documents, optionally narrowed to one.
func (s *Service) All(ctx context.Context, userID, documentID string, limit, offset int) ([]Entry, int, error) {
	rows, total, err := s.Repo.List(ctx, ListFilter{UserID: userID, DocumentID: documentID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, 0, err
	}
	ids := make([]string, 0, len(rows))
	for _, q := range rows {
		ids = append(ids, q.DocumentID)
	}
	docs := map[string]documents.Document{}
	if len(ids) > 0 {
		list, _, err := s.Docs.List(ctx, documents.ListFilter{UserID: userID, IDs: ids})
		if err != nil {
			return nil, 0, err
		}
		for _, d := range list {
			docs[d.ID] = d
		}
	}
	out := make([]Entry, 0, len(rows))
	for _, q := range rows {
		e := Entry{Query: q}
		if d, ok := docs[q.DocumentID]; ok {
			e.DocumentTitle = d.Title
			e.DocumentFileName = d.FileName
		}
		out = append(out, e)
	}
	return out, total, nil
}

// Get returns one of the user's queries.
func (s *Service) Get(ctx context.Context, userID, id string) (Query, error) {
	return s.Repo.Get(ctx, userID, id)
}

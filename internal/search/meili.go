package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/shared/telemetry"
)

const defaultIndex = "legaldocs_documents"

var ErrUnhealthy = errors.New("meilisearch unhealthy")

// Record is the indexed projection of a document.
type Record struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	FileName     string `json:"file_name"`
	Category     string `json:"category"`
	UploadStatus string `json:"upload_status"`
	CreatedAt    int64  `json:"created_at"`
}

func recordFrom(doc documents.Document) Record {
	return Record{
		ID:           doc.ID,
		UserID:       doc.UserID,
		Title:        doc.Title,
		Description:  doc.Description,
		FileName:     doc.FileName,
		Category:     doc.Category,
		UploadStatus: doc.UploadStatus,
		CreatedAt:    doc.CreatedAt.Unix(),
	}
}

// Meili implements documents.SearchIndex on Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	index   string
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a client and configures the documents index. An
// unreachable server is not fatal: the index reports unhealthy and callers
// fall back to the repository.
func NewMeili(url, apiKey string) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		index:  defaultIndex,
		done:   make(chan struct{}),
	}
	if _, err := m.client.Health(); err != nil {
		telemetry.Warn("search.unavailable", map[string]any{"url": url, "error": err.Error()})
	} else {
		m.healthy.Store(true)
		m.configure()
	}
	go m.healthLoop()
	return m
}

func (m *Meili) configure() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: m.index, PrimaryKey: "id"}); err != nil {
		telemetry.Info("search.create_index", map[string]any{"index": m.index, "error": err.Error()})
	}
	index := m.client.Index(m.index)
	filterable := []interface{}{"user_id", "category", "upload_status"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		telemetry.Warn("search.configure_failed", map[string]any{"attribute": "filterable", "error": err.Error()})
	}
	searchable := []string{"title", "description", "file_name"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		telemetry.Warn("search.configure_failed", map[string]any{"attribute": "searchable", "error": err.Error()})
	}
	sortable := []string{"created_at"}
	if _, err := index.UpdateSortableAttributes(&sortable); err != nil {
		telemetry.Warn("search.configure_failed", map[string]any{"attribute": "sortable", "error": err.Error()})
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			was := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !was {
				telemetry.Info("search.recovered", map[string]any{"index": m.index})
				m.configure()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Ping checks the server directly, independent of the cached health flag.
func (m *Meili) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.client.Health(); err != nil {
		return fmt.Errorf("meilisearch health: %w", err)
	}
	return nil
}

func (m *Meili) Index(ctx context.Context, doc documents.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.Healthy() {
		return ErrUnhealthy
	}
	_, err := m.client.Index(m.index).AddDocuments([]Record{recordFrom(doc)}, nil)
	return err
}

func (m *Meili) Remove(ctx context.Context, ids ...string) error {
	if !m.Healthy() {
		return ErrUnhealthy
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := m.client.Index(m.index).DeleteDocument(id, nil); err != nil {
			return fmt.Errorf("meilisearch delete %s: %w", id, err)
		}
	}
	return nil
}

// Search returns matching document ids in relevance order, scoped to the user.
func (m *Meili) Search(ctx context.Context, q documents.SearchQuery) ([]string, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if !m.Healthy() {
		return nil, 0, ErrUnhealthy
	}
	resp, err := m.client.Index(m.index).Search(q.Term, searchRequest(q))
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}
	return hitIDs(resp.Hits), int(resp.EstimatedTotalHits), nil
}

func searchRequest(q documents.SearchQuery) *meili.SearchRequest {
	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 10
	}
	return &meili.SearchRequest{
		Limit:                limit,
		Offset:               int64(q.Offset),
		Filter:               filterFor(q),
		AttributesToRetrieve: []string{"id"},
	}
}

func filterFor(q documents.SearchQuery) []string {
	filters := []string{fmt.Sprintf("user_id = %q", q.UserID)}
	if q.Category != "" {
		filters = append(filters, fmt.Sprintf("category = %q", q.Category))
	}
	return filters
}

func hitIDs(hits []meili.Hit) []string {
	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		raw, ok := hit["id"]
		if !ok {
			continue
		}
		var id string
		if err := json.Unmarshal(raw, &id); err == nil && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

var _ documents.SearchIndex = (*Meili)(nil)

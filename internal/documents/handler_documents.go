package documents

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/shared/server/middleware"
	"legaldocs-backend/internal/shared/server/respond"
	"legaldocs-backend/internal/shared/util"
)

func pagination(page, limit, total int) util.Pagination {
	return util.NewPagination(page, limit, total)
}

func (h *Handler) metadata(c *gin.Context) {
	doc, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"document": toView(doc)})
}

func (h *Handler) status(c *gin.Context) {
	doc, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, statusView{
		DocumentID:    doc.ID,
		Title:         doc.Title,
		Status:        doc.UploadStatus,
		StatusMessage: StatusMessage(doc.UploadStatus),
		IsReady:       doc.IsReady(),
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	})
}

// listing serves /documents/all with capability flags and a summary.
func (h *Handler) listing(c *gin.Context) {
	page, limit, ok := respond.PageParams(c, 10)
	if !ok {
		return
	}
	category := strings.TrimSpace(c.Query("category"))
	search := strings.TrimSpace(c.Query("search"))
	var msgs []string
	if category != "" && !IsValidCategory(category) {
		msgs = append(msgs, "Category must be one of: "+strings.Join(Categories, ", "))
	}
	if len([]rune(search)) > 100 {
		msgs = append(msgs, "Search term must not exceed 100 characters")
	}
	if len(msgs) > 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Validation error", gin.H{"errors": msgs})
		return
	}

	docs, total, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), ListFilter{
		Category: category,
		Search:   search,
		Limit:    limit,
		Offset:   util.Offset(page, limit),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	now := h.now()
	views := make([]ListingView, 0, len(docs))
	summary := listingSummary{TotalDocuments: total}
	for _, d := range docs {
		v := toListingView(d, now)
		if v.IsAccessible {
			summary.AccessibleDocuments++
		}
		if v.CanQuery {
			summary.QueryableDocuments++
		}
		if v.CanExtractClauses {
			summary.ClauseExtractableDocuments++
		}
		views = append(views, v)
	}
	respond.OK(c, gin.H{
		"documents":  views,
		"pagination": pagination(page, limit, total),
		"filters":    filters{Category: optional(category), Search: optional(search)},
		"summary":    summary,
	})
}

func (h *Handler) byCategory(c *gin.Context) {
	page, limit, ok := respond.PageParams(c, 10)
	if !ok {
		return
	}
	category := c.Param("category")
	docs, total, err := h.Svc.ByCategory(c.Request.Context(), middleware.UserIDFromContext(c), category, page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"category":   category,
		"documents":  toViews(docs),
		"pagination": pagination(page, limit, total),
	})
}

func (h *Handler) byStatus(c *gin.Context) {
	page, limit, ok := respond.PageParams(c, 10)
	if !ok {
		return
	}
	status := c.Param("status")
	docs, total, err := h.Svc.ByStatus(c.Request.Context(), middleware.UserIDFromContext(c), status, page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"status":     status,
		"documents":  toViews(docs),
		"pagination": pagination(page, limit, total),
	})
}

func (h *Handler) recent(c *gin.Context) {
	days := util.ParseIntDefault(c.Query("days"), 7)
	limit := util.ClampLimit(util.ParseIntDefault(c.Query("limit"), 10), respond.MaxPageLimit)
	docs, err := h.Svc.Recent(c.Request.Context(), middleware.UserIDFromContext(c), days, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	now := h.now()
	views := make([]recentView, 0, len(docs))
	for _, d := range docs {
		views = append(views, recentView{View: toView(d), DaysAgo: DaysSince(now, d.CreatedAt)})
	}
	respond.OK(c, gin.H{
		"period_days": days,
		"documents":   views,
		"total_found": len(views),
	})
}

func (h *Handler) categories(c *gin.Context) {
	report, err := h.Svc.Categories(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, report)
}

func (h *Handler) statistics(c *gin.Context) {
	stats, err := h.Svc.Statistics(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, stats)
}

func (h *Handler) search(c *gin.Context) {
	page, limit, ok := respond.PageParams(c, 10)
	if !ok {
		return
	}
	term := c.Query("q")
	category := strings.TrimSpace(c.Query("category"))
	docs, total, err := h.Svc.Search(c.Request.Context(), middleware.UserIDFromContext(c), SearchQuery{
		Term:     term,
		Category: category,
		Limit:    limit,
		Offset:   util.Offset(page, limit),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"search_term": strings.TrimSpace(term),
		"documents":   toViews(docs),
		"pagination":  pagination(page, limit, total),
		"filters":     filters{Category: optional(category)},
	})
}

func (h *Handler) analytics(c *gin.Context) {
	start, end := c.Query("start_date"), c.Query("end_date")
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Start date and end date are required",
			gin.H{"example": "?start_date=2024-01-01&end_date=2024-01-31"})
		return
	}
	from, to, err := ParsePeriod(start, end)
	if err != nil {
		h.writeError(c, err)
		return
	}
	report, err := h.Svc.Analytics(c.Request.Context(), middleware.UserIDFromContext(c), from, to, Period{StartDate: start, EndDate: end})
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, report)
}

func (h *Handler) trends(c *gin.Context) {
	days := util.ClampLimit(util.ParseIntDefault(c.Query("days"), 30), 365)
	report, err := h.Svc.Trends(c.Request.Context(), middleware.UserIDFromContext(c), days)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, report)
}

func (h *Handler) performance(c *gin.Context) {
	report, err := h.Svc.Performance(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, report)
}

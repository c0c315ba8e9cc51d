package documents

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"legaldocs-backend/internal/shared/util"
)

const dayLayout = "2006-01-02"

func statusOf(d Document) string   { return d.UploadStatus }
func categoryOf(d Document) string { return d.Category }
func fileTypeOf(d Document) string { return d.FileType }
func sizeOf(d Document) int64      { return d.FileSize }

type Statistics struct {
	TotalDocuments    int            `json:"total_documents"`
	TotalSize         string         `json:"total_size"`
	RecentUploads     int            `json:"recent_uploads"`
	StatusBreakdown   map[string]int `json:"status_breakdown"`
	CategoryBreakdown map[string]int `json:"category_breakdown"`
	AverageFileSize   string         `json:"average_file_size"`
}

// Statistics summarises every document of a user.
func (s *Service) Statistics(ctx context.Context, userID string) (Statistics, error) {
	docs, _, err := s.List(ctx, userID, ListFilter{})
	if err != nil {
		return Statistics{}, err
	}
	weekAgo := s.now().AddDate(0, 0, -7)
	recent := 0
	for _, d := range docs {
		if !d.CreatedAt.Before(weekAgo) {
			recent++
		}
	}
	total := util.SumBy(docs, sizeOf)
	avg := "0 Bytes"
	if len(docs) > 0 {
		avg = util.FormatFileSize(float64(total) / float64(len(docs)))
	}
	return Statistics{
		TotalDocuments:    len(docs),
		TotalSize:         util.FormatFileSize(float64(total)),
		RecentUploads:     recent,
		StatusBreakdown:   util.Breakdown(docs, statusOf, Statuses...),
		CategoryBreakdown: util.Breakdown(docs, categoryOf),
		AverageFileSize:   avg,
	}, nil
}

type FileRef struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	FileName      string `json:"file_name"`
	Size          int64  `json:"size"`
	SizeFormatted string `json:"size_formatted"`
}

func fileRef(d Document) *FileRef {
	return &FileRef{ID: d.ID, Title: d.Title, FileName: d.FileName, Size: d.FileSize, SizeFormatted: util.FormatFileSize(float64(d.FileSize))}
}

type Period struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type PeriodAnalytics struct {
	TotalDocuments           int            `json:"total_documents"`
	TotalSize                int64          `json:"total_size"`
	StatusBreakdown          map[string]int `json:"status_breakdown"`
	CategoryBreakdown        map[string]int `json:"category_breakdown"`
	FileTypeBreakdown        map[string]int `json:"file_type_breakdown"`
	DailyUploads             map[string]int `json:"daily_uploads"`
	AverageFileSize          float64        `json:"average_file_size"`
	LargestFile              *FileRef       `json:"largest_file"`
	SmallestFile             *FileRef       `json:"smallest_file"`
	TotalSizeFormatted       string         `json:"total_size_formatted"`
	AverageFileSizeFormatted string         `json:"average_file_size_formatted"`
	Period                   Period         `json:"period"`
}

// ParsePeriod parses start and end dates given as YYYY-MM-DD or RFC 3339. A
// date-only end covers the whole day.
func ParsePeriod(start, end string) (time.Time, time.Time, error) {
	from, _, err := parseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, dateOnly, err := parseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if dateOnly {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end before start", ErrInvalidDate)
	}
	return from, to, nil
}

func parseDate(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dayLayout, raw); err == nil {
		return t.UTC(), true, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	return time.Time{}, false, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// Analytics summarises the documents uploaded between from and to inclusive.
func (s *Service) Analytics(ctx context.Context, userID string, from, to time.Time, period Period) (PeriodAnalytics, error) {
	docs, _, err := s.List(ctx, userID, ListFilter{Since: &from, Until: &to, Ascending: true})
	if err != nil {
		return PeriodAnalytics{}, err
	}
	out := PeriodAnalytics{
		TotalDocuments:    len(docs),
		TotalSize:         util.SumBy(docs, sizeOf),
		StatusBreakdown:   util.Breakdown(docs, statusOf),
		CategoryBreakdown: util.Breakdown(docs, categoryOf),
		FileTypeBreakdown: util.Breakdown(docs, fileTypeOf),
		DailyUploads:      util.Breakdown(docs, func(d Document) string { return d.CreatedAt.UTC().Format(dayLayout) }),
		Period:            period,
	}
	for _, d := range docs {
		if out.LargestFile == nil || d.FileSize > out.LargestFile.Size {
			out.LargestFile = fileRef(d)
		}
		if d.FileSize > 0 && (out.SmallestFile == nil || d.FileSize < out.SmallestFile.Size) {
			out.SmallestFile = fileRef(d)
		}
	}
	if out.LargestFile != nil && out.LargestFile.Size == 0 {
		out.LargestFile = nil
	}
	if len(docs) > 0 {
		out.AverageFileSize = float64(out.TotalSize) / float64(len(docs))
	}
	out.TotalSizeFormatted = util.FormatFileSize(float64(out.TotalSize))
	out.AverageFileSizeFormatted = util.FormatFileSize(out.AverageFileSize)
	return out, nil
}

type TrendDay struct {
	Date               string         `json:"date"`
	Uploads            int            `json:"uploads"`
	TotalSize          int64          `json:"total_size"`
	Completed          int            `json:"completed"`
	Failed             int            `json:"failed"`
	Categories         map[string]int `json:"categories"`
	TotalSizeFormatted string         `json:"total_size_formatted"`
	SuccessRate        string         `json:"success_rate"`
}

type TrendSummary struct {
	TotalDays           int    `json:"total_days"`
	TotalUploads        int    `json:"total_uploads"`
	AverageDailyUploads string `json:"average_daily_uploads"`
	TotalSize           int64  `json:"total_size"`
}

type Trends struct {
	Trends  []TrendDay   `json:"trends"`
	Summary TrendSummary `json:"summary"`
}

// Trends returns one bucket per UTC day for the last days days, today included.
func (s *Service) Trends(ctx context.Context, userID string, days int) (Trends, error) {
	if days < 1 {
		days = 30
	}
	end := s.now()
	start := end.AddDate(0, 0, -days)
	docs, _, err := s.List(ctx, userID, ListFilter{Since: &start, Until: &end, Ascending: true})
	if err != nil {
		return Trends{}, err
	}

	buckets := make([]TrendDay, 0, days+1)
	index := make(map[string]int, days+1)
	last := end.UTC().Truncate(24 * time.Hour)
	for day := start.UTC().Truncate(24 * time.Hour); !day.After(last); day = day.AddDate(0, 0, 1) {
		key := day.Format(dayLayout)
		index[key] = len(buckets)
		buckets = append(buckets, TrendDay{Date: key, Categories: map[string]int{}})
	}

	for _, d := range docs {
		i, ok := index[d.CreatedAt.UTC().Format(dayLayout)]
		if !ok {
			continue
		}
		b := &buckets[i]
		b.Uploads++
		b.TotalSize += d.FileSize
		switch d.UploadStatus {
		case StatusCompleted:
			b.Completed++
		case StatusFailed:
			b.Failed++
		}
		b.Categories[d.Category]++
	}
	for i := range buckets {
		b := &buckets[i]
		b.TotalSizeFormatted = util.FormatFileSize(float64(b.TotalSize))
		b.SuccessRate = util.Fixed(util.Percent(b.Completed, b.Uploads), 1)
	}

	return Trends{
		Trends: buckets,
		Summary: TrendSummary{
			TotalDays:           days,
			TotalUploads:        len(docs),
			AverageDailyUploads: util.Fixed(float64(len(docs))/float64(days), 2),
			TotalSize:           util.SumBy(docs, sizeOf),
		},
	}, nil
}

type ProcessingSample struct {
	FileType       string  `json:"file_type"`
	FileSize       int64   `json:"file_size"`
	ProcessingTime float64 `json:"processing_time"`
}

type SizePerformance struct {
	SmallFiles  int `json:"small_files"`
	MediumFiles int `json:"medium_files"`
	LargeFiles  int `json:"large_files"`
}

type Performance struct {
	TotalDocuments                 int                `json:"total_documents"`
	SuccessRate                    float64            `json:"success_rate"`
	AverageProcessingTime          float64            `json:"average_processing_time"`
	FileTypePerformance            map[string]int     `json:"file_type_performance"`
	SizePerformance                SizePerformance    `json:"size_performance"`
	ProcessingTimes                []ProcessingSample `json:"processing_times"`
	SuccessRateFormatted           string             `json:"success_rate_formatted"`
	AverageProcessingTimeFormatted string             `json:"average_processing_time_formatted"`
}

// Performance reports processing success and timing. Processing time is
// updated_at minus created_at of completed documents, counted when positive.
func (s *Service) Performance(ctx context.Context, userID string) (Performance, error) {
	docs, _, err := s.List(ctx, userID, ListFilter{})
	if err != nil {
		return Performance{}, err
	}
	out := Performance{
		TotalDocuments:      len(docs),
		FileTypePerformance: util.Breakdown(docs, fileTypeOf),
		ProcessingTimes:     []ProcessingSample{},
	}
	completed := 0
	var totalSeconds float64
	for _, d := range docs {
		if d.UploadStatus == StatusCompleted {
			completed++
			if secs := d.UpdatedAt.Sub(d.CreatedAt).Seconds(); secs > 0 {
				totalSeconds += secs
				out.ProcessingTimes = append(out.ProcessingTimes, ProcessingSample{FileType: d.FileType, FileSize: d.FileSize, ProcessingTime: secs})
			}
		}
		switch mb := float64(d.FileSize) / (1 << 20); {
		case mb < 1:
			out.SizePerformance.SmallFiles++
		case mb <= 10:
			out.SizePerformance.MediumFiles++
		default:
			out.SizePerformance.LargeFiles++
		}
	}
	out.SuccessRate = util.Percent(completed, len(docs))
	if n := len(out.ProcessingTimes); n > 0 {
		out.AverageProcessingTime = totalSeconds / float64(n)
	}
	out.SuccessRateFormatted = util.Fixed(out.SuccessRate, 1) + "%"
	out.AverageProcessingTimeFormatted = util.Fixed(out.AverageProcessingTime, 2) + " seconds"
	return out, nil
}

type CategorySummary struct {
	Category           string         `json:"category"`
	Count              int            `json:"count"`
	TotalSize          int64          `json:"total_size"`
	TotalSizeFormatted string         `json:"total_size_formatted"`
	PercentageOfTotal  string         `json:"percentage_of_total"`
	StatusBreakdown    map[string]int `json:"status_breakdown"`
}

type CategoriesReport struct {
	Categories         []CategorySummary `json:"categories"`
	TotalDocuments     int               `json:"total_documents"`
	TotalSizeFormatted string            `json:"total_size_formatted"`
}

// Categories groups the user's documents by category. Only categories in use
// are reported, in the canonical category order.
func (s *Service) Categories(ctx context.Context, userID string) (CategoriesReport, error) {
	docs, _, err := s.List(ctx, userID, ListFilter{})
	if err != nil {
		return CategoriesReport{}, err
	}
	total := util.SumBy(docs, sizeOf)
	grouped := make(map[string][]Document)
	for _, d := range docs {
		grouped[d.Category] = append(grouped[d.Category], d)
	}

	order := append([]string{}, Categories...)
	for cat := range grouped {
		if !IsValidCategory(cat) {
			order = append(order, cat)
		}
	}

	out := CategoriesReport{Categories: []CategorySummary{}, TotalDocuments: len(docs), TotalSizeFormatted: util.FormatFileSize(float64(total))}
	for _, cat := range order {
		group, ok := grouped[cat]
		if !ok {
			continue
		}
		size := util.SumBy(group, sizeOf)
		pct := 0.0
		if total > 0 {
			pct = float64(size) / float64(total) * 100
		}
		out.Categories = append(out.Categories, CategorySummary{
			Category:           cat,
			Count:              len(group),
			TotalSize:          size,
			TotalSizeFormatted: util.FormatFileSize(float64(size)),
			PercentageOfTotal:  util.Fixed(pct, 1),
			StatusBreakdown:    util.Breakdown(group, statusOf, Statuses...),
		})
	}
	return out, nil
}

// DaysSince returns whole days elapsed since t.
func DaysSince(now, t time.Time) int {
	return int(math.Floor(now.Sub(t).Hours() / 24))
}

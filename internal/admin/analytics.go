package admin

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/shared/util"
)

// buckets splits a window into day or week slots starting at the UTC day of
// w.Start. The last slot ends at w.End.
type buckets struct {
	starts []time.Time
	step   time.Duration
}

func newBuckets(w Window) buckets {
	step := 24 * time.Hour
	if w.Granularity == GranularityWeekly {
		step = 7 * 24 * time.Hour
	}
	first := w.Start.UTC().Truncate(24 * time.Hour)
	var starts []time.Time
	for t := first; !t.After(w.End); t = t.Add(step) {
		starts = append(starts, t)
	}
	return buckets{starts: starts, step: step}
}

// index returns the slot holding t, or -1 when t is outside the window.
func (b buckets) index(t time.Time) int {
	if len(b.starts) == 0 || t.Before(b.starts[0]) {
		return -1
	}
	i := int(t.Sub(b.starts[0]) / b.step)
	if i >= len(b.starts) {
		return -1
	}
	return i
}

func (b buckets) labels() []string {
	out := make([]string, len(b.starts))
	for i, t := range b.starts {
		out[i] = t.Format(dayLayout)
	}
	return out
}

func (b buckets) empty() Series {
	return Series{Labels: b.labels(), Data: make([]float64, len(b.starts))}
}

// countSeries counts timestamps per slot.
func (b buckets) countSeries(times []time.Time) Series {
	s := b.empty()
	for _, t := range times {
		if i := b.index(t); i >= 0 {
			s.Data[i]++
		}
	}
	return s
}

type Analytics struct {
	Period      Window            `json:"period"`
	Analytics   map[string]Series `json:"analytics"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// TimeSeries builds the growth charts for the admin analytics page.
func (s *Service) TimeSeries(ctx context.Context, days int, granularity string) (Analytics, error) {
	w := windowFor(s.now(), days)
	w.Granularity = GranularityDaily
	if granularity == GranularityWeekly {
		w.Granularity = GranularityWeekly
	}
	b := newBuckets(w)
	out := Analytics{Period: w, Analytics: map[string]Series{}, GeneratedAt: s.now().UTC()}

	var userGrowth, uploads, storage, queryActivity, feedbackTrends Series
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		all, err := s.Users.All(gctx)
		if err != nil {
			return err
		}
		times := make([]time.Time, 0, len(all))
		for _, u := range all {
			times = append(times, u.CreatedAt)
		}
		userGrowth = b.countSeries(times)
		return nil
	})
	g.Go(func() error {
		all, err := s.documentsSince(gctx, nil)
		if err != nil {
			return err
		}
		times := make([]time.Time, 0, len(all))
		for _, d := range all {
			times = append(times, d.CreatedAt)
		}
		uploads = b.countSeries(times)
		storage = storageSeries(b, all)
		return nil
	})
	g.Go(func() error {
		rows, err := s.queriesSince(gctx, &w.Start)
		if err != nil {
			return err
		}
		times := make([]time.Time, 0, len(rows))
		for _, q := range rows {
			times = append(times, q.CreatedAt)
		}
		queryActivity = b.countSeries(times)
		return nil
	})
	g.Go(func() error {
		rows, err := s.feedbackSince(gctx, "", &w.Start)
		if err != nil {
			return err
		}
		sums := make([]float64, len(b.starts))
		counts := make([]int, len(b.starts))
		for _, f := range rows {
			if i := b.index(f.CreatedAt); i >= 0 {
				sums[i] += float64(f.Rating)
				counts[i]++
			}
		}
		feedbackTrends = b.empty()
		for i := range sums {
			if counts[i] > 0 {
				feedbackTrends.Data[i] = util.Round(sums[i]/float64(counts[i]), 2)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Analytics{}, err
	}

	out.Analytics["user_growth"] = userGrowth
	out.Analytics["document_uploads"] = uploads
	out.Analytics["query_activity"] = queryActivity
	out.Analytics["storage_usage"] = storage
	out.Analytics["feedback_trends"] = feedbackTrends
	return out, nil
}

// storageSeries is the cumulative stored bytes at the end of each slot,
// starting from everything uploaded before the window.
func storageSeries(b buckets, docs []documents.Document) Series {
	s := b.empty()
	if len(b.starts) == 0 {
		return s
	}
	var base int64
	added := make([]int64, len(b.starts))
	for _, d := range docs {
		if d.CreatedAt.Before(b.starts[0]) {
			base += d.FileSize
			continue
		}
		if i := b.index(d.CreatedAt); i >= 0 {
			added[i] += d.FileSize
		}
	}
	running := base
	for i := range added {
		running += added[i]
		s.Data[i] = float64(running)
	}
	return s
}

type FileStats struct {
	Period            Window       `json:"period"`
	FileStatistics    FileSummary  `json:"file_statistics"`
	TopUsersByStorage []UserStored `json:"top_users_by_storage"`
	GeneratedAt       time.Time    `json:"generated_at"`
}

type FileSummary struct {
	TotalFiles     int            `json:"total_files"`
	FileTypes      map[string]int `json:"file_types"`
	UploadStatus   map[string]int `json:"upload_status"`
	SizeStatistics SizeStats      `json:"size_statistics"`
}

type SizeStats struct {
	TotalBytes        int64   `json:"total_bytes"`
	TotalFormatted    string  `json:"total_formatted"`
	AverageBytes      float64 `json:"average_bytes"`
	AverageFormatted  string  `json:"average_formatted"`
	LargestBytes      int64   `json:"largest_bytes"`
	LargestFormatted  string  `json:"largest_formatted"`
	SmallestBytes     int64   `json:"smallest_bytes"`
	SmallestFormatted string  `json:"smallest_formatted"`
}

type UserStored struct {
	UserID           string `json:"user_id"`
	StorageBytes     int64  `json:"storage_bytes"`
	StorageFormatted string `json:"storage_formatted"`
}

// FileStats summarises the documents uploaded inside the window.
func (s *Service) FileStats(ctx context.Context, days int) (FileStats, error) {
	w := windowFor(s.now(), days)
	docs, err := s.documentsSince(ctx, &w)
	if err != nil {
		return FileStats{}, err
	}
	return FileStats{
		Period: w,
		FileStatistics: FileSummary{
			TotalFiles:     len(docs),
			FileTypes:      util.Breakdown(docs, func(d documents.Document) string { return d.FileType }),
			UploadStatus:   util.Breakdown(docs, func(d documents.Document) string { return d.UploadStatus }),
			SizeStatistics: sizeStats(docs),
		},
		TopUsersByStorage: topUsersByStorage(docs, topUsersLimit),
		GeneratedAt:       s.now().UTC(),
	}, nil
}

// sizeStats ignores zero-byte files for the smallest size.
func sizeStats(docs []documents.Document) SizeStats {
	var st SizeStats
	for _, d := range docs {
		st.TotalBytes += d.FileSize
		if d.FileSize > st.LargestBytes {
			st.LargestBytes = d.FileSize
		}
		if d.FileSize > 0 && (st.SmallestBytes == 0 || d.FileSize < st.SmallestBytes) {
			st.SmallestBytes = d.FileSize
		}
	}
	if len(docs) > 0 {
		st.AverageBytes = util.Round(float64(st.TotalBytes)/float64(len(docs)), 2)
	}
	st.TotalFormatted = util.FormatFileSize(float64(st.TotalBytes))
	st.AverageFormatted = util.FormatFileSize(st.AverageBytes)
	st.LargestFormatted = util.FormatFileSize(float64(st.LargestBytes))
	st.SmallestFormatted = util.FormatFileSize(float64(st.SmallestBytes))
	return st
}

func topUsersByStorage(docs []documents.Document, n int) []UserStored {
	totals := map[string]int64{}
	for _, d := range docs {
		totals[d.UserID] += d.FileSize
	}
	out := make([]UserStored, 0, len(totals))
	for id, bytes := range totals {
		out = append(out, UserStored{UserID: id, StorageBytes: bytes, StorageFormatted: util.FormatFileSize(float64(bytes))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StorageBytes != out[j].StorageBytes {
			return out[i].StorageBytes > out[j].StorageBytes
		}
		return out[i].UserID < out[j].UserID
	})
	return head(out, n)
}

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"legaldocs-backend/internal/clauses"
	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/health"
	"legaldocs-backend/internal/llm"
	"legaldocs-backend/internal/queries"
	"legaldocs-backend/internal/shared/metrics"
	"legaldocs-backend/internal/shared/telemetry"
	"legaldocs-backend/internal/shared/util"
	"legaldocs-backend/internal/users"
)

type Alert struct {
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type LiveActivity struct {
	ActiveUsersCount int       `json:"active_users_count"`
	RecentQueries    int       `json:"recent_queries"`
	RecentUploads    int       `json:"recent_uploads"`
	LastUpdated      time.Time `json:"last_updated"`
}

type RecentErrors struct {
	TotalErrors      uint64  `json:"total_errors"`
	ErrorRate        float64 `json:"error_rate"`
	AIFailures       uint64  `json:"ai_failures"`
	ProcessingFailed uint64  `json:"processing_failures"`
	FailedAdminCalls int     `json:"failed_admin_requests"`
}

type Performance struct {
	HeapAlloc     uint64  `json:"heap_alloc"`
	HeapSys       uint64  `json:"heap_sys"`
	Sys           uint64  `json:"sys"`
	Goroutines    int     `json:"goroutines"`
	GCCycles      uint32  `json:"gc_cycles"`
	AIAverageMs   float64 `json:"ai_average_ms"`
	UptimeSeconds float64 `json:"uptime"`
}

type Realtime struct {
	Timestamp    time.Time         `json:"timestamp"`
	SystemStatus map[string]string `json:"system_status"`
	LiveActivity LiveActivity      `json:"live_activity"`
	RecentErrors RecentErrors      `json:"recent_errors"`
	Performance  Performance       `json:"performance"`
	Alerts       []Alert           `json:"alerts"`
}

// Realtime reports the last hour of activity and process health.
func (s *Service) Realtime(ctx context.Context) (Realtime, error) {
	now := s.now().UTC()
	since := now.Add(-liveWindow)

	qs, _, err := s.Queries.List(ctx, queries.ListFilter{Since: &since, Limit: liveSample})
	if err != nil {
		return Realtime{}, err
	}
	docs, _, err := s.Docs.List(ctx, documents.ListFilter{Since: &since, Limit: liveSample})
	if err != nil {
		return Realtime{}, err
	}
	active := map[string]bool{}
	for _, q := range qs {
		active[q.UserID] = true
	}
	for _, d := range docs {
		active[d.UserID] = true
	}

	failedAdmin := 0
	if s.Logs != nil {
		failed, err := s.Logs.List(ctx, LogFilter{Since: &since, FailedOnly: true})
		if err != nil {
			return Realtime{}, err
		}
		failedAdmin = len(failed)
	}

	status := map[string]string{"overall": "unknown"}
	if s.Probe != nil {
		status = s.Probe.Components(ctx)
	}
	counters := metrics.Snapshot()
	errs := RecentErrors{
		TotalErrors:      counters.AIFailures + counters.ProcessingFailed,
		AIFailures:       counters.AIFailures,
		ProcessingFailed: counters.ProcessingFailed,
		ErrorRate:        util.Percent(int(counters.AIFailures), int(counters.AICalls)),
		FailedAdminCalls: failedAdmin,
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	out := Realtime{
		Timestamp:    now,
		SystemStatus: status,
		LiveActivity: LiveActivity{
			ActiveUsersCount: len(active),
			RecentQueries:    len(qs),
			RecentUploads:    len(docs),
			LastUpdated:      now,
		},
		RecentErrors: errs,
		Performance: Performance{
			HeapAlloc:     ms.HeapAlloc,
			HeapSys:       ms.HeapSys,
			Sys:           ms.Sys,
			Goroutines:    runtime.NumGoroutine(),
			GCCycles:      ms.NumGC,
			AIAverageMs:   util.Round(counters.AIAverageMs, 2),
			UptimeSeconds: health.Uptime(),
		},
		Alerts: []Alert{},
	}
	if status["overall"] != "healthy" {
		out.Alerts = append(out.Alerts, Alert{Type: "system", Severity: "high", Message: "System health degraded", Timestamp: now})
	}
	if errs.TotalErrors > errorAlertMin {
		out.Alerts = append(out.Alerts, Alert{Type: "error", Severity: "medium", Message: "High error rate detected", Timestamp: now})
	}
	return out, nil
}

type HourUsage struct {
	Hour     int `json:"hour"`
	Activity int `json:"activity"`
}

type Retention struct {
	ActiveUsers    int     `json:"active_users"`
	NewUsers       int     `json:"new_users"`
	ReturningUsers int     `json:"returning_users"`
	RetentionRate  float64 `json:"retention_rate"`
}

type ActivityPatterns struct {
	Period   Window `json:"period"`
	Patterns struct {
		LoginPatterns    Series      `json:"login_patterns"`
		DocumentActivity Series      `json:"document_activity"`
		QueryPatterns    Series      `json:"query_patterns"`
		PeakUsageTimes   []HourUsage `json:"peak_usage_times"`
		UserRetention    Retention   `json:"user_retention"`
	} `json:"patterns"`
	GeneratedAt time.Time `json:"generated_at"`
}

// hourHistogram counts timestamps per UTC hour of day.
func hourHistogram(times []time.Time) Series {
	s := Series{Labels: make([]string, 24), Data: make([]float64, 24)}
	for h := range 24 {
		s.Labels[h] = fmt.Sprintf("%02d:00", h)
	}
	for _, t := range times {
		s.Data[t.UTC().Hour()]++
	}
	return s
}

// UserActivity reports when users are active, by hour of day.
func (s *Service) UserActivity(ctx context.Context, days int) (ActivityPatterns, error) {
	w := windowFor(s.now(), days)
	w.Granularity = "hourly"

	all, err := s.Users.All(ctx)
	if err != nil {
		return ActivityPatterns{}, err
	}
	docs, err := s.documentsSince(ctx, &w)
	if err != nil {
		return ActivityPatterns{}, err
	}
	qs, err := s.queriesSince(ctx, &w.Start)
	if err != nil {
		return ActivityPatterns{}, err
	}

	var logins, uploads, asked []time.Time
	active := map[string]bool{}
	for _, u := range all {
		if u.LastSignInAt != nil && w.Contains(*u.LastSignInAt) {
			logins = append(logins, *u.LastSignInAt)
			active[u.ID] = true
		}
	}
	for _, d := range docs {
		uploads = append(uploads, d.CreatedAt)
		active[d.UserID] = true
	}
	for _, q := range qs {
		asked = append(asked, q.CreatedAt)
		active[q.UserID] = true
	}

	out := ActivityPatterns{Period: w, GeneratedAt: s.now().UTC()}
	out.Patterns.LoginPatterns = hourHistogram(logins)
	out.Patterns.DocumentActivity = hourHistogram(uploads)
	out.Patterns.QueryPatterns = hourHistogram(asked)
	out.Patterns.PeakUsageTimes = peakHours(out.Patterns.DocumentActivity, out.Patterns.QueryPatterns, 3)
	out.Patterns.UserRetention = retention(all, active, w)
	return out, nil
}

func peakHours(a, b Series, n int) []HourUsage {
	hours := make([]HourUsage, 0, 24)
	for h := range 24 {
		if total := int(a.Data[h] + b.Data[h]); total > 0 {
			hours = append(hours, HourUsage{Hour: h, Activity: total})
		}
	}
	sort.SliceStable(hours, func(i, j int) bool { return hours[i].Activity > hours[j].Activity })
	return head(hours, n)
}

// retention counts returning users as active users whose account predates
// the window, over every account that predates it.
func retention(all []users.User, active map[string]bool, w Window) Retention {
	r := Retention{ActiveUsers: len(active)}
	existing := 0
	for _, u := range all {
		if w.Contains(u.CreatedAt) {
			r.NewUsers++
			continue
		}
		if u.CreatedAt.Before(w.Start) {
			existing++
			if active[u.ID] {
				r.ReturningUsers++
			}
		}
	}
	r.RetentionRate = util.Percent(r.ReturningUsers, existing)
	return r
}

type AIPerformance struct {
	Period        Window `json:"period"`
	AIPerformance struct {
		QueryPerformance struct {
			TotalQueries         int     `json:"total_queries"`
			AverageConfidence    float64 `json:"average_confidence"`
			LowConfidenceQueries int     `json:"low_confidence_queries"`
		} `json:"query_performance"`
		ClauseExtraction struct {
			TotalClauses     int     `json:"total_clauses"`
			CompletedClauses int     `json:"completed_clauses"`
			SuccessRate      float64 `json:"success_rate"`
		} `json:"clause_extraction"`
		ResponseQuality struct {
			TotalFeedback    int     `json:"total_feedback"`
			AverageRating    float64 `json:"average_rating"`
			SatisfactionRate float64 `json:"satisfaction_rate"`
		} `json:"response_quality"`
		ErrorAnalysis struct {
			AICalls      uint64  `json:"ai_calls"`
			AIFailures   uint64  `json:"ai_failures"`
			FailureRate  float64 `json:"failure_rate"`
			AverageMs    float64 `json:"average_latency_ms"`
			ProcessFails uint64  `json:"processing_failures"`
		} `json:"error_analysis"`
		UsagePatterns struct {
			ByContext  map[string]int `json:"queries_by_context"`
			ByLanguage map[string]int `json:"queries_by_language"`
		} `json:"usage_patterns"`
	} `json:"ai_performance"`
	GeneratedAt time.Time `json:"generated_at"`
}

const lowConfidence = 0.5

// AIPerformance summarises answer confidence, extraction success and user
// ratings in the window, plus process-wide model call counters.
func (s *Service) AIPerformance(ctx context.Context, days int) (AIPerformance, error) {
	w := windowFor(s.now(), days)
	var (
		qs  []queries.Query
		cs  []clauses.Extraction
		out = AIPerformance{Period: w, GeneratedAt: s.now().UTC()}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { qs, err = s.queriesSince(gctx, &w.Start); return err })
	g.Go(func() (err error) { cs, err = s.extractionsSince(gctx, &w.Start); return err })
	g.Go(func() error {
		rows, err := s.feedbackSince(gctx, "", &w.Start)
		if err != nil {
			return err
		}
		happy := 0
		for _, f := range rows {
			if f.Rating >= 4 {
				happy++
			}
		}
		rq := &out.AIPerformance.ResponseQuality
		rq.TotalFeedback = len(rows)
		rq.AverageRating = util.Round(averageRating(rows), 2)
		rq.SatisfactionRate = util.Round(util.Percent(happy, len(rows)), 2)
		return nil
	})
	if err := g.Wait(); err != nil {
		return AIPerformance{}, err
	}

	qp := &out.AIPerformance.QueryPerformance
	qp.TotalQueries = len(qs)
	sum := 0.0
	for _, q := range qs {
		sum += q.Confidence
		if q.Confidence < lowConfidence {
			qp.LowConfidenceQueries++
		}
	}
	if len(qs) > 0 {
		qp.AverageConfidence = util.Round(sum/float64(len(qs)), 2)
	}

	ce := &out.AIPerformance.ClauseExtraction
	ce.TotalClauses = len(cs)
	for _, c := range cs {
		if c.ExtractionStatus == clauses.StatusCompleted {
			ce.CompletedClauses++
		}
	}
	ce.SuccessRate = util.Round(util.Percent(ce.CompletedClauses, ce.TotalClauses), 2)

	counters := metrics.Snapshot()
	ea := &out.AIPerformance.ErrorAnalysis
	ea.AICalls, ea.AIFailures, ea.ProcessFails = counters.AICalls, counters.AIFailures, counters.ProcessingFailed
	ea.FailureRate = util.Round(util.Percent(int(counters.AIFailures), int(counters.AICalls)), 2)
	ea.AverageMs = util.Round(counters.AIAverageMs, 2)

	up := &out.AIPerformance.UsagePatterns
	up.ByContext = util.Breakdown(qs, func(q queries.Query) string { return q.Context })
	up.ByLanguage = util.Breakdown(qs, func(q queries.Query) string { return q.Language })
	return out, nil
}

type SecurityReport struct {
	Period   Window `json:"period"`
	Security struct {
		AccessLogs struct {
			TotalActions  int            `json:"total_actions"`
			FailedActions int            `json:"failed_actions"`
			ByAdmin       map[string]int `json:"by_admin"`
			ByEndpoint    map[string]int `json:"by_endpoint"`
			Recent        []LogEntry     `json:"recent"`
		} `json:"access_logs"`
		FailedLogins struct {
			Attempts uint64 `json:"attempts"`
			Scope    string `json:"scope"`
		} `json:"failed_logins"`
		SuspiciousActivity struct {
			Activities []LogEntry `json:"activities"`
		} `json:"suspicious_activity"`
		Accounts struct {
			TotalUsers     int `json:"total_users"`
			SuspendedUsers int `json:"suspended_users"`
			Admins         int `json:"admins"`
		} `json:"accounts"`
	} `json:"security"`
	GeneratedAt time.Time `json:"generated_at"`
}

const recentLogs = 10

// Security reads the admin audit trail for the window. Rejected admin
// requests (401, 403, 429) are reported as suspicious.
func (s *Service) Security(ctx context.Context, days int) (SecurityReport, error) {
	w := windowFor(s.now(), days)
	out := SecurityReport{Period: w, GeneratedAt: s.now().UTC()}

	var logs []LogEntry
	if s.Logs != nil {
		var err error
		logs, err = s.Logs.List(ctx, LogFilter{Since: &w.Start})
		if err != nil {
			return SecurityReport{}, err
		}
	}
	al := &out.Security.AccessLogs
	al.TotalActions = len(logs)
	al.ByAdmin = util.Breakdown(logs, func(e LogEntry) string { return e.AdminID })
	al.ByEndpoint = util.Breakdown(logs, func(e LogEntry) string { return e.Method + " " + e.Endpoint })
	al.Recent = head(logs, recentLogs)
	suspicious := []LogEntry{}
	for _, e := range logs {
		if !e.ResponseSuccess {
			al.FailedActions++
		}
		switch e.ResponseStatus {
		case 401, 403, 429:
			suspicious = append(suspicious, e)
		}
	}
	out.Security.SuspiciousActivity.Activities = suspicious

	out.Security.FailedLogins.Attempts = metrics.Snapshot().LoginFailures
	out.Security.FailedLogins.Scope = "since_process_start"

	all, err := s.Users.All(ctx)
	if err != nil {
		return SecurityReport{}, err
	}
	acc := &out.Security.Accounts
	acc.TotalUsers = len(all)
	for _, u := range all {
		if u.Status == users.StatusSuspended {
			acc.SuspendedUsers++
		}
		if u.Role == users.RoleAdmin || u.Role == users.RoleSuperAdmin {
			acc.Admins++
		}
	}
	return out, nil
}

type Recommendation struct {
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
	Effort      string `json:"effort"`
}

type RecommendationSet struct {
	Recommendations []Recommendation `json:"recommendations"`
	Summary         string           `json:"summary"`
}

type Recommendations struct {
	FocusArea       string            `json:"focus_area"`
	Recommendations RecommendationSet `json:"recommendations"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

type systemData struct {
	UserCount     int              `json:"user_count"`
	DocumentCount int              `json:"document_count"`
	QueryCount    int              `json:"query_count"`
	ErrorRate     float64          `json:"error_rate"`
	Performance   metrics.Counters `json:"performance_metrics"`
}

// Recommendations asks the model for improvement suggestions over a snapshot
// of the system. An unreadable reply yields a generic entry; a failed call
// yields an empty list.
func (s *Service) Recommendations(ctx context.Context, focus string) (Recommendations, error) {
	if focus == "" {
		focus = "all"
	}
	data, err := s.systemSnapshot(ctx)
	if err != nil {
		return Recommendations{}, err
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return Recommendations{}, err
	}

	out := Recommendations{FocusArea: focus, GeneratedAt: s.now().UTC()}
	reply, err := s.AI.Generate(ctx, llm.AdminRecommendationsPrompt(focus, string(raw)))
	if err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			telemetry.Error("admin.recommendations_failed", map[string]any{"error": err.Error()})
		}
		out.Recommendations = RecommendationSet{
			Recommendations: []Recommendation{},
			Summary:         "Unable to generate AI recommendations at this time",
		}
		return out, nil
	}
	var set RecommendationSet
	if err := llm.DecodeJSON(reply, &set); err != nil {
		out.Recommendations = RecommendationSet{
			Recommendations: []Recommendation{{
				Category:    "performance",
				Priority:    "medium",
				Title:       "System Analysis Complete",
				Description: "AI analysis completed successfully",
				Impact:      "Improved system understanding",
				Effort:      "low",
			}},
			Summary: "System analysis completed with AI-generated insights",
		}
		return out, nil
	}
	if set.Recommendations == nil {
		set.Recommendations = []Recommendation{}
	}
	out.Recommendations = set
	return out, nil
}

func (s *Service) systemSnapshot(ctx context.Context) (systemData, error) {
	all, err := s.Users.All(ctx)
	if err != nil {
		return systemData{}, err
	}
	_, docs, err := s.Docs.List(ctx, documents.ListFilter{Limit: 1})
	if err != nil {
		return systemData{}, err
	}
	_, qs, err := s.Queries.List(ctx, queries.ListFilter{Limit: 1})
	if err != nil {
		return systemData{}, err
	}
	counters := metrics.Snapshot()
	return systemData{
		UserCount:     len(all),
		DocumentCount: docs,
		QueryCount:    qs,
		ErrorRate:     util.Round(util.Percent(int(counters.AIFailures), int(counters.AICalls)), 2),
		Performance:   counters,
	}, nil
}

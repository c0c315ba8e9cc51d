package health

import (
	"context"
	"errors"
	"math"
	"os"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"legaldocs-backend/internal/llm"
	"legaldocs-backend/internal/shared/metrics"
	"legaldocs-backend/internal/shared/util"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusWarning   = "warning"
	StatusCritical  = "critical"
	StatusDisabled  = "disabled"

	defaultProbeTimeout = 5 * time.Second
	aiProbePrompt       = "Reply with the single word OK."
)

var startedAt = time.Now()

// Uptime returns the process uptime in seconds.
func Uptime() float64 {
	return util.Round(time.Since(startedAt).Seconds(), 3)
}

// Pinger is satisfied by the database, object store, search and redis adapters.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// CountFunc returns how many rows of one kind a user owns.
type CountFunc func(ctx context.Context, userID string) (int, error)

// Check is the result of one probe.
type Check struct {
	Status         string         `json:"status"`
	Message        string         `json:"message"`
	Error          string         `json:"error,omitempty"`
	ResponseTimeMs int64          `json:"response_time_ms"`
	Details        map[string]any `json:"details,omitempty"`
}

func (c Check) ok() bool {
	return c.Status == StatusHealthy || c.Status == StatusDisabled
}

// Report is the comprehensive health payload.
type Report struct {
	Status            string           `json:"status"`
	Timestamp         time.Time        `json:"timestamp"`
	Uptime            float64          `json:"uptime"`
	Version           string           `json:"version"`
	Environment       string           `json:"environment"`
	Checks            map[string]Check `json:"checks"`
	UnhealthyServices []string         `json:"unhealthy_services"`
	Summary           Summary          `json:"summary"`
}

type Summary struct {
	TotalChecks     int `json:"total_checks"`
	HealthyChecks   int `json:"healthy_checks"`
	UnhealthyChecks int `json:"unhealthy_checks"`
}

// Service runs dependency probes. Nil probes report as disabled.
type Service struct {
	Database    Pinger
	Storage     Pinger
	Search      Pinger
	Redis       Pinger
	AI          llm.Client
	AIModel     string
	UploadDir   string
	Version     string
	Environment string
	Timeout     time.Duration
	// Features are reported by /health/status.
	Features map[string]bool
	// Counts back /health/metrics for an authenticated caller.
	Counts map[string]CountFunc

	now func() time.Time
}

func NewService(version, environment string) *Service {
	return &Service{
		Version:     version,
		Environment: environment,
		Timeout:     defaultProbeTimeout,
		Features:    map[string]bool{},
		Counts:      map[string]CountFunc{},
		now:         time.Now,
	}
}

type Basic struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Uptime      float64   `json:"uptime"`
	Version     string    `json:"version"`
	Environment string    `json:"environment"`
}

func (s *Service) Basic() Basic {
	return Basic{
		Status:      StatusHealthy,
		Timestamp:   s.now().UTC(),
		Uptime:      Uptime(),
		Version:     s.Version,
		Environment: s.Environment,
	}
}

// Comprehensive runs every probe concurrently. A failing probe is reported in
// its own slot and never cancels the others.
func (s *Service) Comprehensive(ctx context.Context) Report {
	probes := map[string]func(context.Context) Check{
		"database": func(ctx context.Context) Check {
			return ping(ctx, s.Database, "Database connection successful", "Database connection failed")
		},
		"storage": func(ctx context.Context) Check {
			return ping(ctx, s.Storage, "Storage access successful", "Storage access failed")
		},
		"search": func(ctx context.Context) Check {
			return ping(ctx, s.Search, "Search index reachable", "Search index unreachable")
		},
		"redis": func(ctx context.Context) Check {
			return ping(ctx, s.Redis, "Redis reachable", "Redis unreachable")
		},
		"ai":     s.checkAI,
		"system": func(context.Context) Check { return checkSystem() },
		"memory": func(context.Context) Check { return checkMemory() },
		"disk":   func(context.Context) Check { return checkDisk(s.UploadDir) },
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		checks = make(map[string]Check, len(probes))
		g      errgroup.Group
	)
	for name, probe := range probes {
		g.Go(func() error {
			check := probe(ctx)
			mu.Lock()
			checks[name] = check
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:            StatusHealthy,
		Timestamp:         s.now().UTC(),
		Uptime:            Uptime(),
		Version:           s.Version,
		Environment:       s.Environment,
		Checks:            checks,
		UnhealthyServices: []string{},
	}
	for _, name := range sortedKeys(checks) {
		if checks[name].ok() {
			report.Summary.HealthyChecks++
			continue
		}
		report.Summary.UnhealthyChecks++
		report.UnhealthyServices = append(report.UnhealthyServices, name)
	}
	report.Summary.TotalChecks = len(checks)
	if len(report.UnhealthyServices) > 0 {
		report.Status = StatusDegraded
	}
	return report
}

// Components reports only the database, storage and AI probes. The admin
// dashboard uses it as its system group.
func (s *Service) Components(ctx context.Context) map[string]string {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		db, store, ai Check
		g             errgroup.Group
	)
	g.Go(func() error { db = ping(ctx, s.Database, "", ""); return nil })
	g.Go(func() error { store = ping(ctx, s.Storage, "", ""); return nil })
	g.Go(func() error { ai = s.checkAI(ctx); return nil })
	_ = g.Wait()

	overall := StatusHealthy
	if !db.ok() || !store.ok() || !ai.ok() {
		overall = StatusDegraded
	}
	return map[string]string{
		"database": componentStatus(db),
		"storage":  componentStatus(store),
		"ai":       componentStatus(ai),
		"overall":  overall,
	}
}

func componentStatus(c Check) string {
	if c.ok() {
		return c.Status
	}
	return "error"
}

func (s *Service) checkAI(ctx context.Context) Check {
	if !llm.Configured(s.AI) {
		return Check{Status: StatusUnhealthy, Message: "AI service is not configured", Error: llm.ErrNotConfigured.Error()}
	}
	start := time.Now()
	_, err := s.AI.Generate(ctx, aiProbePrompt)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return Check{Status: StatusUnhealthy, Message: "AI connection failed", Error: err.Error(), ResponseTimeMs: elapsed}
	}
	check := Check{Status: StatusHealthy, Message: "AI connection successful", ResponseTimeMs: elapsed}
	if s.AIModel != "" {
		check.Details = map[string]any{"model": s.AIModel}
	}
	return check
}

func ping(ctx context.Context, p Pinger, okMsg, failMsg string) Check {
	if p == nil {
		return Check{Status: StatusDisabled, Message: "Not configured"}
	}
	start := time.Now()
	err := p.Ping(ctx)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		msg := failMsg
		if errors.Is(err, context.DeadlineExceeded) {
			msg = failMsg + " (timeout)"
		}
		return Check{Status: StatusUnhealthy, Message: msg, Error: err.Error(), ResponseTimeMs: elapsed}
	}
	return Check{Status: StatusHealthy, Message: okMsg, ResponseTimeMs: elapsed}
}

func checkSystem() Check {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	host, _ := os.Hostname()
	return Check{
		Status:  StatusHealthy,
		Message: "System resources normal",
		Details: map[string]any{
			"go_version":     runtime.Version(),
			"platform":       runtime.GOOS,
			"arch":           runtime.GOARCH,
			"cpus":           runtime.NumCPU(),
			"goroutines":     runtime.NumGoroutine(),
			"hostname":       host,
			"uptime_seconds": Uptime(),
			"gc_cycles":      ms.NumGC,
		},
	}
}

// checkMemory compares the live heap with the soft memory limit, or with the
// memory obtained from the OS when no limit is set.
func checkMemory() Check {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	limit := debug.SetMemoryLimit(-1)
	ceiling := float64(ms.Sys)
	limited := limit > 0 && limit < math.MaxInt64
	if limited {
		ceiling = float64(limit)
	}
	percent := 0.0
	if ceiling > 0 {
		percent = float64(ms.HeapAlloc) / ceiling * 100
	}
	return memoryCheck(percent, ms.HeapAlloc, ms.HeapSys, ms.Sys, limited)
}

func memoryCheck(percent float64, heapAlloc, heapSys, sys uint64, limited bool) Check {
	status := StatusHealthy
	switch {
	case percent > 90:
		status = StatusCritical
	case percent > 80:
		status = StatusWarning
	}
	msg := "Memory usage normal"
	if status != StatusHealthy {
		msg = "Memory usage high"
	}
	return Check{
		Status:  status,
		Message: msg,
		Details: map[string]any{
			"heap_alloc":    heapAlloc,
			"heap_sys":      heapSys,
			"sys":           sys,
			"memory_limit":  limited,
			"usage_percent": util.Round(percent, 2),
		},
	}
}

func checkDisk(dir string) Check {
	if dir == "" {
		return Check{Status: StatusDisabled, Message: "Uploads are not stored on local disk"}
	}
	state := "writable"
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		state = "not_exists"
	case err != nil || !info.IsDir():
		state = "not_writable"
	default:
		f, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			state = "not_writable"
		} else {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}
	check := Check{
		Status:  StatusHealthy,
		Message: "Disk access normal",
		Details: map[string]any{"uploads_directory": map[string]any{"status": state, "path": dir}},
	}
	if state != "writable" {
		check.Status = StatusWarning
		check.Message = "Disk access issues detected"
	}
	return check
}

// Status is the cheap operational summary; it runs no probes.
type Status struct {
	API       string          `json:"api"`
	Database  string          `json:"database"`
	Storage   string          `json:"storage"`
	AIService string          `json:"ai_service"`
	Features  map[string]bool `json:"features"`
	Timestamp time.Time       `json:"timestamp"`
	Version   string          `json:"version"`
	Uptime    float64         `json:"uptime"`
}

func (s *Service) Status() Status {
	operational := func(ok bool) string {
		if ok {
			return "operational"
		}
		return "unavailable"
	}
	return Status{
		API:       "operational",
		Database:  operational(s.Database != nil || s.Features["memory_store"]),
		Storage:   operational(s.Storage != nil),
		AIService: operational(llm.Configured(s.AI)),
		Features:  s.Features,
		Timestamp: s.now().UTC(),
		Version:   s.Version,
		Uptime:    Uptime(),
	}
}

type Count struct {
	Total  int    `json:"total"`
	Status string `json:"status"`
}

// Metrics returns the in-process counters and, for a known user, the number
// of rows they own per kind.
type Metrics struct {
	UserMetrics    map[string]Count `json:"user_metrics"`
	ServiceMetrics metrics.Counters `json:"service_metrics"`
	Timestamp      time.Time        `json:"timestamp"`
	UserID         *string          `json:"user_id"`
}

func (s *Service) Metrics(ctx context.Context, userID string) Metrics {
	out := Metrics{ServiceMetrics: metrics.Snapshot(), Timestamp: s.now().UTC()}
	if userID == "" {
		return out
	}
	out.UserID = &userID
	out.UserMetrics = make(map[string]Count, len(s.Counts))
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for name, count := range s.Counts {
		g.Go(func() error {
			n, err := count(ctx, userID)
			c := Count{Total: n, Status: "success"}
			if err != nil {
				c = Count{Status: "error"}
			}
			mu.Lock()
			out.UserMetrics[name] = c
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func sortedKeys(m map[string]Check) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

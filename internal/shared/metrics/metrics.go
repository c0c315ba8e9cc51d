package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	uploadsTotal           atomic.Uint64
	uploadsRejectedTotal   atomic.Uint64
	processingCompleted    atomic.Uint64
	processingFailed       atomic.Uint64
	queriesTotal           atomic.Uint64
	clauseExtractionsTotal atomic.Uint64
	aiCallsTotal           atomic.Uint64
	aiFailuresTotal        atomic.Uint64
	loginFailuresTotal     atomic.Uint64
	documentsDeletedTotal  atomic.Uint64

	jobsReceived      atomic.Uint64
	jobsCompleted     atomic.Uint64
	jobsFailed        atomic.Uint64
	jobsUnrecoverable atomic.Uint64

	processingDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
	aiDuration         = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

func IncUploads()               { uploadsTotal.Add(1) }
func IncUploadsRejected()       { uploadsRejectedTotal.Add(1) }
func IncProcessingCompleted()   { processingCompleted.Add(1) }
func IncProcessingFailed()      { processingFailed.Add(1) }
func IncQueries()               { queriesTotal.Add(1) }
func IncClauseExtractions()     { clauseExtractionsTotal.Add(1) }
func IncAICalls()               { aiCallsTotal.Add(1) }
func IncAIFailures()            { aiFailuresTotal.Add(1) }
func IncLoginFailures()         { loginFailuresTotal.Add(1) }
func AddDocumentsDeleted(n int) { documentsDeletedTotal.Add(uint64(max(n, 0))) }

// Worker job counters.
func IncJobsReceived()             { jobsReceived.Add(1) }
func IncJobsCompleted()            { jobsCompleted.Add(1) }
func IncJobsFailed()               { jobsFailed.Add(1) }
func IncJobsDeletedUnrecoverable() { jobsUnrecoverable.Add(1) }

// ObserveProcessingMs records how long text extraction took for one document.
func ObserveProcessingMs(value float64) {
	processingDuration.Observe(max(value, 0))
}

// ObserveAIMs records the latency of one model call.
func ObserveAIMs(value float64) {
	aiDuration.Observe(max(value, 0))
}

// Counters is a point-in-time copy of the process counters.
type Counters struct {
	Uploads           uint64  `json:"uploads"`
	UploadsRejected   uint64  `json:"uploads_rejected"`
	Processed         uint64  `json:"processed"`
	ProcessingFailed  uint64  `json:"processing_failed"`
	DocumentsDeleted  uint64  `json:"documents_deleted"`
	Queries           uint64  `json:"queries"`
	ClauseExtractions uint64  `json:"clause_extractions"`
	AICalls           uint64  `json:"ai_calls"`
	AIFailures        uint64  `json:"ai_failures"`
	LoginFailures     uint64  `json:"login_failures"`
	AIAverageMs       float64 `json:"ai_average_ms"`
}

func Snapshot() Counters {
	ai := aiDuration.Snapshot()
	avg := 0.0
	if ai.count > 0 {
		avg = ai.sum / float64(ai.count)
	}
	return Counters{
		Uploads:           uploadsTotal.Load(),
		UploadsRejected:   uploadsRejectedTotal.Load(),
		Processed:         processingCompleted.Load(),
		ProcessingFailed:  processingFailed.Load(),
		DocumentsDeleted:  documentsDeletedTotal.Load(),
		Queries:           queriesTotal.Load(),
		ClauseExtractions: clauseExtractionsTotal.Load(),
		AICalls:           aiCallsTotal.Load(),
		AIFailures:        aiFailuresTotal.Load(),
		LoginFailures:     loginFailuresTotal.Load(),
		AIAverageMs:       avg,
	}
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "documents_uploaded_total", "Documents accepted for upload", uploadsTotal.Load())
	writeCounter(&buf, "documents_rejected_total", "Uploads rejected by validation", uploadsRejectedTotal.Load())
	writeCounter(&buf, "documents_processed_total", "Documents whose processing completed", processingCompleted.Load())
	writeCounter(&buf, "documents_processing_failed_total", "Documents whose processing failed", processingFailed.Load())
	writeCounter(&buf, "documents_deleted_total", "Documents removed", documentsDeletedTotal.Load())
	writeCounter(&buf, "document_queries_total", "Questions answered", queriesTotal.Load())
	writeCounter(&buf, "clause_extractions_total", "Clause extraction runs", clauseExtractionsTotal.Load())
	writeCounter(&buf, "ai_calls_total", "Model calls issued", aiCallsTotal.Load())
	writeCounter(&buf, "ai_failures_total", "Model calls that failed", aiFailuresTotal.Load())
	writeCounter(&buf, "auth_login_failures_total", "Rejected login attempts", loginFailuresTotal.Load())
	writeCounter(&buf, "worker_jobs_received_total", "Queue messages received", jobsReceived.Load())
	writeCounter(&buf, "worker_jobs_completed_total", "Queue messages processed and deleted", jobsCompleted.Load())
	writeCounter(&buf, "worker_jobs_failed_total", "Queue messages left for redelivery", jobsFailed.Load())
	writeCounter(&buf, "worker_jobs_deleted_unrecoverable_total", "Malformed queue messages dropped", jobsUnrecoverable.Load())
	writeHistogram(&buf, "document_processing_duration_ms", "Text extraction duration in milliseconds", processingDuration.Snapshot())
	writeHistogram(&buf, "ai_call_duration_ms", "Model call duration in milliseconds", aiDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe increments the first bucket whose bound holds value; rendering accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"legaldocs-backend/internal/extract"
	"legaldocs-backend/internal/shared/metrics"
	"legaldocs-backend/internal/shared/storage/object"
	"legaldocs-backend/internal/shared/telemetry"
)

const (
	maxErrorLen = 500
	failTimeout = 10 * time.Second
)

// Processor moves a document from pending to completed or failed, storing the
// extracted text on success.
type Processor struct {
	Repo  Repo
	Store object.ObjectStore
	now   func() time.Time
}

func NewProcessor(repo Repo, store object.ObjectStore) *Processor {
	return &Processor{Repo: repo, Store: store, now: time.Now}
}

// Process runs extraction for one document. Extraction failures are recorded
// on the document and are not returned; a returned error means the attempt
// should be retried.
func (p *Processor) Process(ctx context.Context, documentID string) error {
	doc, err := p.Repo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.UploadStatus == StatusCompleted {
		return nil
	}

	started := p.now()
	if err := p.setStatus(ctx, doc, StatusUpdate{Status: StatusProcessing}); err != nil {
		return err
	}

	var text string
	if extract.HasText(doc.FileType) {
		text, err = extract.FromStore(ctx, p.Store, doc.FilePath, doc.FileType)
	}
	switch {
	case err == nil:
	case errors.Is(err, extract.ErrUnsupported):
		text = ""
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		metrics.IncProcessingFailed()
		return p.setStatus(ctx, doc, StatusUpdate{Status: StatusFailed, Error: truncateError(err)})
	}

	if err := p.setStatus(ctx, doc, StatusUpdate{Status: StatusCompleted, Text: &text}); err != nil {
		return err
	}
	metrics.IncProcessingCompleted()
	metrics.ObserveProcessingMs(float64(p.now().Sub(started).Milliseconds()))
	return nil
}

func (p *Processor) setStatus(ctx context.Context, doc Document, upd StatusUpdate) error {
	if err := p.Repo.SetStatus(ctx, doc.ID, upd); err != nil {
		return fmt.Errorf("set status %s: %w", upd.Status, err)
	}
	fields := map[string]any{
		"document_id": doc.ID,
		"user_id":     doc.UserID,
		"from":        doc.UploadStatus,
		"to":          upd.Status,
	}
	if upd.Error != "" {
		fields["error"] = upd.Error
	}
	telemetry.Info("document.status", fields)
	return nil
}

// Fail marks a document that is not yet completed as failed. It is used
// when no retry will follow an aborted attempt.
func (p *Processor) Fail(ctx context.Context, documentID string, cause error) error {
	doc, err := p.Repo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.UploadStatus == StatusCompleted || doc.UploadStatus == StatusFailed {
		return nil
	}
	metrics.IncProcessingFailed()
	return p.setStatus(ctx, doc, StatusUpdate{Status: StatusFailed, Error: truncateError(cause)})
}

// truncateError caps the stored message at maxErrorLen bytes without
// splitting a UTF-8 sequence.
func truncateError(err error) string {
	msg := strings.ToValidUTF8(err.Error(), "")
	if len(msg) <= maxErrorLen {
		return msg
	}
	cut := maxErrorLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

// InlineDispatcher processes documents on background goroutines inside the
// API process. It is used when no queue is configured.
type InlineDispatcher struct {
	Processor *Processor
	Timeout   time.Duration
	wg        sync.WaitGroup
}

func (d *InlineDispatcher) Dispatch(_ context.Context, documentID, requestID string) error {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				telemetry.Error("panic", map[string]any{"document_id": documentID, "panic": fmt.Sprint(rec)})
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := d.Processor.Process(ctx, documentID)
		if err == nil {
			return
		}
		telemetry.Error("document.process_failed", map[string]any{
			"document_id": documentID,
			"request_id":  requestID,
			"error":       err.Error(),
		})
		// Inline jobs are never retried.
		failCtx, failCancel := context.WithTimeout(context.WithoutCancel(ctx), failTimeout)
		defer failCancel()
		if ferr := d.Processor.Fail(failCtx, documentID, err); ferr != nil {
			telemetry.Error("document.mark_failed_failed", map[string]any{
				"document_id": documentID,
				"request_id":  requestID,
				"error":       ferr.Error(),
			})
		}
	}()
	return nil
}

// Wait blocks until every dispatched document has been processed.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}

var _ Dispatcher = (*InlineDispatcher)(nil)

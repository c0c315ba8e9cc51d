package queue

import (
	"context"
	"time"

	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/shared/telemetry"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher hands uploaded documents to a queue so a worker process can
// extract their text.
type Dispatcher struct {
	Client Client
	now    func() time.Time
}

func NewDispatcher(client Client) *Dispatcher {
	return &Dispatcher{Client: client, now: time.Now}
}

func (d *Dispatcher) Dispatch(ctx context.Context, documentID, requestID string) error {
	if err := d.Client.Send(ctx, NewMessage(documentID, requestID, d.now())); err != nil {
		return err
	}
	telemetry.Info("document.enqueued", map[string]any{"document_id": documentID, "request_id": requestID})
	return nil
}

var _ documents.Dispatcher = (*Dispatcher)(nil)

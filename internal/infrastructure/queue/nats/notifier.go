package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/avdeenko/call-intake/internal/core/domain"
)

// Notifier publishes call lifecycle events on subjects derived from a
// common prefix, e.g. calls.events.call.created. Subscribers are UI or
// integration consumers; delivery is fire-and-forget.
type Notifier struct {
	conn   *nats.Conn
	prefix string
}

func NewNotifier(conn *nats.Conn, prefix string) *Notifier {
	return &Notifier{conn: conn, prefix: prefix}
}

func (n *Notifier) CallCreated(ctx context.Context, call *domain.Call) error {
	return n.publish(ctx, "call.created", call)
}

func (n *Notifier) TranscriptUpdated(ctx context.Context, callID, transcript string) error {
	return n.publish(ctx, "transcript.updated", map[string]string{
		"call_id":    callID,
		"transcript": transcript,
	})
}

func (n *Notifier) TasksExtracted(ctx context.Context, callID string, message *domain.Message) error {
	return n.publish(ctx, "tasks.extracted", map[string]any{
		"call_id": callID,
		"message": message,
	})
}

func (n *Notifier) publish(ctx context.Context, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if err := n.conn.Publish(n.prefix+"."+event, data); err != nil {
		return fmt.Errorf("publish %s event: %w", event, err)
	}
	return nil
}

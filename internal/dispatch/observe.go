package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/internal/routing"
	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// ObserveRecorder persists routed messages into the message log so they can
// be reviewed or reprocessed later. It is registered for OBSERVE_ONLY.
type ObserveRecorder struct {
	log store.MessageLogStore
	now func() time.Time
}

// NewObserveRecorder creates a recorder over log.
func NewObserveRecorder(log store.MessageLogStore) *ObserveRecorder {
	return &ObserveRecorder{log: log, now: time.Now}
}

func (r *ObserveRecorder) Handle(ctx context.Context, res routing.Result, msg bus.InboundMessage) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("message log id: %w", err)
	}
	entry := store.MessageLogEntry{
		ID:          id,
		GroupID:     res.Context.GroupID,
		SenderID:    res.Context.SenderID,
		SenderName:  res.Context.SenderName,
		Text:        res.Context.Text,
		Destination: string(res.Destination),
		Rule:        res.Rule,
		ReceivedAt:  r.now().UTC(),
	}
	if err := r.log.Record(ctx, entry); err != nil {
		return fmt.Errorf("record observed message: %w", err)
	}
	return nil
}

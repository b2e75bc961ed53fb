// Package worker drains persisted audit entries to a downstream sink.
package worker

import (
	"context"
	"log/slog"

	"archivist/pkg/platform/audit"
)

// Worker consumes entries from the recorder's outbox and forwards them to
// the sink. Forwarding is best effort: the store already holds the entry,
// so a sink failure is logged and the worker moves on.
type Worker struct {
	sink   audit.Sink
	inbox  <-chan audit.Entry
	logger *slog.Logger
}

func NewWorker(sink audit.Sink, inbox <-chan audit.Entry, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-w.inbox:
			if err := w.sink.Publish(ctx, entry); err != nil {
				w.logger.WarnContext(ctx, "failed to forward audit entry",
					"error", err,
					"audit_id", entry.ID.String(),
					"action", string(entry.Action),
				)
			}
		}
	}
}

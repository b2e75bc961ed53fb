package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	id "archivist/pkg/domain"
	"archivist/pkg/requestcontext"
)

// Recorder is the single entry point for writing to the audit trail.
//
// Record never returns an error: an audit write failure must not roll back
// or mask the lifecycle action it describes. Failures are logged, counted,
// and the entry still goes out on the structured log as a side channel, so
// the record survives in at least one place.
type Recorder struct {
	store  Store
	logger *slog.Logger
	outbox chan Entry
}

// NewRecorder wires a recorder over the given store. queueSize bounds the
// forwarding outbox; entries beyond it are dropped (and counted) rather
// than blocking the caller.
func NewRecorder(store Store, logger *slog.Logger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Recorder{
		store:  store,
		logger: logger,
		outbox: make(chan Entry, queueSize),
	}
}

// Outbox exposes the persisted entries for background forwarding.
func (r *Recorder) Outbox() <-chan Entry {
	return r.outbox
}

// Record persists the entry, filling in ID, timestamp and request ID.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	entry.ID = uuid.New()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}

	attrs := []any{
		"log_type", "audit",
		"audit_id", entry.ID.String(),
		"action", string(entry.Action),
		"actor", entry.Actor.String(),
	}
	if entry.Subject != nil {
		attrs = append(attrs, "subject", entry.Subject.String())
	}
	if entry.Reason != "" {
		attrs = append(attrs, "reason", entry.Reason)
	}
	if entry.RequestID != "" {
		attrs = append(attrs, "request_id", entry.RequestID)
	}
	r.logger.InfoContext(ctx, string(entry.Action), attrs...)

	if err := r.store.Append(ctx, entry); err != nil {
		appendFailuresTotal.Inc()
		r.logger.ErrorContext(ctx, "failed to persist audit entry",
			"error", err,
			"audit_id", entry.ID.String(),
			"action", string(entry.Action),
		)
		return
	}
	entriesTotal.WithLabelValues(string(entry.Action)).Inc()

	select {
	case r.outbox <- entry:
	default:
		forwardDroppedTotal.Inc()
	}
}

// FindBySubject returns the trail of one account, oldest first.
func (r *Recorder) FindBySubject(ctx context.Context, subject id.AccountID) ([]Entry, error) {
	return r.store.ListBySubject(ctx, subject)
}

// FindByActor returns all entries recorded for one operator, oldest first.
func (r *Recorder) FindByActor(ctx context.Context, actor id.OperatorID) ([]Entry, error) {
	return r.store.ListByActor(ctx, actor)
}

// Count reports the total number of entries in the trail.
func (r *Recorder) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx)
}

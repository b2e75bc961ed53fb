// Package audit provides the immutable trail of archival lifecycle actions.
// Entries are append-only: nothing in this package updates or deletes them,
// and permanent deletion of an account leaves its trail in place as the
// record that the deletion happened.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "archivist/pkg/domain"
)

// Action identifies the lifecycle event an entry records.
type Action string

const (
	ActionArchived           Action = "account_archived"
	ActionUnarchived         Action = "account_unarchived"
	ActionPermanentlyDeleted Action = "account_permanently_deleted"
	ActionBulkArchive        Action = "bulk_archive_completed"
	ActionSessionsRevoked    Action = "sessions_revoked"
)

// Entry is one audit trail record. Actor is the operator who performed the
// action; Subject is the account acted upon. Subject may be nil for summary
// entries that cover many accounts (bulk operations).
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     id.OperatorID  `json:"actor"`
	Subject   *id.AccountID  `json:"subject,omitempty"`
	Action    Action         `json:"action"`
	Reason    string         `json:"reason,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// Store persists audit entries. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListBySubject(ctx context.Context, subject id.AccountID) ([]Entry, error)
	ListByActor(ctx context.Context, actor id.OperatorID) ([]Entry, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
	Count(ctx context.Context) (int, error)
}

// Sink receives entries after they are persisted. Used to forward the trail
// to external systems (the compliance event stream).
type Sink interface {
	Publish(ctx context.Context, entry Entry) error
}

package models

import (
	"fmt"
	"time"

	id "archivist/pkg/domain"
	dErrors "archivist/pkg/domain-errors"
)

// MaxCommentLength bounds the free-text comment on archival metadata.
const MaxCommentLength = 500

// Account is the archival view of a user account.
//
// Identity and role are owned by account management and are read-only here;
// the lifecycle service mutates only the archival fields.
//
// Invariants:
//   - Archived == false ⇒ ArchivedAt == nil && ScheduledPurgeAt == nil
//   - Archived == true  ⇒ ArchivedAt != nil && ScheduledPurgeAt != nil
//   - ScheduledPurgeAt is always derived from ArchivedAt plus the retention
//     period; it is never set independently
//   - Permanent deletion is only reachable while Archived and only once the
//     retention window has elapsed
//
// Status transitions: active → archived → active (repeatable), and
// archived → deleted (terminal). Deleted accounts simply cease to exist in
// the store; there is no tombstone state.
type Account struct {
	ID        id.AccountID `json:"id"`
	Role      Role         `json:"role"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`

	Archived         bool       `json:"archived"`
	ArchivedAt       *time.Time `json:"archived_at,omitempty"`
	ScheduledPurgeAt *time.Time `json:"scheduled_purge_at,omitempty"`

	Archival *ArchivalMetadata   `json:"archival,omitempty"`
	Snapshot *PreArchiveSnapshot `json:"snapshot,omitempty"`
}

// ArchivalMetadata records who archived the account and why. On unarchive
// the closing cycle is appended to Supersessions rather than overwritten,
// so history survives repeated archive/unarchive cycles.
type ArchivalMetadata struct {
	Reason        ArchiveReason  `json:"reason"`
	Comment       string         `json:"comment,omitempty"`
	ArchivedBy    id.OperatorID  `json:"archived_by"`
	Supersessions []Supersession `json:"supersessions,omitempty"`
}

// Supersession closes one archival cycle: who reopened the account, when,
// and why, together with the archival it supersedes.
type Supersession struct {
	UnarchivedAt    time.Time     `json:"unarchived_at"`
	UnarchivedBy    id.OperatorID `json:"unarchived_by"`
	Reason          string        `json:"reason,omitempty"`
	PriorReason     ArchiveReason `json:"prior_reason"`
	PriorComment    string        `json:"prior_comment,omitempty"`
	PriorArchivedAt time.Time     `json:"prior_archived_at"`
	PriorArchivedBy id.OperatorID `json:"prior_archived_by"`
}

// PreArchiveSnapshot is a small denormalized summary captured at archive
// time, kept for administrative reference after dependent data may have
// been pruned.
type PreArchiveSnapshot struct {
	MeasurementCount  int        `json:"measurement_count"`
	NoteCount         int        `json:"note_count"`
	LastMeasurementAt *time.Time `json:"last_measurement_at,omitempty"`
	CapturedAt        time.Time  `json:"captured_at"`
}

// RetentionNotElapsedError rejects a purge attempted before the retention
// window has run out. Remaining is always positive.
type RetentionNotElapsedError struct {
	Remaining time.Duration
}

func (e *RetentionNotElapsedError) Error() string {
	return fmt.Sprintf("retention window not elapsed, %s remaining", e.Remaining)
}

// CanArchive checks whether the account may transition to archived.
// Use with ApplyArchive inside a store Execute callback so the check and
// the mutation happen under the same lock.
func (a *Account) CanArchive() error {
	if a.Archived {
		return dErrors.New(dErrors.CodeInvariantViolation, "account is already archived")
	}
	return nil
}

// ApplyArchive transitions the account to archived. The purge date is
// computed by the caller (retention evaluator) from the same now.
// A fresh archival cycle keeps the supersession history of earlier cycles.
func (a *Account) ApplyArchive(now time.Time, purgeAt time.Time, reason ArchiveReason, comment string, operator id.OperatorID, snapshot *PreArchiveSnapshot) {
	var history []Supersession
	if a.Archival != nil {
		history = a.Archival.Supersessions
	}
	a.Archived = true
	a.ArchivedAt = &now
	a.ScheduledPurgeAt = &purgeAt
	a.Archival = &ArchivalMetadata{
		Reason:        reason,
		Comment:       comment,
		ArchivedBy:    operator,
		Supersessions: history,
	}
	a.Snapshot = snapshot
	a.UpdatedAt = now
}

// CanUnarchive checks whether the account may return to active.
func (a *Account) CanUnarchive() error {
	if !a.Archived {
		return dErrors.New(dErrors.CodeInvariantViolation, "account is not archived")
	}
	return nil
}

// ApplyUnarchive reopens the account. The closing archival cycle is
// appended to the supersession history; nothing is discarded.
func (a *Account) ApplyUnarchive(now time.Time, operator id.OperatorID, reason string) {
	meta := a.Archival
	if meta != nil && a.ArchivedAt != nil {
		meta.Supersessions = append(meta.Supersessions, Supersession{
			UnarchivedAt:    now,
			UnarchivedBy:    operator,
			Reason:          reason,
			PriorReason:     meta.Reason,
			PriorComment:    meta.Comment,
			PriorArchivedAt: *a.ArchivedAt,
			PriorArchivedBy: meta.ArchivedBy,
		})
	}
	a.Archived = false
	a.ArchivedAt = nil
	a.ScheduledPurgeAt = nil
	a.UpdatedAt = now
}

// CanPurge checks whether the account may be permanently deleted at now.
// Only archived accounts whose retention window has fully elapsed qualify.
func (a *Account) CanPurge(now time.Time) error {
	if !a.Archived {
		return dErrors.New(dErrors.CodeInvariantViolation, "account is not archived")
	}
	if a.ScheduledPurgeAt == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "archived account has no scheduled purge date")
	}
	if now.Before(*a.ScheduledPurgeAt) {
		return dErrors.Wrap(
			&RetentionNotElapsedError{Remaining: a.ScheduledPurgeAt.Sub(now)},
			dErrors.CodeConflict,
			"retention window not elapsed",
		)
	}
	return nil
}

// ValidateComment bounds the free-text comment attached to an archival.
func ValidateComment(comment string) error {
	if len(comment) > MaxCommentLength {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}
	return nil
}

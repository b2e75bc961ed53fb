package service

import (
	"context"
	"time"

	"archivist/internal/archival/models"
	"archivist/internal/archival/retention"
	id "archivist/pkg/domain"
	dErrors "archivist/pkg/domain-errors"
	"archivist/pkg/platform/audit"
	"archivist/pkg/requestcontext"
)

// ArchivalResult is returned by Archive and Unarchive.
type ArchivalResult struct {
	Account          *models.Account
	ScheduledPurgeAt *time.Time
}

// Archive transitions an active account to archived: records who and why,
// captures the pre-archive snapshot, schedules the purge date, revokes
// active sessions, and appends one audit entry.
//
// The precondition check and the mutation run inside the store's Execute
// callback, so two concurrent archives of the same subject cannot both
// succeed; the loser observes the already-archived state.
func (s *Service) Archive(ctx context.Context, subjectID id.AccountID, operatorID id.OperatorID, reason, comment string) (*ArchivalResult, error) {
	if err := s.requireIdentities(ctx, subjectID, operatorID); err != nil {
		return nil, err
	}
	parsedReason, err := models.ParseArchiveReason(reason)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateComment(comment); err != nil {
		return nil, err
	}

	// The snapshot is read outside the lock: it is advisory reference data,
	// and the measurement store is a different system of record anyway.
	summary, err := s.measurements.Summarize(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to summarize dependent data")
	}

	now := requestcontext.Now(ctx)
	purgeAt := retention.PurgeDateFor(now)
	snapshot := &models.PreArchiveSnapshot{
		MeasurementCount:  summary.MeasurementCount,
		NoteCount:         summary.NoteCount,
		LastMeasurementAt: summary.LastMeasurementAt,
		CapturedAt:        now,
	}

	account, err := s.accounts.Execute(ctx, subjectID,
		func(a *models.Account) error {
			if err := a.CanArchive(); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return ErrAlreadyArchived
				}
				return err
			}
			return nil
		},
		func(a *models.Account) {
			a.ApplyArchive(now, purgeAt, parsedReason, comment, operatorID, snapshot)
		},
	)
	if err != nil {
		return nil, wrapAccountErr(err)
	}

	s.revokeSessions(ctx, subjectID, operatorID)

	s.recorder.Record(ctx, audit.Entry{
		Actor:   operatorID,
		Subject: &subjectID,
		Action:  audit.ActionArchived,
		Reason:  string(parsedReason),
		Detail: map[string]any{
			"comment":            comment,
			"scheduled_purge_at": purgeAt,
		},
	})

	if s.metrics != nil {
		s.metrics.IncrementArchived(string(parsedReason))
	}
	if s.notifier != nil {
		s.notify(func() { s.notifier.AccountArchived(ctx, subjectID, parsedReason) })
	}

	return &ArchivalResult{Account: account, ScheduledPurgeAt: account.ScheduledPurgeAt}, nil
}

// Unarchive returns an archived account to active. The closing archival
// cycle is appended to the supersession history, never discarded.
func (s *Service) Unarchive(ctx context.Context, subjectID id.AccountID, operatorID id.OperatorID, reason string) (*ArchivalResult, error) {
	if err := s.requireIdentities(ctx, subjectID, operatorID); err != nil {
		return nil, err
	}
	if err := models.ValidateComment(reason); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	account, err := s.accounts.Execute(ctx, subjectID,
		func(a *models.Account) error {
			if err := a.CanUnarchive(); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return ErrNotArchived
				}
				return err
			}
			return nil
		},
		func(a *models.Account) {
			a.ApplyUnarchive(now, operatorID, reason)
		},
	)
	if err != nil {
		return nil, wrapAccountErr(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		Actor:   operatorID,
		Subject: &subjectID,
		Action:  audit.ActionUnarchived,
		Reason:  reason,
	})

	if s.metrics != nil {
		s.metrics.AccountsUnarchived.Inc()
	}
	if s.notifier != nil {
		s.notify(func() { s.notifier.AccountUnarchived(ctx, subjectID) })
	}

	return &ArchivalResult{Account: account, ScheduledPurgeAt: nil}, nil
}

// revokeSessions ends the subject's active sessions. Revocation failure is
// logged and audited but does not fail the lifecycle operation.
func (s *Service) revokeSessions(ctx context.Context, subjectID id.AccountID, operatorID id.OperatorID) int {
	if s.sessions == nil {
		return 0
	}
	revoked, err := s.sessions.RevokeByAccount(ctx, subjectID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions",
			"error", err, "account_id", subjectID.String())
		return 0
	}
	if revoked > 0 {
		s.recorder.Record(ctx, audit.Entry{
			Actor:   operatorID,
			Subject: &subjectID,
			Action:  audit.ActionSessionsRevoked,
			Detail:  map[string]any{"sessions_revoked": revoked},
		})
	}
	return revoked
}

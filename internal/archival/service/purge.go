package service

import (
	"context"
	"errors"
	"time"

	"archivist/internal/archival/models"
	id "archivist/pkg/domain"
	dErrors "archivist/pkg/domain-errors"
	"archivist/pkg/platform/audit"
	"archivist/pkg/requestcontext"
)

// DeleteConfirmation reports what a permanent deletion removed.
type DeleteConfirmation struct {
	SubjectID               id.AccountID
	DeletedAt               time.Time
	DependentRecordsRemoved int
	SessionsRevoked         int
}

// PermanentlyDelete irreversibly removes an archived account once its
// retention window has elapsed.
//
// Ordering is deliberate: the audit entry is written before any destructive
// step, so the trail records the deletion even if a later step fails midway.
// If dependent-data cleanup fails after that, the operation reports a
// partial failure rather than a silent success, and the audit entry stands
// as evidence of the attempt.
func (s *Service) PermanentlyDelete(ctx context.Context, subjectID id.AccountID, operatorID id.OperatorID) (*DeleteConfirmation, error) {
	if err := s.requireIdentities(ctx, subjectID, operatorID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)

	// Precondition pass before anything is written. The same check runs
	// again under the row lock in DeleteIf; this one keeps a doomed attempt
	// from leaving an audit entry for a transition that never could happen.
	account, err := s.accounts.FindByID(ctx, subjectID)
	if err != nil {
		return nil, wrapAccountErr(err)
	}
	if err := s.checkPurgeable(account, now); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Actor:   operatorID,
		Subject: &subjectID,
		Action:  audit.ActionPermanentlyDeleted,
		Detail: map[string]any{
			"archived_at":        account.ArchivedAt,
			"scheduled_purge_at": account.ScheduledPurgeAt,
		},
	})

	revoked := s.revokeSessions(ctx, subjectID, operatorID)

	removed, err := s.measurements.DeleteByAccount(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err,
			dErrors.CodeInternal,
			"account deletion incomplete: dependent data cleanup failed")
	}

	err = s.accounts.DeleteIf(ctx, subjectID, func(a *models.Account) error {
		return s.checkPurgeable(a, now)
	})
	if err != nil {
		return nil, wrapAccountErr(err)
	}

	if s.metrics != nil {
		s.metrics.AccountsPurged.Inc()
	}
	if s.notifier != nil {
		s.notify(func() { s.notifier.AccountPurged(ctx, subjectID) })
	}

	return &DeleteConfirmation{
		SubjectID:               subjectID,
		DeletedAt:               now,
		DependentRecordsRemoved: removed,
		SessionsRevoked:         revoked,
	}, nil
}

// checkPurgeable translates model-level purge guards into the service
// taxonomy and counts early rejections.
func (s *Service) checkPurgeable(account *models.Account, now time.Time) error {
	err := account.CanPurge(now)
	if err == nil {
		return nil
	}
	var retentionErr *models.RetentionNotElapsedError
	if errors.As(err, &retentionErr) {
		if s.metrics != nil {
			s.metrics.PurgeRejectedEarly.Inc()
		}
		return err
	}
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return ErrNotArchived
	}
	return err
}

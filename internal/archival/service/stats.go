package service

import (
	"context"
	"time"

	"archivist/internal/archival/models"
	dErrors "archivist/pkg/domain-errors"
	"archivist/pkg/requestcontext"
)

// Statistics is the read-only aggregate view of the archival estate.
type Statistics struct {
	TotalArchived     int                          `json:"total_archived"`
	ArchivedThisMonth int                          `json:"archived_this_month"`
	ArchivedThisYear  int                          `json:"archived_this_year"`
	ByReason          map[models.ArchiveReason]int `json:"by_reason"`
	ByRole            map[models.Role]int          `json:"by_role"`
	PurgeDue          int                          `json:"purge_due"`
	AuditEntries      int                          `json:"audit_entries"`
	GeneratedAt       time.Time                    `json:"generated_at"`
}

// GetStatistics aggregates counts over the account store and the audit
// trail. AuditEntries is included so a trail that stops growing while
// transitions continue shows up as a count mismatch instead of staying
// silent.
func (s *Service) GetStatistics(ctx context.Context) (*Statistics, error) {
	now := requestcontext.Now(ctx)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())

	stats := &Statistics{GeneratedAt: now}

	var err error
	if stats.TotalArchived, err = s.accounts.CountArchived(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count archived accounts")
	}
	if stats.ArchivedThisMonth, err = s.accounts.CountArchivedSince(ctx, monthStart); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count month archivals")
	}
	if stats.ArchivedThisYear, err = s.accounts.CountArchivedSince(ctx, yearStart); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count year archivals")
	}
	if stats.ByReason, err = s.accounts.CountArchivedByReason(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to group by reason")
	}
	if stats.ByRole, err = s.accounts.CountArchivedByRole(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to group by role")
	}
	if stats.PurgeDue, err = s.accounts.CountPurgeDueBefore(ctx, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count purge-due accounts")
	}
	if stats.AuditEntries, err = s.recorder.Count(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count audit entries")
	}

	if s.metrics != nil {
		s.metrics.PurgeDueAccounts.Set(float64(stats.PurgeDue))
	}
	return stats, nil
}

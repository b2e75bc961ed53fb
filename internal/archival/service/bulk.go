package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"archivist/internal/archival/models"
	id "archivist/pkg/domain"
	dErrors "archivist/pkg/domain-errors"
	"archivist/pkg/platform/audit"
)

// FailureKind names the precondition that rejected one bulk item.
type FailureKind string

const (
	FailureSubjectNotFound FailureKind = "subject_not_found"
	FailureAlreadyArchived FailureKind = "already_archived"
	FailureInvalidReason   FailureKind = "invalid_reason"
	FailureInternal        FailureKind = "internal"
)

// BulkItem is the outcome for one subject in a bulk archive.
type BulkItem struct {
	SubjectID        id.AccountID
	Archived         bool
	ScheduledPurgeAt *time.Time
	Failure          FailureKind
	Error            string
}

// BulkResult aggregates a whole bulk archive. Items follow the input order
// regardless of completion order.
type BulkResult struct {
	Items     []BulkItem
	Total     int
	Succeeded int
	Failed    int
}

// BulkArchive archives each subject independently: one subject's failure
// never blocks or rolls back the others. Subjects are processed with
// bounded concurrency, which is safe because each transition is atomic on
// its own row. The aggregated result waits for every item.
//
// Each successful archive writes its own audit entry; the batch writes one
// summary entry on top, recording the aggregate counts.
func (s *Service) BulkArchive(ctx context.Context, subjectIDs []id.AccountID, operatorID id.OperatorID, reason, comment string) (*BulkResult, error) {
	if operatorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "operator ID required")
	}
	if len(subjectIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one subject is required")
	}
	// Reason and comment are shared by every item; reject the whole batch
	// up front rather than failing each item identically.
	if _, err := models.ParseArchiveReason(reason); err != nil {
		return nil, err
	}
	if err := models.ValidateComment(comment); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &BulkResult{
		Items: make([]BulkItem, len(subjectIDs)),
		Total: len(subjectIDs),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bulkConcurrency)
	for i, subjectID := range subjectIDs {
		g.Go(func() error {
			outcome, err := s.Archive(gctx, subjectID, operatorID, reason, comment)
			if err != nil {
				result.Items[i] = BulkItem{
					SubjectID: subjectID,
					Failure:   classifyFailure(err),
					Error:     err.Error(),
				}
				return nil
			}
			result.Items[i] = BulkItem{
				SubjectID:        subjectID,
				Archived:         true,
				ScheduledPurgeAt: outcome.ScheduledPurgeAt,
			}
			return nil
		})
	}
	// Item errors are folded into the result, so the group only surfaces
	// context cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, item := range result.Items {
		if item.Archived {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	s.recorder.Record(ctx, audit.Entry{
		Actor:  operatorID,
		Action: audit.ActionBulkArchive,
		Reason: reason,
		Detail: map[string]any{
			"total":     result.Total,
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
		},
	})

	if s.metrics != nil {
		s.metrics.ObserveBulkArchive(start)
	}
	return result, nil
}

func classifyFailure(err error) FailureKind {
	switch {
	case errors.Is(err, ErrSubjectNotFound):
		return FailureSubjectNotFound
	case errors.Is(err, ErrAlreadyArchived):
		return FailureAlreadyArchived
	case dErrors.HasCode(err, dErrors.CodeValidation),
		dErrors.HasCode(err, dErrors.CodeInvalidInput),
		dErrors.HasCode(err, dErrors.CodeBadRequest):
		return FailureInvalidReason
	default:
		return FailureInternal
	}
}

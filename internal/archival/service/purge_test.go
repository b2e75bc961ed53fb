package service_test

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"archivist/internal/archival/models"
	"archivist/internal/archival/service"
	"archivist/internal/archival/store/measurement"
	id "archivist/pkg/domain"
	"archivist/pkg/platform/audit"
	"archivist/pkg/platform/sentinel"
)

func (s *LifecycleSuite) archiveAt(subjectID id.AccountID, at time.Time) {
	_, err := s.svc.Archive(s.at(at), subjectID, s.operator, "deceased", "")
	s.Require().NoError(err)
}

func (s *LifecycleSuite) TestPurgeBeforeWindowRejected() {
	subjectID := s.createAccount(models.RolePatient)
	s.archiveAt(subjectID, s.now)

	early := s.at(s.now.AddDate(0, 5, 29))
	_, err := s.svc.PermanentlyDelete(early, subjectID, s.operator)
	s.Require().Error(err)

	var retentionErr *models.RetentionNotElapsedError
	s.Require().True(errors.As(err, &retentionErr))
	s.Positive(retentionErr.Remaining)

	// The rejected attempt must not write a deletion entry.
	trail, trailErr := s.recorder.FindBySubject(s.ctx, subjectID)
	s.Require().NoError(trailErr)
	s.Empty(entriesWithAction(trail, audit.ActionPermanentlyDeleted))

	_, findErr := s.accounts.FindByID(s.ctx, subjectID)
	s.NoError(findErr, "account survives a rejected purge")
}

func (s *LifecycleSuite) TestPurgeAtBoundarySucceeds() {
	subjectID := s.createAccount(models.RolePatient)
	s.Require().NoError(s.measurements.AddMeasurement(s.ctx, measurement.Measurement{
		AccountID: subjectID, Kind: "spo2", Value: 96, RecordedAt: s.now,
	}))
	s.Require().NoError(s.measurements.AddNote(s.ctx, measurement.Note{
		AccountID: subjectID, Body: "final review", CreatedAt: s.now,
	}))
	s.archiveAt(subjectID, s.now)

	// Exactly at scheduledPurgeAt: eligible.
	boundary := s.at(time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC))
	confirmation, err := s.svc.PermanentlyDelete(boundary, subjectID, s.operator)
	s.Require().NoError(err)
	s.Equal(subjectID, confirmation.SubjectID)
	s.Equal(2, confirmation.DependentRecordsRemoved)

	_, err = s.accounts.FindByID(s.ctx, subjectID)
	s.ErrorIs(err, sentinel.ErrNotFound, "deleted subject must read as not found")

	summary, sumErr := s.measurements.Summarize(s.ctx, subjectID)
	s.Require().NoError(sumErr)
	s.Zero(summary.MeasurementCount + summary.NoteCount)

	// Deletion is terminal: no further lifecycle operation may succeed.
	_, err = s.svc.Archive(s.ctx, subjectID, s.operator, "cured", "")
	s.ErrorIs(err, service.ErrSubjectNotFound)
	_, err = s.svc.Unarchive(s.ctx, subjectID, s.operator, "")
	s.ErrorIs(err, service.ErrSubjectNotFound)
	_, err = s.svc.PermanentlyDelete(s.ctx, subjectID, s.operator)
	s.ErrorIs(err, service.ErrSubjectNotFound)
}

func (s *LifecycleSuite) TestPurgeTrailSurvivesDeletion() {
	subjectID := s.createAccount(models.RolePatient)
	s.archiveAt(subjectID, s.now)

	after := s.at(s.now.AddDate(0, 7, 0))
	_, err := s.svc.PermanentlyDelete(after, subjectID, s.operator)
	s.Require().NoError(err)

	trail, err := s.recorder.FindBySubject(s.ctx, subjectID)
	s.Require().NoError(err)
	s.Len(entriesWithAction(trail, audit.ActionArchived), 1)
	s.Len(entriesWithAction(trail, audit.ActionPermanentlyDeleted), 1)
}

func (s *LifecycleSuite) TestPurgeActiveAccountRejected() {
	subjectID := s.createAccount(models.RolePatient)
	_, err := s.svc.PermanentlyDelete(s.ctx, subjectID, s.operator)
	s.ErrorIs(err, service.ErrNotArchived)
}

func (s *LifecycleSuite) TestPurgeReportsPartialFailureOnCleanupError() {
	failing := &failingMeasurements{InMemory: measurement.NewInMemory()}
	svc := service.New(s.accounts, failing, s.recorder)

	subjectID := s.createAccount(models.RolePatient)
	s.archiveAt(subjectID, s.now)

	after := s.at(s.now.AddDate(0, 7, 0))
	_, err := svc.PermanentlyDelete(after, subjectID, s.operator)
	s.Require().Error(err)
	s.Contains(err.Error(), "dependent data cleanup failed")

	// The audit entry written before the destructive step remains as
	// evidence, and the account record itself is still there.
	trail, trailErr := s.recorder.FindBySubject(s.ctx, subjectID)
	s.Require().NoError(trailErr)
	s.Len(entriesWithAction(trail, audit.ActionPermanentlyDeleted), 1)

	_, findErr := s.accounts.FindByID(s.ctx, subjectID)
	s.NoError(findErr)
}

type failingMeasurements struct {
	*measurement.InMemory
}

func (f *failingMeasurements) DeleteByAccount(context.Context, id.AccountID) (int, error) {
	return 0, errors.New("measurement store unavailable")
}

func (s *LifecycleSuite) TestPurgeUnknownSubject() {
	_, err := s.svc.PermanentlyDelete(s.ctx, id.AccountID(uuid.New()), s.operator)
	s.ErrorIs(err, service.ErrSubjectNotFound)
}

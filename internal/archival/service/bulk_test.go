package service_test

import (
	"time"

	"github.com/google/uuid"

	"archivist/internal/archival/models"
	"archivist/internal/archival/service"
	id "archivist/pkg/domain"
	dErrors "archivist/pkg/domain-errors"
	"archivist/pkg/platform/audit"
)

func (s *LifecycleSuite) TestBulkArchivePartialFailure() {
	first := s.createAccount(models.RolePatient)
	second := s.createAccount(models.RolePatient)
	third := s.createAccount(models.RolePatient)

	// Pre-archive the middle subject so it fails its precondition.
	_, err := s.svc.Archive(s.ctx, second, s.operator, "inactive", "")
	s.Require().NoError(err)

	result, err := s.svc.BulkArchive(s.ctx, []id.AccountID{first, second, third}, s.operator, "regulatory", "ward closure")
	s.Require().NoError(err)

	s.Equal(3, result.Total)
	s.Equal(2, result.Succeeded)
	s.Equal(1, result.Failed)
	s.Require().Len(result.Items, 3)

	// Results follow input order regardless of completion order.
	s.Equal(first, result.Items[0].SubjectID)
	s.Equal(second, result.Items[1].SubjectID)
	s.Equal(third, result.Items[2].SubjectID)

	s.True(result.Items[0].Archived)
	s.NotNil(result.Items[0].ScheduledPurgeAt)
	s.True(result.Items[2].Archived)

	s.False(result.Items[1].Archived)
	s.Equal(service.FailureAlreadyArchived, result.Items[1].Failure)

	for _, subjectID := range []id.AccountID{first, third} {
		current, findErr := s.accounts.FindByID(s.ctx, subjectID)
		s.Require().NoError(findErr)
		s.True(current.Archived)
	}
}

func (s *LifecycleSuite) TestBulkArchiveUnknownSubjectReported() {
	known := s.createAccount(models.RolePatient)
	ghost := id.AccountID(uuid.New())

	result, err := s.svc.BulkArchive(s.ctx, []id.AccountID{ghost, known}, s.operator, "cured", "")
	s.Require().NoError(err)

	s.Equal(1, result.Succeeded)
	s.Equal(1, result.Failed)
	s.Equal(service.FailureSubjectNotFound, result.Items[0].Failure)
	s.True(result.Items[1].Archived)
}

func (s *LifecycleSuite) TestBulkArchiveWritesSummaryAndPerItemEntries() {
	first := s.createAccount(models.RolePatient)
	second := s.createAccount(models.RoleClinician)

	_, err := s.svc.BulkArchive(s.ctx, []id.AccountID{first, second}, s.operator, "test_account", "")
	s.Require().NoError(err)

	byActor, err := s.recorder.FindByActor(s.ctx, s.operator)
	s.Require().NoError(err)

	s.Len(entriesWithAction(byActor, audit.ActionArchived), 2, "one entry per archived subject")
	summaries := entriesWithAction(byActor, audit.ActionBulkArchive)
	s.Require().Len(summaries, 1, "exactly one summary entry per batch")
	s.Nil(summaries[0].Subject)
	s.Equal(2, summaries[0].Detail["succeeded"])
	s.Equal(0, summaries[0].Detail["failed"])
}

func (s *LifecycleSuite) TestBulkArchiveRejectsBadBatch() {
	_, err := s.svc.BulkArchive(s.ctx, nil, s.operator, "cured", "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	subjectID := s.createAccount(models.RolePatient)
	_, err = s.svc.BulkArchive(s.ctx, []id.AccountID{subjectID}, s.operator, "nonsense", "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	current, findErr := s.accounts.FindByID(s.ctx, subjectID)
	s.Require().NoError(findErr)
	s.False(current.Archived, "a rejected batch must not touch any subject")
}

func (s *LifecycleSuite) TestBulkArchiveManySubjects() {
	var subjectIDs []id.AccountID
	for i := 0; i < 25; i++ {
		subjectIDs = append(subjectIDs, s.createAccount(models.RolePatient))
	}

	result, err := s.svc.BulkArchive(s.ctx, subjectIDs, s.operator, "inactive", "")
	s.Require().NoError(err)
	s.Equal(25, result.Succeeded)
	s.Zero(result.Failed)

	expected := time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)
	for i, item := range result.Items {
		s.Equal(subjectIDs[i], item.SubjectID)
		s.Require().NotNil(item.ScheduledPurgeAt)
		s.True(item.ScheduledPurgeAt.Equal(expected))
	}
}

func (s *LifecycleSuite) TestStatistics() {
	patient := s.createAccount(models.RolePatient)
	clinician := s.createAccount(models.RoleClinician)
	s.createAccount(models.RolePatient) // stays active

	_, err := s.svc.Archive(s.ctx, patient, s.operator, "cured", "")
	s.Require().NoError(err)
	_, err = s.svc.Archive(s.ctx, clinician, s.operator, "resignation", "")
	s.Require().NoError(err)

	stats, err := s.svc.GetStatistics(s.ctx)
	s.Require().NoError(err)

	s.Equal(2, stats.TotalArchived)
	s.Equal(2, stats.ArchivedThisMonth)
	s.Equal(2, stats.ArchivedThisYear)
	s.Equal(1, stats.ByReason[models.ReasonCured])
	s.Equal(1, stats.ByReason[models.ReasonResignation])
	s.Equal(1, stats.ByRole[models.RolePatient])
	s.Equal(1, stats.ByRole[models.RoleClinician])
	s.Zero(stats.PurgeDue)
	s.Equal(2, stats.AuditEntries)

	// Every transition grows the trail; a frozen audit count while
	// transitions continue is the mismatch signal.
	_, err = s.svc.Unarchive(s.at(s.now.Add(time.Hour)), patient, s.operator, "recovered early")
	s.Require().NoError(err)
	after, err := s.svc.GetStatistics(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, after.AuditEntries)

	// Purge-due counting after the window elapses.
	later := s.at(s.now.AddDate(0, 7, 0))
	lateStats, err := s.svc.GetStatistics(later)
	s.Require().NoError(err)
	s.Equal(1, lateStats.PurgeDue)
}

//go:build integration

package account_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"archivist/internal/archival/models"
	"archivist/internal/archival/store/account"
	id "archivist/pkg/domain"
	"archivist/pkg/platform/sentinel"
	"archivist/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *account.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = account.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "accounts"))
}

func newTestAccount(role models.Role) *models.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Account{
		ID:        id.AccountID(uuid.New()),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *PostgresStoreSuite) TestCreateFindRoundTrip() {
	ctx := context.Background()
	acct := newTestAccount(models.RolePatient)
	s.Require().NoError(s.store.Create(ctx, acct))

	found, err := s.store.FindByID(ctx, acct.ID)
	s.Require().NoError(err)
	s.Equal(acct.ID, found.ID)
	s.Equal(models.RolePatient, found.Role)
	s.False(found.Archived)
	s.Nil(found.Archival)
	s.Nil(found.Snapshot)
}

func (s *PostgresStoreSuite) TestCreateDuplicateConflicts() {
	ctx := context.Background()
	acct := newTestAccount(models.RolePatient)
	s.Require().NoError(s.store.Create(ctx, acct))
	s.ErrorIs(s.store.Create(ctx, acct), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestArchivalMetadataRoundTrip() {
	ctx := context.Background()
	acct := newTestAccount(models.RolePatient)
	s.Require().NoError(s.store.Create(ctx, acct))

	now := time.Now().UTC().Truncate(time.Microsecond)
	operator := id.OperatorID(uuid.New())
	last := now.Add(-time.Hour)
	snapshot := &models.PreArchiveSnapshot{
		MeasurementCount:  42,
		NoteCount:         3,
		LastMeasurementAt: &last,
		CapturedAt:        now,
	}

	_, err := s.store.Execute(ctx, acct.ID,
		func(a *models.Account) error { return a.CanArchive() },
		func(a *models.Account) {
			a.ApplyArchive(now, now.AddDate(0, 6, 0), models.ReasonTransferred, "moved to other clinic", operator, snapshot)
		},
	)
	s.Require().NoError(err)

	found, err := s.store.FindByID(ctx, acct.ID)
	s.Require().NoError(err)
	s.True(found.Archived)
	s.Require().NotNil(found.Archival)
	s.Equal(models.ReasonTransferred, found.Archival.Reason)
	s.Equal("moved to other clinic", found.Archival.Comment)
	s.Equal(operator, found.Archival.ArchivedBy)
	s.Require().NotNil(found.Snapshot)
	s.Equal(42, found.Snapshot.MeasurementCount)
	s.Require().NotNil(found.Snapshot.LastMeasurementAt)
	s.True(found.Snapshot.LastMeasurementAt.Equal(last))
}

func (s *PostgresStoreSuite) TestConcurrentArchiveOnlyOneWins() {
	ctx := context.Background()
	acct := newTestAccount(models.RolePatient)
	s.Require().NoError(s.store.Create(ctx, acct))

	now := time.Now().UTC()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, acct.ID,
				func(a *models.Account) error { return a.CanArchive() },
				func(a *models.Account) {
					a.ApplyArchive(now, now.AddDate(0, 6, 0), models.ReasonCured, "", id.OperatorID(uuid.New()), nil)
				},
			)
			if err == nil {
				successCount.Add(1)
			} else {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one archive should win the row lock")
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestDeleteIfEnforcesValidation() {
	ctx := context.Background()
	now := time.Now().UTC()

	eligible := newTestAccount(models.RolePatient)
	eligible.ApplyArchive(now.AddDate(0, -7, 0), now.AddDate(0, -1, 0), models.ReasonDeceased, "", id.OperatorID(uuid.New()), nil)
	s.Require().NoError(s.store.Create(ctx, eligible))

	early := newTestAccount(models.RolePatient)
	early.ApplyArchive(now, now.AddDate(0, 6, 0), models.ReasonCured, "", id.OperatorID(uuid.New()), nil)
	s.Require().NoError(s.store.Create(ctx, early))

	s.Require().NoError(s.store.DeleteIf(ctx, eligible.ID, func(a *models.Account) error {
		return a.CanPurge(now)
	}))
	_, err := s.store.FindByID(ctx, eligible.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.DeleteIf(ctx, early.ID, func(a *models.Account) error {
		return a.CanPurge(now)
	})
	s.Require().Error(err)
	var retention *models.RetentionNotElapsedError
	s.True(errors.As(err, &retention))
	_, err = s.store.FindByID(ctx, early.ID)
	s.NoError(err, "row must survive a failed purge precondition")
}

func (s *PostgresStoreSuite) TestStatisticsQueries() {
	ctx := context.Background()
	now := time.Now().UTC()

	recent := newTestAccount(models.RolePatient)
	recent.ApplyArchive(now.Add(-48*time.Hour), now.AddDate(0, 6, 0), models.ReasonCured, "", id.OperatorID(uuid.New()), nil)

	old := newTestAccount(models.RoleClinician)
	old.ApplyArchive(now.AddDate(0, -8, 0), now.AddDate(0, -2, 0), models.ReasonResignation, "", id.OperatorID(uuid.New()), nil)

	active := newTestAccount(models.RolePatient)

	for _, acct := range []*models.Account{recent, old, active} {
		s.Require().NoError(s.store.Create(ctx, acct))
	}

	total, err := s.store.CountArchived(ctx)
	s.Require().NoError(err)
	s.Equal(2, total)

	sinceWeek, err := s.store.CountArchivedSince(ctx, now.AddDate(0, 0, -7))
	s.Require().NoError(err)
	s.Equal(1, sinceWeek)

	byReason, err := s.store.CountArchivedByReason(ctx)
	s.Require().NoError(err)
	s.Equal(1, byReason[models.ReasonCured])
	s.Equal(1, byReason[models.ReasonResignation])

	byRole, err := s.store.CountArchivedByRole(ctx)
	s.Require().NoError(err)
	s.Equal(1, byRole[models.RolePatient])
	s.Equal(1, byRole[models.RoleClinician])

	due, err := s.store.CountPurgeDueBefore(ctx, now)
	s.Require().NoError(err)
	s.Equal(1, due)

	dueList, err := s.store.ListPurgeDueBefore(ctx, now, 10)
	s.Require().NoError(err)
	s.Require().Len(dueList, 1)
	s.Equal(old.ID, dueList[0].ID)
}

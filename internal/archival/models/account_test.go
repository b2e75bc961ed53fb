package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "archivist/pkg/domain"
	dErrors "archivist/pkg/domain-errors"
)

func activeAccount() *Account {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &Account{
		ID:        id.AccountID(uuid.New()),
		Role:      RolePatient,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestArchiveTransition(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	purgeAt := time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)
	operator := id.OperatorID(uuid.New())

	t.Run("active account can archive", func(t *testing.T) {
		acct := activeAccount()
		require.NoError(t, acct.CanArchive())

		acct.ApplyArchive(now, purgeAt, ReasonCured, "recovered fully", operator, nil)

		assert.True(t, acct.Archived)
		require.NotNil(t, acct.ArchivedAt)
		assert.Equal(t, now, *acct.ArchivedAt)
		require.NotNil(t, acct.ScheduledPurgeAt)
		assert.Equal(t, purgeAt, *acct.ScheduledPurgeAt)
		require.NotNil(t, acct.Archival)
		assert.Equal(t, ReasonCured, acct.Archival.Reason)
		assert.Equal(t, operator, acct.Archival.ArchivedBy)
	})

	t.Run("archived account cannot archive again", func(t *testing.T) {
		acct := activeAccount()
		acct.ApplyArchive(now, purgeAt, ReasonCured, "", operator, nil)

		err := acct.CanArchive()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestUnarchivePreservesHistory(t *testing.T) {
	operator := id.OperatorID(uuid.New())
	reopener := id.OperatorID(uuid.New())
	archivedAt := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	purgeAt := time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)
	reopenedAt := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	acct := activeAccount()
	acct.ApplyArchive(archivedAt, purgeAt, ReasonTransferred, "moved clinics", operator, nil)

	require.NoError(t, acct.CanUnarchive())
	acct.ApplyUnarchive(reopenedAt, reopener, "returned to care")

	assert.False(t, acct.Archived)
	assert.Nil(t, acct.ArchivedAt)
	assert.Nil(t, acct.ScheduledPurgeAt)

	require.NotNil(t, acct.Archival)
	require.Len(t, acct.Archival.Supersessions, 1)
	sup := acct.Archival.Supersessions[0]
	assert.Equal(t, reopenedAt, sup.UnarchivedAt)
	assert.Equal(t, reopener, sup.UnarchivedBy)
	assert.Equal(t, ReasonTransferred, sup.PriorReason)
	assert.Equal(t, "moved clinics", sup.PriorComment)
	assert.Equal(t, archivedAt, sup.PriorArchivedAt)
	assert.Equal(t, operator, sup.PriorArchivedBy)
}

func TestHistorySurvivesRepeatedCycles(t *testing.T) {
	operator := id.OperatorID(uuid.New())
	acct := activeAccount()

	t1 := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	t2 := t1.AddDate(0, 1, 0)
	t3 := t1.AddDate(0, 2, 0)
	t4 := t1.AddDate(0, 3, 0)

	acct.ApplyArchive(t1, t1.AddDate(0, 6, 0), ReasonInactive, "", operator, nil)
	acct.ApplyUnarchive(t2, operator, "device reconnected")
	acct.ApplyArchive(t3, t3.AddDate(0, 6, 0), ReasonCured, "", operator, nil)
	acct.ApplyUnarchive(t4, operator, "relapse")

	require.NotNil(t, acct.Archival)
	require.Len(t, acct.Archival.Supersessions, 2)
	assert.Equal(t, ReasonInactive, acct.Archival.Supersessions[0].PriorReason)
	assert.Equal(t, ReasonCured, acct.Archival.Supersessions[1].PriorReason)
}

func TestCanPurge(t *testing.T) {
	operator := id.OperatorID(uuid.New())
	archivedAt := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	purgeAt := time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)

	t.Run("active account cannot purge", func(t *testing.T) {
		acct := activeAccount()
		err := acct.CanPurge(purgeAt)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("before purge date rejected with remaining duration", func(t *testing.T) {
		acct := activeAccount()
		acct.ApplyArchive(archivedAt, purgeAt, ReasonCured, "", operator, nil)

		now := purgeAt.Add(-48 * time.Hour)
		err := acct.CanPurge(now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

		var retErr *RetentionNotElapsedError
		require.ErrorAs(t, err, &retErr)
		assert.Equal(t, 48*time.Hour, retErr.Remaining)
	})

	t.Run("at purge date allowed", func(t *testing.T) {
		acct := activeAccount()
		acct.ApplyArchive(archivedAt, purgeAt, ReasonCured, "", operator, nil)
		require.NoError(t, acct.CanPurge(purgeAt))
	})

	t.Run("after purge date allowed", func(t *testing.T) {
		acct := activeAccount()
		acct.ApplyArchive(archivedAt, purgeAt, ReasonCured, "", operator, nil)
		require.NoError(t, acct.CanPurge(purgeAt.Add(time.Hour)))
	})
}

func TestParseArchiveReason(t *testing.T) {
	t.Run("accepts every member of the closed enum", func(t *testing.T) {
		for _, raw := range []string{
			"cured", "transferred", "deceased", "treatment_completed",
			"inactive", "resignation", "test_account", "regulatory", "other",
		} {
			r, err := ParseArchiveReason(raw)
			require.NoError(t, err, raw)
			assert.True(t, r.Valid())
		}
	})

	t.Run("canonicalizes case and whitespace", func(t *testing.T) {
		r, err := ParseArchiveReason("  Cured ")
		require.NoError(t, err)
		assert.Equal(t, ReasonCured, r)
	})

	t.Run("rejects unknown reasons", func(t *testing.T) {
		_, err := ParseArchiveReason("misplaced")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParseArchiveReason("")
		require.Error(t, err)
	})
}

func TestValidateComment(t *testing.T) {
	require.NoError(t, ValidateComment(""))
	require.NoError(t, ValidateComment(strings.Repeat("a", MaxCommentLength)))

	err := ValidateComment(strings.Repeat("a", MaxCommentLength+1))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

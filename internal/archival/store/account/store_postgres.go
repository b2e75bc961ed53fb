package account

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"archivist/internal/archival/models"
	id "archivist/pkg/domain"
	"archivist/pkg/platform/sentinel"
)

// Postgres persists accounts with their archival fields. Archival metadata
// and the pre-archive snapshot are stored as JSONB documents; the fields the
// store filters and aggregates on (archived, archived_at, scheduled_purge_at,
// role, reason) are proper columns.
//
// Execute and DeleteIf take a row lock (SELECT ... FOR UPDATE) for the
// duration of the validate-then-mutate sequence, which is what makes
// concurrent transitions on the same subject serialize: the loser re-reads
// post-transition state and fails its precondition.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema is the DDL this store expects. Applied by the migration tooling in
// deployment and by the testcontainers manager in integration tests.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id                 UUID PRIMARY KEY,
	role               TEXT NOT NULL,
	archived           BOOLEAN NOT NULL DEFAULT FALSE,
	archived_at        TIMESTAMPTZ,
	scheduled_purge_at TIMESTAMPTZ,
	archive_reason     TEXT,
	archival           JSONB,
	snapshot           JSONB,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_accounts_purge_due
	ON accounts (scheduled_purge_at) WHERE archived;
`

const accountColumns = `id, role, archived, archived_at, scheduled_purge_at, archival, snapshot, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, acct *models.Account) error {
	archival, snapshot, err := marshalDocs(acct)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO accounts (` + accountColumns + `, archive_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(acct.ID), string(acct.Role), acct.Archived,
		acct.ArchivedAt, acct.ScheduledPurgeAt, archival, snapshot,
		acct.CreatedAt, acct.UpdatedAt, reasonColumn(acct),
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		uuid.UUID(accountID),
	)
	return scanAccount(row)
}

// Execute loads the row FOR UPDATE, runs validate then mutate, and writes
// the result back, all inside one transaction.
func (s *Postgres) Execute(ctx context.Context, accountID id.AccountID, validate func(*models.Account) error, mutate func(*models.Account)) (*models.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin account update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`,
		uuid.UUID(accountID),
	)
	acct, err := scanAccount(row)
	if err != nil {
		return nil, err
	}

	if err := validate(acct); err != nil {
		return nil, err
	}
	mutate(acct)

	archival, snapshot, err := marshalDocs(acct)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE accounts
		SET archived = $2, archived_at = $3, scheduled_purge_at = $4,
		    archive_reason = $5, archival = $6, snapshot = $7, updated_at = $8
		WHERE id = $1`,
		uuid.UUID(acct.ID), acct.Archived, acct.ArchivedAt, acct.ScheduledPurgeAt,
		reasonColumn(acct), archival, snapshot, acct.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit account update: %w", err)
	}
	return acct, nil
}

// DeleteIf removes the row only when validate passes under the row lock.
func (s *Postgres) DeleteIf(ctx context.Context, accountID id.AccountID, validate func(*models.Account) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin account delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`,
		uuid.UUID(accountID),
	)
	acct, err := scanAccount(row)
	if err != nil {
		return err
	}

	if err := validate(acct); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, uuid.UUID(accountID)); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit account delete: %w", err)
	}
	return nil
}

func (s *Postgres) CountArchived(ctx context.Context) (int, error) {
	return s.countWhere(ctx, `SELECT COUNT(*) FROM accounts WHERE archived`)
}

func (s *Postgres) CountArchivedSince(ctx context.Context, since time.Time) (int, error) {
	return s.countWhere(ctx,
		`SELECT COUNT(*) FROM accounts WHERE archived AND archived_at >= $1`, since)
}

func (s *Postgres) CountPurgeDueBefore(ctx context.Context, now time.Time) (int, error) {
	return s.countWhere(ctx,
		`SELECT COUNT(*) FROM accounts WHERE archived AND scheduled_purge_at <= $1`, now)
}

func (s *Postgres) countWhere(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

func (s *Postgres) CountArchivedByReason(ctx context.Context) (map[models.ArchiveReason]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT archive_reason, COUNT(*)
		FROM accounts
		WHERE archived AND archive_reason IS NOT NULL
		GROUP BY archive_reason`)
	if err != nil {
		return nil, fmt.Errorf("count by reason: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ArchiveReason]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("scan reason count: %w", err)
		}
		counts[models.ArchiveReason(reason)] = n
	}
	return counts, rows.Err()
}

func (s *Postgres) CountArchivedByRole(ctx context.Context) (map[models.Role]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, COUNT(*)
		FROM accounts
		WHERE archived
		GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("count by role: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Role]int)
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("scan role count: %w", err)
		}
		counts[models.Role(role)] = n
	}
	return counts, rows.Err()
}

func (s *Postgres) ListPurgeDueBefore(ctx context.Context, now time.Time, limit int) ([]*models.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE archived AND scheduled_purge_at <= $1
		ORDER BY scheduled_purge_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list purge due: %w", err)
	}
	defer rows.Close()

	var due []*models.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, acct)
	}
	return due, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		acct     models.Account
		rawID    uuid.UUID
		role     string
		archival []byte
		snapshot []byte
	)
	err := row.Scan(
		&rawID, &role, &acct.Archived, &acct.ArchivedAt, &acct.ScheduledPurgeAt,
		&archival, &snapshot, &acct.CreatedAt, &acct.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}

	acct.ID = id.AccountID(rawID)
	acct.Role = models.Role(role)
	if len(archival) > 0 {
		acct.Archival = &models.ArchivalMetadata{}
		if err := json.Unmarshal(archival, acct.Archival); err != nil {
			return nil, fmt.Errorf("decode archival metadata: %w", err)
		}
	}
	if len(snapshot) > 0 {
		acct.Snapshot = &models.PreArchiveSnapshot{}
		if err := json.Unmarshal(snapshot, acct.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
	}
	return &acct, nil
}

func marshalDocs(acct *models.Account) (archival, snapshot []byte, err error) {
	if acct.Archival != nil {
		if archival, err = json.Marshal(acct.Archival); err != nil {
			return nil, nil, fmt.Errorf("encode archival metadata: %w", err)
		}
	}
	if acct.Snapshot != nil {
		if snapshot, err = json.Marshal(acct.Snapshot); err != nil {
			return nil, nil, fmt.Errorf("encode snapshot: %w", err)
		}
	}
	return archival, snapshot, nil
}

func reasonColumn(acct *models.Account) any {
	if acct.Archived && acct.Archival != nil {
		return string(acct.Archival.Reason)
	}
	return nil
}

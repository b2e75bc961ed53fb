package measurement

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	id "archivist/pkg/domain"
)

// Postgres reads and erases dependent clinical data. Measurements and notes
// are written by the ingestion services; this store only aggregates and
// deletes.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema is the DDL this store expects.
const Schema = `
CREATE TABLE IF NOT EXISTS measurements (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	account_id  UUID NOT NULL,
	kind        TEXT NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_measurements_account ON measurements (account_id);

CREATE TABLE IF NOT EXISTS notes (
	id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	account_id UUID NOT NULL,
	body       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_account ON notes (account_id);
`

func (s *Postgres) AddMeasurement(ctx context.Context, m Measurement) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO measurements (account_id, kind, value, recorded_at) VALUES ($1, $2, $3, $4)`,
		uuid.UUID(m.AccountID), m.Kind, m.Value, m.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	return nil
}

func (s *Postgres) AddNote(ctx context.Context, n Note) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (account_id, body, created_at) VALUES ($1, $2, $3)`,
		uuid.UUID(n.AccountID), n.Body, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *Postgres) Summarize(ctx context.Context, accountID id.AccountID) (Summary, error) {
	var summary Summary
	var last sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MAX(recorded_at)
		FROM measurements
		WHERE account_id = $1`, uuid.UUID(accountID),
	).Scan(&summary.MeasurementCount, &last)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize measurements: %w", err)
	}
	if last.Valid {
		at := last.Time
		summary.LastMeasurementAt = &at
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notes WHERE account_id = $1`, uuid.UUID(accountID),
	).Scan(&summary.NoteCount)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize notes: %w", err)
	}
	return summary, nil
}

// DeleteByAccount removes all measurements and notes for the account in one
// transaction so a partial failure leaves everything in place.
func (s *Postgres) DeleteByAccount(ctx context.Context, accountID id.AccountID) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin dependent data delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	removed := 0
	for _, query := range []string{
		`DELETE FROM measurements WHERE account_id = $1`,
		`DELETE FROM notes WHERE account_id = $1`,
	} {
		res, err := tx.ExecContext(ctx, query, uuid.UUID(accountID))
		if err != nil {
			return 0, fmt.Errorf("delete dependent data: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit dependent data delete: %w", err)
	}
	return removed, nil
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	id "archivist/pkg/domain"
	"archivist/pkg/platform/audit"
)

// Store persists the audit trail. Inserts are idempotent on entry ID so a
// retried write never duplicates a record; nothing here updates or deletes.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema is the DDL this store expects.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id         UUID PRIMARY KEY,
	timestamp  TIMESTAMPTZ NOT NULL,
	actor      UUID NOT NULL,
	subject    UUID,
	action     TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	detail     JSONB,
	request_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_entries_subject ON audit_entries (subject, timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_entries_actor ON audit_entries (actor, timestamp);
`

const entryColumns = `id, timestamp, actor, subject, action, reason, detail, request_id`

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	var detail []byte
	if len(entry.Detail) > 0 {
		var err error
		if detail, err = json.Marshal(entry.Detail); err != nil {
			return fmt.Errorf("encode audit detail: %w", err)
		}
	}

	var subject *uuid.UUID
	if entry.Subject != nil {
		raw := uuid.UUID(*entry.Subject)
		subject = &raw
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		entry.ID, entry.Timestamp, uuid.UUID(entry.Actor), subject,
		string(entry.Action), entry.Reason, detail, entry.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListBySubject(ctx context.Context, subject id.AccountID) ([]audit.Entry, error) {
	return s.list(ctx, `
		SELECT `+entryColumns+` FROM audit_entries
		WHERE subject = $1
		ORDER BY timestamp`, uuid.UUID(subject))
}

func (s *Store) ListByActor(ctx context.Context, actor id.OperatorID) ([]audit.Entry, error) {
	return s.list(ctx, `
		SELECT `+entryColumns+` FROM audit_entries
		WHERE actor = $1
		ORDER BY timestamp`, uuid.UUID(actor))
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	return s.list(ctx, `
		SELECT `+entryColumns+` FROM audit_entries
		ORDER BY timestamp DESC
		LIMIT $1`, limit)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return n, nil
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry   audit.Entry
			actor   uuid.UUID
			subject *uuid.UUID
			action  string
			detail  []byte
		)
		err := rows.Scan(&entry.ID, &entry.Timestamp, &actor, &subject,
			&action, &entry.Reason, &detail, &entry.RequestID)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Actor = id.OperatorID(actor)
		entry.Action = audit.Action(action)
		if subject != nil {
			accountID := id.AccountID(*subject)
			entry.Subject = &accountID
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &entry.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

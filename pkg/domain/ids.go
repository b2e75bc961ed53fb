// Package domain defines the typed identifiers shared across the archival
// subsystem. IDs are distinct types over uuid.UUID so an operator ID can
// never be passed where an account ID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "archivist/pkg/domain-errors"
)

// AccountID identifies the subject of a lifecycle operation: the patient,
// clinician, or administrator account being archived or purged.
type AccountID uuid.UUID

// OperatorID identifies the authenticated actor performing a lifecycle
// operation. Authorization happens at the API boundary; by the time an
// OperatorID reaches a service it is already verified.
type OperatorID uuid.UUID

func (a AccountID) IsNil() bool    { return uuid.UUID(a) == uuid.Nil }
func (a AccountID) String() string { return uuid.UUID(a).String() }

func (o OperatorID) IsNil() bool    { return uuid.UUID(o) == uuid.Nil }
func (o OperatorID) String() string { return uuid.UUID(o).String() }

// ParseAccountID parses and validates an account ID from its string form.
// Empty strings, malformed UUIDs, and the nil UUID are all rejected: IDs
// crossing a trust boundary must be valid, non-empty, and non-nil.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID(u), nil
}

// ParseOperatorID parses and validates an operator ID from its string form.
func ParseOperatorID(s string) (OperatorID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return OperatorID{}, err
	}
	return OperatorID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}

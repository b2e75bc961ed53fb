package models

import (
	"strings"

	dErrors "archivist/pkg/domain-errors"
)

// ArchiveReason is the closed set of grounds for taking an account out of
// active care. Free-text context goes in the comment field; the reason
// itself stays enumerable so statistics can group by it.
type ArchiveReason string

const (
	ReasonCured              ArchiveReason = "cured"
	ReasonTransferred        ArchiveReason = "transferred"
	ReasonDeceased           ArchiveReason = "deceased"
	ReasonTreatmentCompleted ArchiveReason = "treatment_completed"
	ReasonInactive           ArchiveReason = "inactive"
	ReasonResignation        ArchiveReason = "resignation"
	ReasonTestAccount        ArchiveReason = "test_account"
	ReasonRegulatory         ArchiveReason = "regulatory"
	ReasonOther              ArchiveReason = "other"
)

var archiveReasons = map[ArchiveReason]struct{}{
	ReasonCured:              {},
	ReasonTransferred:        {},
	ReasonDeceased:           {},
	ReasonTreatmentCompleted: {},
	ReasonInactive:           {},
	ReasonResignation:        {},
	ReasonTestAccount:        {},
	ReasonRegulatory:         {},
	ReasonOther:              {},
}

// Valid reports whether the reason belongs to the closed enum.
func (r ArchiveReason) Valid() bool {
	_, ok := archiveReasons[r]
	return ok
}

// ParseArchiveReason canonicalizes and validates a reason string.
func ParseArchiveReason(s string) (ArchiveReason, error) {
	r := ArchiveReason(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", dErrors.New(dErrors.CodeValidation, "archive reason not recognized")
	}
	return r, nil
}

// Role is the closed set of account roles in the monitoring platform.
// Roles are owned by account management; the archival subsystem only reads
// them for statistics grouping.
type Role string

const (
	RolePatient       Role = "patient"
	RoleClinician     Role = "clinician"
	RoleAdministrator Role = "administrator"
)

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleClinician, RoleAdministrator:
		return true
	}
	return false
}

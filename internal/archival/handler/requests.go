package handler

import (
	"strings"

	"archivist/internal/archival/models"
	id "archivist/pkg/domain"
	dErrors "archivist/pkg/domain-errors"
)

// ArchiveRequest is the body for POST /admin/accounts/{id}/archive.
type ArchiveRequest struct {
	Reason  string `json:"reason"`
	Comment string `json:"comment"`
}

func (r *ArchiveRequest) Normalize() {
	r.Reason = strings.ToLower(strings.TrimSpace(r.Reason))
	r.Comment = strings.TrimSpace(r.Comment)
}

func (r *ArchiveRequest) Validate() error {
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return models.ValidateComment(r.Comment)
}

// UnarchiveRequest is the body for POST /admin/accounts/{id}/unarchive.
type UnarchiveRequest struct {
	Reason string `json:"reason"`
}

func (r *UnarchiveRequest) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *UnarchiveRequest) Validate() error {
	return models.ValidateComment(r.Reason)
}

// BulkArchiveRequest is the body for POST /admin/accounts/bulk-archive.
type BulkArchiveRequest struct {
	SubjectIDs []string `json:"subject_ids"`
	Reason     string   `json:"reason"`
	Comment    string   `json:"comment"`
}

const maxBulkSubjects = 500

func (r *BulkArchiveRequest) Normalize() {
	r.Reason = strings.ToLower(strings.TrimSpace(r.Reason))
	r.Comment = strings.TrimSpace(r.Comment)
	for i := range r.SubjectIDs {
		r.SubjectIDs[i] = strings.TrimSpace(r.SubjectIDs[i])
	}
}

func (r *BulkArchiveRequest) Validate() error {
	if len(r.SubjectIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "subject_ids must not be empty")
	}
	if len(r.SubjectIDs) > maxBulkSubjects {
		return dErrors.New(dErrors.CodeValidation, "too many subjects in one batch")
	}
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return models.ValidateComment(r.Comment)
}

// ParsedSubjectIDs converts the raw subject IDs, rejecting the whole batch
// on the first malformed one so no partial work starts on bad input.
func (r *BulkArchiveRequest) ParsedSubjectIDs() ([]id.AccountID, error) {
	out := make([]id.AccountID, 0, len(r.SubjectIDs))
	for _, raw := range r.SubjectIDs {
		accountID, err := id.ParseAccountID(raw)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "subject_ids contains a malformed account ID")
		}
		out = append(out, accountID)
	}
	return out, nil
}

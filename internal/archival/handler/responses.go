package handler

import (
	"time"

	"archivist/internal/archival/models"
	"archivist/internal/archival/service"
	"archivist/pkg/platform/audit"
)

// AccountResponse is the archival view of an account on the wire.
type AccountResponse struct {
	ID               string                     `json:"id"`
	Role             string                     `json:"role"`
	Archived         bool                       `json:"archived"`
	ArchivedAt       *time.Time                 `json:"archived_at,omitempty"`
	ScheduledPurgeAt *time.Time                 `json:"scheduled_purge_at,omitempty"`
	Archival         *models.ArchivalMetadata   `json:"archival,omitempty"`
	Snapshot         *models.PreArchiveSnapshot `json:"snapshot,omitempty"`
}

func fromAccount(acct *models.Account) AccountResponse {
	return AccountResponse{
		ID:               acct.ID.String(),
		Role:             string(acct.Role),
		Archived:         acct.Archived,
		ArchivedAt:       acct.ArchivedAt,
		ScheduledPurgeAt: acct.ScheduledPurgeAt,
		Archival:         acct.Archival,
		Snapshot:         acct.Snapshot,
	}
}

// ArchivalResponse wraps the account state after archive/unarchive.
type ArchivalResponse struct {
	Account          AccountResponse `json:"account"`
	ScheduledPurgeAt *time.Time      `json:"scheduled_purge_at,omitempty"`
}

func fromArchivalResult(result *service.ArchivalResult) ArchivalResponse {
	return ArchivalResponse{
		Account:          fromAccount(result.Account),
		ScheduledPurgeAt: result.ScheduledPurgeAt,
	}
}

// DeleteResponse confirms a permanent deletion.
type DeleteResponse struct {
	SubjectID               string    `json:"subject_id"`
	DeletedAt               time.Time `json:"deleted_at"`
	DependentRecordsRemoved int       `json:"dependent_records_removed"`
	SessionsRevoked         int       `json:"sessions_revoked"`
}

func fromConfirmation(c *service.DeleteConfirmation) DeleteResponse {
	return DeleteResponse{
		SubjectID:               c.SubjectID.String(),
		DeletedAt:               c.DeletedAt,
		DependentRecordsRemoved: c.DependentRecordsRemoved,
		SessionsRevoked:         c.SessionsRevoked,
	}
}

// BulkItemResponse is one subject's outcome in a bulk archive.
type BulkItemResponse struct {
	SubjectID        string     `json:"subject_id"`
	Archived         bool       `json:"archived"`
	ScheduledPurgeAt *time.Time `json:"scheduled_purge_at,omitempty"`
	Failure          string     `json:"failure,omitempty"`
	Error            string     `json:"error,omitempty"`
}

// BulkResponse aggregates a bulk archive.
type BulkResponse struct {
	Items     []BulkItemResponse `json:"items"`
	Total     int                `json:"total"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

func fromBulkResult(result *service.BulkResult) BulkResponse {
	resp := BulkResponse{
		Items:     make([]BulkItemResponse, len(result.Items)),
		Total:     result.Total,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
	}
	for i, item := range result.Items {
		resp.Items[i] = BulkItemResponse{
			SubjectID:        item.SubjectID.String(),
			Archived:         item.Archived,
			ScheduledPurgeAt: item.ScheduledPurgeAt,
			Failure:          string(item.Failure),
			Error:            item.Error,
		}
	}
	return resp
}

// AuditEntryResponse is one trail entry on the wire.
type AuditEntryResponse struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor"`
	Subject   string         `json:"subject,omitempty"`
	Action    string         `json:"action"`
	Reason    string         `json:"reason,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

func fromAuditEntries(entries []audit.Entry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, entry := range entries {
		out[i] = AuditEntryResponse{
			ID:        entry.ID.String(),
			Timestamp: entry.Timestamp,
			Actor:     entry.Actor.String(),
			Action:    string(entry.Action),
			Reason:    entry.Reason,
			Detail:    entry.Detail,
			RequestID: entry.RequestID,
		}
		if entry.Subject != nil {
			out[i].Subject = entry.Subject.String()
		}
	}
	return out
}

// Package handler exposes the archival lifecycle over the admin HTTP surface.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"archivist/internal/archival/service"
	id "archivist/pkg/domain"
	dErrors "archivist/pkg/domain-errors"
	"archivist/pkg/platform/audit"
	"archivist/pkg/platform/httputil"
	"archivist/pkg/requestcontext"
)

// Service is the lifecycle surface the handler drives.
type Service interface {
	Archive(ctx context.Context, subjectID id.AccountID, operatorID id.OperatorID, reason, comment string) (*service.ArchivalResult, error)
	Unarchive(ctx context.Context, subjectID id.AccountID, operatorID id.OperatorID, reason string) (*service.ArchivalResult, error)
	PermanentlyDelete(ctx context.Context, subjectID id.AccountID, operatorID id.OperatorID) (*service.DeleteConfirmation, error)
	BulkArchive(ctx context.Context, subjectIDs []id.AccountID, operatorID id.OperatorID, reason, comment string) (*service.BulkResult, error)
	GetStatistics(ctx context.Context) (*service.Statistics, error)
}

// AuditReader is the read-only trail surface.
type AuditReader interface {
	FindBySubject(ctx context.Context, subject id.AccountID) ([]audit.Entry, error)
	FindByActor(ctx context.Context, actor id.OperatorID) ([]audit.Entry, error)
}

type Handler struct {
	service Service
	trail   AuditReader
	logger  *slog.Logger
}

func New(svc Service, trail AuditReader, logger *slog.Logger) *Handler {
	return &Handler{service: svc, trail: trail, logger: logger}
}

// Register mounts the archival endpoints. The caller wraps the router with
// the admin-token, request-id, request-time, and operator middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/accounts/bulk-archive", h.HandleBulkArchive)
	r.Get("/admin/accounts/archival-stats", h.HandleStatistics)
	r.Post("/admin/accounts/{id}/archive", h.HandleArchive)
	r.Post("/admin/accounts/{id}/unarchive", h.HandleUnarchive)
	r.Delete("/admin/accounts/{id}", h.HandleDelete)
	r.Get("/admin/accounts/{id}/audit", h.HandleSubjectAudit)
	r.Get("/admin/operators/{id}/audit", h.HandleActorAudit)
}

func (h *Handler) subjectID(w http.ResponseWriter, r *http.Request) (id.AccountID, bool) {
	accountID, err := id.ParseAccountID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.AccountID{}, false
	}
	return accountID, true
}

func (h *Handler) operatorID(w http.ResponseWriter, r *http.Request) (id.OperatorID, bool) {
	operatorID := requestcontext.OperatorID(r.Context())
	if operatorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "operator identity required"))
		return id.OperatorID{}, false
	}
	return operatorID, true
}

// HandleArchive handles POST /admin/accounts/{id}/archive.
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	operatorID, ok := h.operatorID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ArchiveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Archive(ctx, subjectID, operatorID, req.Reason, req.Comment)
	if err != nil {
		h.logger.WarnContext(ctx, "archive rejected",
			"request_id", requestID,
			"account_id", subjectID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "account archived",
		"request_id", requestID,
		"account_id", subjectID.String(),
		"reason", req.Reason,
	)
	httputil.WriteJSON(w, http.StatusOK, fromArchivalResult(result))
}

// HandleUnarchive handles POST /admin/accounts/{id}/unarchive.
func (h *Handler) HandleUnarchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	operatorID, ok := h.operatorID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UnarchiveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Unarchive(ctx, subjectID, operatorID, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "unarchive rejected",
			"request_id", requestID,
			"account_id", subjectID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "account unarchived",
		"request_id", requestID,
		"account_id", subjectID.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, fromArchivalResult(result))
}

// HandleDelete handles DELETE /admin/accounts/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	operatorID, ok := h.operatorID(w, r)
	if !ok {
		return
	}

	confirmation, err := h.service.PermanentlyDelete(ctx, subjectID, operatorID)
	if err != nil {
		h.logger.WarnContext(ctx, "permanent deletion rejected",
			"request_id", requestID,
			"account_id", subjectID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "account permanently deleted",
		"request_id", requestID,
		"account_id", subjectID.String(),
		"dependent_records_removed", confirmation.DependentRecordsRemoved,
	)
	httputil.WriteJSON(w, http.StatusOK, fromConfirmation(confirmation))
}

// HandleBulkArchive handles POST /admin/accounts/bulk-archive.
func (h *Handler) HandleBulkArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	operatorID, ok := h.operatorID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[BulkArchiveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	subjectIDs, err := req.ParsedSubjectIDs()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.BulkArchive(ctx, subjectIDs, operatorID, req.Reason, req.Comment)
	if err != nil {
		h.logger.WarnContext(ctx, "bulk archive rejected",
			"request_id", requestID,
			"subjects", len(subjectIDs),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "bulk archive completed",
		"request_id", requestID,
		"total", result.Total,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	// Partial failure is still a completed batch; 207 signals mixed outcomes.
	status := http.StatusOK
	if result.Failed > 0 {
		status = http.StatusMultiStatus
	}
	httputil.WriteJSON(w, status, fromBulkResult(result))
}

// HandleStatistics handles GET /admin/accounts/archival-stats.
func (h *Handler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.service.GetStatistics(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to aggregate statistics",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// HandleSubjectAudit handles GET /admin/accounts/{id}/audit.
func (h *Handler) HandleSubjectAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	entries, err := h.trail.FindBySubject(ctx, subjectID)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit trail"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromAuditEntries(entries))
}

// HandleActorAudit handles GET /admin/operators/{id}/audit.
func (h *Handler) HandleActorAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	operatorID, err := id.ParseOperatorID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.trail.FindByActor(ctx, operatorID)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit trail"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromAuditEntries(entries))
}

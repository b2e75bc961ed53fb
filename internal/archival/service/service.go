// Package service orchestrates the account archival lifecycle: archive,
// unarchive, permanent deletion, bulk archive, and statistics.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"archivist/internal/archival/metrics"
	"archivist/internal/archival/models"
	"archivist/internal/archival/store/measurement"
	id "archivist/pkg/domain"
	dErrors "archivist/pkg/domain-errors"
	"archivist/pkg/platform/audit"
	"archivist/pkg/platform/sentinel"
)

// Error taxonomy surfaced by the lifecycle operations. All are terminal:
// the service never retries, and a failed precondition leaves no partial
// mutation, so callers may retry safely.
var (
	ErrSubjectNotFound  = dErrors.New(dErrors.CodeNotFound, "subject not found")
	ErrOperatorNotFound = dErrors.New(dErrors.CodeNotFound, "operator not found")
	ErrAlreadyArchived  = dErrors.New(dErrors.CodeConflict, "account is already archived")
	ErrNotArchived      = dErrors.New(dErrors.CodeConflict, "account is not archived")
)

type AccountStore interface {
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	Execute(ctx context.Context, accountID id.AccountID, validate func(*models.Account) error, mutate func(*models.Account)) (*models.Account, error)
	DeleteIf(ctx context.Context, accountID id.AccountID, validate func(*models.Account) error) error
	CountArchived(ctx context.Context) (int, error)
	CountArchivedSince(ctx context.Context, since time.Time) (int, error)
	CountArchivedByReason(ctx context.Context) (map[models.ArchiveReason]int, error)
	CountArchivedByRole(ctx context.Context) (map[models.Role]int, error)
	CountPurgeDueBefore(ctx context.Context, now time.Time) (int, error)
}

// MeasurementStore owns the dependent clinical data erased during purge and
// summarized into the pre-archive snapshot.
type MeasurementStore interface {
	Summarize(ctx context.Context, accountID id.AccountID) (measurement.Summary, error)
	DeleteByAccount(ctx context.Context, accountID id.AccountID) (int, error)
}

// SessionStore revokes active login sessions when an account leaves the
// active state.
type SessionStore interface {
	RevokeByAccount(ctx context.Context, accountID id.AccountID) (int, error)
}

// OperatorDirectory resolves operator identities. Authorization itself is
// the caller's concern; the service only verifies the operator exists.
type OperatorDirectory interface {
	Exists(ctx context.Context, operatorID id.OperatorID) (bool, error)
}

// Notifier informs the subject and staff of state changes. Every call is
// fire-and-forget: a notification failure never fails the operation.
type Notifier interface {
	AccountArchived(ctx context.Context, accountID id.AccountID, reason models.ArchiveReason)
	AccountUnarchived(ctx context.Context, accountID id.AccountID)
	AccountPurged(ctx context.Context, accountID id.AccountID)
}

// AuditRecorder appends to the immutable trail. Record never fails the
// caller; Count backs the statistics self-check.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
	Count(ctx context.Context) (int, error)
}

// Service is the archival lifecycle orchestrator. All collaborators are
// constructor-injected; the clock comes from the request context so
// retention boundaries are deterministic under test.
type Service struct {
	accounts     AccountStore
	measurements MeasurementStore
	sessions     SessionStore
	operators    OperatorDirectory
	recorder     AuditRecorder
	notifier     Notifier
	logger       *slog.Logger
	metrics      *metrics.Metrics

	bulkConcurrency int
}

type Option func(*Service)

func WithSessions(sessions SessionStore) Option {
	return func(s *Service) { s.sessions = sessions }
}

func WithOperatorDirectory(operators OperatorDirectory) Option {
	return func(s *Service) { s.operators = operators }
}

func WithNotifier(notifier Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithBulkConcurrency bounds how many subjects a bulk operation works on
// at once.
func WithBulkConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.bulkConcurrency = n
		}
	}
}

func New(accounts AccountStore, measurements MeasurementStore, recorder AuditRecorder, opts ...Option) *Service {
	s := &Service{
		accounts:        accounts,
		measurements:    measurements,
		recorder:        recorder,
		logger:          slog.Default(),
		bulkConcurrency: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// requireIdentities rejects nil IDs and, when a directory is wired,
// unknown operators.
func (s *Service) requireIdentities(ctx context.Context, subjectID id.AccountID, operatorID id.OperatorID) error {
	if subjectID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "subject ID required")
	}
	if operatorID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "operator ID required")
	}
	if s.operators != nil {
		exists, err := s.operators.Exists(ctx, operatorID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve operator")
		}
		if !exists {
			return ErrOperatorNotFound
		}
	}
	return nil
}

// wrapAccountErr translates store sentinels into the service taxonomy.
func wrapAccountErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return ErrSubjectNotFound
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "account store failure")
}

func (s *Service) notify(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("notifier panicked", "panic", r)
		}
	}()
	fn()
}

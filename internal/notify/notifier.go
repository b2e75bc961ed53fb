// Package notify delivers lifecycle notifications to operations staff.
// Delivery is best-effort; lifecycle operations never block or fail on
// a notification.
package notify

import (
	"context"
	"log/slog"

	"archivist/internal/archival/models"
	id "archivist/pkg/domain"
)

// Log emits notifications as structured log events. It stands in for a
// mail or paging integration and is the default notifier in every
// deployment without one configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "notify")}
}

func (n *Log) AccountArchived(ctx context.Context, accountID id.AccountID, reason models.ArchiveReason) {
	n.logger.InfoContext(ctx, "notification: account archived",
		"account_id", accountID.String(),
		"reason", string(reason),
	)
}

func (n *Log) AccountUnarchived(ctx context.Context, accountID id.AccountID) {
	n.logger.InfoContext(ctx, "notification: account restored",
		"account_id", accountID.String(),
	)
}

func (n *Log) AccountPurged(ctx context.Context, accountID id.AccountID) {
	n.logger.InfoContext(ctx, "notification: account permanently deleted",
		"account_id", accountID.String(),
	)
}

// PurgeDue is invoked by the retention sweeper with accounts past their
// scheduled purge date. Deletion itself remains an operator action.
func (n *Log) PurgeDue(ctx context.Context, due []*models.Account, total int) {
	ids := make([]string, 0, len(due))
	for _, acc := range due {
		ids = append(ids, acc.ID.String())
	}
	n.logger.WarnContext(ctx, "notification: accounts past retention window",
		"due_count", total,
		"account_ids", ids,
	)
}

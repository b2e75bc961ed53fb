package account

import (
	"context"
	"sync"
	"time"

	"archivist/internal/archival/models"
	id "archivist/pkg/domain"
	"archivist/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded account store for tests and local development.
// It provides the same atomic validate-then-mutate contract as the Postgres
// store: Execute and DeleteIf hold the lock for both the check and the
// change, so two concurrent archive calls on one subject cannot both pass
// the precondition.
type InMemory struct {
	mu       sync.Mutex
	accounts map[id.AccountID]*models.Account
}

func NewInMemory() *InMemory {
	return &InMemory{accounts: make(map[id.AccountID]*models.Account)}
}

// Create registers an account. Account creation belongs to account
// management; this exists so tests and local wiring can seed subjects.
func (s *InMemory) Create(_ context.Context, acct *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[acct.ID]; exists {
		return sentinel.ErrConflict
	}
	s.accounts[acct.ID] = clone(acct)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(acct), nil
}

// Execute runs validate then mutate on the account under the store lock and
// persists the result. If validate fails nothing is written and the error is
// returned unchanged, so services can translate it without unwrapping.
func (s *InMemory) Execute(_ context.Context, accountID id.AccountID, validate func(*models.Account) error, mutate func(*models.Account)) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := clone(acct)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.accounts[accountID] = working

	return clone(working), nil
}

// DeleteIf removes the account only when validate passes while the lock is
// held. Deletion is terminal: later lookups return sentinel.ErrNotFound.
func (s *InMemory) DeleteIf(_ context.Context, accountID id.AccountID, validate func(*models.Account) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if err := validate(clone(acct)); err != nil {
		return err
	}
	delete(s.accounts, accountID)
	return nil
}

func (s *InMemory) CountArchived(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, acct := range s.accounts {
		if acct.Archived {
			n++
		}
	}
	return n, nil
}

func (s *InMemory) CountArchivedSince(_ context.Context, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, acct := range s.accounts {
		if acct.Archived && acct.ArchivedAt != nil && !acct.ArchivedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *InMemory) CountArchivedByReason(_ context.Context) (map[models.ArchiveReason]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[models.ArchiveReason]int)
	for _, acct := range s.accounts {
		if acct.Archived && acct.Archival != nil {
			counts[acct.Archival.Reason]++
		}
	}
	return counts, nil
}

func (s *InMemory) CountArchivedByRole(_ context.Context) (map[models.Role]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[models.Role]int)
	for _, acct := range s.accounts {
		if acct.Archived {
			counts[acct.Role]++
		}
	}
	return counts, nil
}

func (s *InMemory) CountPurgeDueBefore(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, acct := range s.accounts {
		if acct.Archived && acct.ScheduledPurgeAt != nil && !now.Before(*acct.ScheduledPurgeAt) {
			n++
		}
	}
	return n, nil
}

func (s *InMemory) ListPurgeDueBefore(_ context.Context, now time.Time, limit int) ([]*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*models.Account
	for _, acct := range s.accounts {
		if len(due) == limit {
			break
		}
		if acct.Archived && acct.ScheduledPurgeAt != nil && !now.Before(*acct.ScheduledPurgeAt) {
			due = append(due, clone(acct))
		}
	}
	return due, nil
}

// clone deep-copies an account so callers never alias store-owned state.
func clone(acct *models.Account) *models.Account {
	cp := *acct
	if acct.ArchivedAt != nil {
		t := *acct.ArchivedAt
		cp.ArchivedAt = &t
	}
	if acct.ScheduledPurgeAt != nil {
		t := *acct.ScheduledPurgeAt
		cp.ScheduledPurgeAt = &t
	}
	if acct.Archival != nil {
		meta := *acct.Archival
		meta.Supersessions = append([]models.Supersession(nil), acct.Archival.Supersessions...)
		cp.Archival = &meta
	}
	if acct.Snapshot != nil {
		snap := *acct.Snapshot
		if acct.Snapshot.LastMeasurementAt != nil {
			t := *acct.Snapshot.LastMeasurementAt
			snap.LastMeasurementAt = &t
		}
		cp.Snapshot = &snap
	}
	return &cp
}

// Package measurement stores the dependent clinical data attached to an
// account: measurement readings and clinician notes. The archival subsystem
// touches this data in exactly two places: summarizing it into the
// pre-archive snapshot, and erasing it during permanent deletion.
package measurement

import (
	"context"
	"sync"
	"time"

	id "archivist/pkg/domain"
)

// Summary is the per-account aggregate captured into the pre-archive snapshot.
type Summary struct {
	MeasurementCount  int
	NoteCount         int
	LastMeasurementAt *time.Time
}

// Measurement is a single recorded reading.
type Measurement struct {
	AccountID  id.AccountID
	Kind       string
	Value      float64
	RecordedAt time.Time
}

// Note is a free-text clinician note on an account.
type Note struct {
	AccountID id.AccountID
	Body      string
	CreatedAt time.Time
}

type InMemory struct {
	mu           sync.Mutex
	measurements map[id.AccountID][]Measurement
	notes        map[id.AccountID][]Note
}

func NewInMemory() *InMemory {
	return &InMemory{
		measurements: make(map[id.AccountID][]Measurement),
		notes:        make(map[id.AccountID][]Note),
	}
}

func (s *InMemory) AddMeasurement(_ context.Context, m Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.measurements[m.AccountID] = append(s.measurements[m.AccountID], m)
	return nil
}

func (s *InMemory) AddNote(_ context.Context, n Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[n.AccountID] = append(s.notes[n.AccountID], n)
	return nil
}

func (s *InMemory) Summarize(_ context.Context, accountID id.AccountID) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := Summary{
		MeasurementCount: len(s.measurements[accountID]),
		NoteCount:        len(s.notes[accountID]),
	}
	for _, m := range s.measurements[accountID] {
		if summary.LastMeasurementAt == nil || m.RecordedAt.After(*summary.LastMeasurementAt) {
			at := m.RecordedAt
			summary.LastMeasurementAt = &at
		}
	}
	return summary, nil
}

// DeleteByAccount erases all measurements and notes for the account and
// reports how many records were removed.
func (s *InMemory) DeleteByAccount(_ context.Context, accountID id.AccountID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.measurements[accountID]) + len(s.notes[accountID])
	delete(s.measurements, accountID)
	delete(s.notes, accountID)
	return removed, nil
}

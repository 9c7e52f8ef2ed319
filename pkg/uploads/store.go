package uploads

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

func uploadErrNotFoundByID(id string) error {
	return fmt.Errorf("transfer %s not found", id)
}

func uploadErrNotCompleted(id string) error {
	return fmt.Errorf("transfer %s is not completed", id)
}

// TransferStore is the persistent set of Transfer rows, keyed by Id. The
// core treats it as an external collaborator; writers are only the
// Scheduler's callback handlers and Manager's explicit management
// operations, readers use snapshot reads (Clone).
type TransferStore interface {
	// AddOrSupersede writes tx as a new row. If an active (non-Removed,
	// non-Completed) row already exists for (Username, Filename), that
	// prior row is marked Removed first.
	AddOrSupersede(tx *Transfer) error

	// Update persists the current state of an existing row, matched by Id.
	Update(tx *Transfer) error

	// Find returns the row with the given Id, or nil if none exists.
	Find(id string) (*Transfer, error)

	// List returns every row matching predicate. includeRemoved controls
	// whether soft-deleted rows are considered.
	List(predicate func(*Transfer) bool, includeRemoved bool) ([]*Transfer, error)

	// SoftDelete marks the row with the given Id Removed. Returns an error
	// if the row is not in a Completed state.
	SoftDelete(id string) error
}

// MemoryTransferStore is a reference, in-memory TransferStore implementation
// for the demo entrypoint and for tests. Every returned Transfer is a
// Clone, so callers cannot mutate the store's own record.
type MemoryTransferStore struct {
	mu   sync.RWMutex
	rows map[string]*Transfer
}

// NewMemoryTransferStore creates an empty MemoryTransferStore.
func NewMemoryTransferStore() *MemoryTransferStore {
	return &MemoryTransferStore{rows: make(map[string]*Transfer)}
}

func (s *MemoryTransferStore) AddOrSupersede(tx *Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.Id == "" {
		tx.Id = uuid.NewString()
	}

	for _, row := range s.rows {
		if row.Removed || row.State.Has(StateCompleted) {
			continue
		}
		if row.Username == tx.Username && row.Filename == tx.Filename {
			row.Removed = true
		}
	}

	s.rows[tx.Id] = tx.Clone()
	return nil
}

func (s *MemoryTransferStore) Update(tx *Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[tx.Id]; !ok {
		return uploadErrNotFoundByID(tx.Id)
	}
	s.rows[tx.Id] = tx.Clone()
	return nil
}

func (s *MemoryTransferStore) Find(id string) (*Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return row.Clone(), nil
}

func (s *MemoryTransferStore) List(predicate func(*Transfer) bool, includeRemoved bool) ([]*Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Transfer
	for _, row := range s.rows {
		if row.Removed && !includeRemoved {
			continue
		}
		if predicate != nil && !predicate(row) {
			continue
		}
		out = append(out, row.Clone())
	}
	return out, nil
}

func (s *MemoryTransferStore) SoftDelete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return uploadErrNotFoundByID(id)
	}
	if !row.State.Has(StateCompleted) {
		return uploadErrNotCompleted(id)
	}
	row.Removed = true
	return nil
}

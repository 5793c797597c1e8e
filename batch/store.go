package batch

import (
	"fmt"
	"sync"

	"github.com/lumahq/chainmesh/core"
)

// InMemoryStore is a volatile core.BatchStore keeping batch records in a
// process local map. It is safe for concurrent access. Get returns a deep
// snapshot so readers never observe in-progress mutation; all writes go
// through Update under the store lock.
type InMemoryStore struct {
	mu      sync.RWMutex
	batches map[string]*core.BatchExecution
}

// NewInMemoryStore constructs an empty in-memory batch store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{batches: make(map[string]*core.BatchExecution)}
}

// Create stores a new batch record.
func (s *InMemoryStore) Create(b *core.BatchExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[b.BatchID]; exists {
		return fmt.Errorf("batch %s already exists", b.BatchID)
	}
	s.batches[b.BatchID] = b
	return nil
}

// Get returns a snapshot of the batch or core.ErrBatchNotFound.
func (s *InMemoryStore) Get(batchID string) (*core.BatchExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("batch %q: %w", batchID, core.ErrBatchNotFound)
	}
	return snapshot(b), nil
}

// Update applies fn to the stored batch under the write lock.
func (s *InMemoryStore) Update(batchID string, fn func(b *core.BatchExecution)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return fmt.Errorf("batch %q: %w", batchID, core.ErrBatchNotFound)
	}
	fn(b)
	return nil
}

// snapshot deep-copies the batch record. Task results are copied by value;
// their inner slices are treated as immutable once a task reaches a terminal
// state.
func snapshot(b *core.BatchExecution) *core.BatchExecution {
	out := *b
	out.Tasks = make([]*core.BatchTask, len(b.Tasks))
	for i, task := range b.Tasks {
		t := *task
		if task.Result != nil {
			res := *task.Result
			t.Result = &res
		}
		out.Tasks[i] = &t
	}
	return &out
}

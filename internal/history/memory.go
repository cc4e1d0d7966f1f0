package history

import (
	"context"
	"sort"
	"sync"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store. It backs deployments without a database
// (records are lost on restart) and is the default store in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// ListByUser implements Store.
func (s *MemoryStore) ListByUser(_ context.Context, userID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0)
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// cloneRecord copies the record deeply enough that callers cannot mutate
// stored state through returned slices.
func cloneRecord(rec Record) Record {
	out := rec
	if rec.Entries != nil {
		out.Entries = append(out.Entries[:0:0], rec.Entries...)
	}
	if rec.Evaluation != nil {
		eval := *rec.Evaluation
		eval.Metrics = append(eval.Metrics[:0:0], rec.Evaluation.Metrics...)
		eval.Strengths = append(eval.Strengths[:0:0], rec.Evaluation.Strengths...)
		eval.Improvements = append(eval.Improvements[:0:0], rec.Evaluation.Improvements...)
		eval.RecommendedActions = append(eval.RecommendedActions[:0:0], rec.Evaluation.RecommendedActions...)
		out.Evaluation = &eval
	}
	return out
}

package pipeline

import (
	"fmt"

	"github.com/ak/cellpipe/internal/handle"
)

// ValueStore is the per-job container for produced handle values. It is
// owned exclusively by the job that created it and written incrementally as
// steps complete. A handle, once written, is never overwritten.
type ValueStore struct {
	values map[string]handle.Value
	order  []string
}

// NewValueStore creates an empty per-job value store.
func NewValueStore() *ValueStore {
	return &ValueStore{values: make(map[string]handle.Value)}
}

// Put stores a produced value under its handle name. Writing a name twice is
// an error: pipeline build rejects duplicate output handles, so a collision
// here means the store is being misused.
func (s *ValueStore) Put(name string, v handle.Value) error {
	if _, exists := s.values[name]; exists {
		return fmt.Errorf("value store: handle '%s' already written", name)
	}
	s.values[name] = v
	s.order = append(s.order, name)
	return nil
}

// Get returns the value stored under a handle name.
func (s *ValueStore) Get(name string) (handle.Value, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Keys returns the stored handle names in production order.
func (s *ValueStore) Keys() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of stored handles.
func (s *ValueStore) Len() int { return len(s.values) }

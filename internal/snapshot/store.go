// Package snapshot hands pre-call state from a method's entry to its exit.
//
// The entry hook clones the instance and pushes the clone; the store answers
// with a CallID that the interception runtime keeps in the call frame and hands
// back to the exit hook. Entries are keyed by that id rather than stacked, so a
// recursive or concurrent call can never consume another call's snapshot.
package snapshot

import (
	"reflect"
	"sync"
)

// CallID identifies one intercepted call from entry to exit.
type CallID int64

// Sequencer hands out call ids. *Clock is the production implementation.
type Sequencer interface {
	Next() int64
}

// Stats counts store operations since creation.
type Stats struct {
	Pushes   uint64
	Pops     uint64
	Discards uint64
}

// Store is a call-id keyed snapshot store. Safe for concurrent use.
type Store struct {
	seq Sequencer

	mu      sync.Mutex
	entries map[CallID]reflect.Value
	stats   Stats
}

// NewStore creates a store. A nil seq uses a fresh Clock.
func NewStore(seq Sequencer) *Store {
	if seq == nil {
		seq = NewClock()
	}
	return &Store{
		seq:     seq,
		entries: make(map[CallID]reflect.Value),
	}
}

// Push stores a snapshot and returns the id of the call it belongs to.
func (s *Store) Push(snap reflect.Value) CallID {
	id := CallID(s.seq.Next())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = snap
	s.stats.Pushes++
	return id
}

// Pop removes and returns the snapshot of call id. ok is false when the call
// has no snapshot, which means the entry hook never ran for it or the entry
// was already consumed.
func (s *Store) Pop(id CallID) (snap reflect.Value, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok = s.entries[id]
	if ok {
		delete(s.entries, id)
		s.stats.Pops++
	}
	return snap, ok
}

// Discard drops the snapshot of call id if it is still present. Used when the
// hooked method panicked and the exit hook never ran.
func (s *Store) Discard(id CallID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	s.stats.Discards++
	return true
}

// Len returns the number of outstanding snapshots.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats returns operation counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Clone returns a shallow field-wise copy of a pointer's target as a new
// pointer of the same type. Slices, maps and pointers inside the copy still
// share storage with the original. Non-pointer values are already copies and
// are returned as they are; a nil pointer clones to a nil pointer.
func Clone(v reflect.Value) reflect.Value {
	if !v.IsValid() || v.Kind() != reflect.Pointer {
		return v
	}
	if v.IsNil() {
		return reflect.Zero(v.Type())
	}
	c := reflect.New(v.Type().Elem())
	c.Elem().Set(v.Elem())
	return c
}

package flow

import (
	"container/list"
	"sync"
	"time"

	"github.com/AliyanOranje/sweepalgo-backend/internal/metrics"
)

// DefaultMaxTrades is the store capacity when none is configured
const DefaultMaxTrades = 100000

// Store is a concurrent, bounded, insertion-ordered map of flow records.
// One writer path (the ingestor) and many readers; readers materialise a
// snapshot under a short shared lock and evaluate filters lock-free.
type Store struct {
	mu      sync.RWMutex
	max     int
	order   *list.List // of Flow, oldest at front
	byID    map[string]*list.Element
	evicted uint64 // capacity evictions since start
	swept   uint64 // age-sweep removals since start
}

// NewStore creates a store with the given capacity
func NewStore(max int) *Store {
	if max <= 0 {
		max = DefaultMaxTrades
	}
	return &Store{
		max:   max,
		order: list.New(),
		byID:  make(map[string]*list.Element),
	}
}

// Insert adds a flow record, evicting the oldest entry when at capacity.
// A duplicate id replaces the existing record in place.
func (s *Store) Insert(f Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.byID[f.ID]; ok {
		el.Value = f
		return
	}

	if s.order.Len() >= s.max {
		oldest := s.order.Front()
		if oldest != nil {
			s.order.Remove(oldest)
			delete(s.byID, oldest.Value.(Flow).ID)
			s.evicted++
			metrics.StoreEvictions.WithLabelValues("capacity").Inc()
		}
	}

	s.byID[f.ID] = s.order.PushBack(f)
}

// AgeSweep removes every record whose event-time is older than maxAge.
// Returns the number of records removed.
func (s *Store) AgeSweep(maxAge time.Duration, now time.Time) int {
	cutoff := now.Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		f := el.Value.(Flow)
		if f.Timestamp.Before(cutoff) {
			s.order.Remove(el)
			delete(s.byID, f.ID)
			removed++
		}
		el = next
	}

	s.swept += uint64(removed)
	return removed
}

// Snapshot returns a copy of all records in insertion order
func (s *Store) Snapshot() []Flow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Flow, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(Flow))
	}
	return out
}

// Get returns the record with the given id
func (s *Store) Get(id string) (Flow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	el, ok := s.byID[id]
	if !ok {
		return Flow{}, false
	}
	return el.Value.(Flow), true
}

// Len returns the current record count
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.order.Len()
}

// Cap returns the configured capacity
func (s *Store) Cap() int {
	return s.max
}

// Stats returns lifetime eviction counters
func (s *Store) Stats() (evicted, swept uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evicted, s.swept
}

package events

import (
	"sync"
	"time"

	"github.com/flowcal/project/internal/timeutil"
)

// Store is the render-facing in-memory collection of one user's events. It
// is mutated only by the drag commit path (Patch), the delete path (Remove)
// and full reloads (Replace); the mutex serializes those call sites the way
// a single UI thread would.
type Store struct {
	mu     sync.Mutex
	events []Event
}

func NewStore() *Store {
	return &Store{}
}

// Replace swaps in a freshly loaded collection wholesale.
func (s *Store) Replace(events []Event) {
	copied := make([]Event, len(events))
	copy(copied, events)
	s.mu.Lock()
	s.events = copied
	s.mu.Unlock()
}

// Snapshot returns a copy of the current collection, order preserved.
func (s *Store) Snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]Event, len(s.events))
	copy(copied, s.events)
	return copied
}

// Get looks up one event by id.
func (s *Store) Get(eventID string) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.ID == eventID {
			return e, true
		}
	}
	return Event{}, false
}

// Patch updates one event's day and clock times in place after a committed
// drag. Returns false when the id is unknown.
func (s *Store) Patch(eventID string, date time.Time, startTime, endTime string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == eventID {
			s.events[i].Date = timeutil.DateOnly(date)
			s.events[i].StartTime = startTime
			s.events[i].EndTime = endTime
			return true
		}
	}
	return false
}

// Remove deletes one event by id, preserving the order of the survivors.
func (s *Store) Remove(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == eventID {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

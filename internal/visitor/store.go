package visitor

import (
	"sync"
	"time"
)

// DefaultMaxRecords is the capacity of the recent-visitor list.
const DefaultMaxRecords = 100

// Store keeps one record per (address, browser) pair, in insertion order.
//
// When the list grows past its capacity the oldest appended record is dropped,
// regardless of how recently it was refreshed. Every recorded visit is also
// counted by the store's FrequencyTracker.
type Store struct {
	mu         sync.Mutex
	records    []Record
	maxRecords int
	tracker    *FrequencyTracker
}

// NewStore creates a store with the default capacity.
func NewStore(tracker *FrequencyTracker) *Store {
	return NewStoreWithCapacity(tracker, DefaultMaxRecords)
}

// NewStoreWithCapacity creates a store holding at most maxRecords records.
// Non-positive values fall back to DefaultMaxRecords.
func NewStoreWithCapacity(tracker *FrequencyTracker, maxRecords int) *Store {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	if tracker == nil {
		tracker = NewFrequencyTracker()
	}
	return &Store{
		records:    make([]Record, 0, maxRecords+1),
		maxRecords: maxRecords,
		tracker:    tracker,
	}
}

// Record registers a visit.
//
// A returning visitor only has its path and last-seen time refreshed; the agent
// facts captured on the first visit are kept.
func (s *Store) Record(address, path string, facts AgentFacts, now time.Time) {
	key := Key{Address: address, Browser: facts.Browser}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Touch(key, now)

	for i := range s.records {
		if s.records[i].Key == key {
			s.records[i].Path = path
			s.records[i].LastSeenAt = now
			return
		}
	}

	s.records = append(s.records, Record{
		Key:        key,
		Path:       path,
		LastSeenAt: now,
		Facts:      facts,
	})
	if len(s.records) > s.maxRecords {
		s.records = append(s.records[:0], s.records[1:]...)
	}
}

// Snapshot returns a copy of all records, oldest appended first, enriched with
// visit counts from the tracker.
func (s *Store) Snapshot() []View {
	s.mu.Lock()
	records := make([]Record, len(s.records))
	copy(records, s.records)
	s.mu.Unlock()

	views := make([]View, len(records))
	for i, rec := range records {
		views[i] = View{
			Address:        rec.Key.Address,
			Path:           rec.Path,
			LastSeenAt:     rec.LastSeenAt,
			Browser:        rec.Facts.Browser,
			BrowserVersion: rec.Facts.BrowserVersion,
			Device:         rec.Facts.Device,
			DeviceType:     rec.Facts.DeviceType,
			OS:             rec.Facts.OS,
			RawAgent:       rec.Facts.RawAgent,
			VisitCount:     1,
			FirstVisitAt:   rec.LastSeenAt,
		}
		if stats, ok := s.tracker.Lookup(rec.Key); ok {
			views[i].VisitCount = stats.VisitCount
			views[i].FirstVisitAt = stats.FirstVisitAt
		}
	}
	return views
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Tracker returns the frequency tracker backing this store.
func (s *Store) Tracker() *FrequencyTracker {
	return s.tracker
}

package visitor

import (
	"sort"
	"sync"
	"time"
)

// FrequencyWindow is how far back RecentTimestamps reaches.
const FrequencyWindow = 24 * time.Hour

// FrequencyTracker keeps per-key visit statistics over a rolling window.
//
// Keys are never evicted: the map grows with the number of distinct
// (address, browser) pairs seen during the process lifetime. Len reports the
// current size so operators can keep an eye on it.
type FrequencyTracker struct {
	mu     sync.Mutex
	window time.Duration
	stats  map[Key]*FrequencyStats
}

// NewFrequencyTracker creates an empty tracker with the default 24h window.
func NewFrequencyTracker() *FrequencyTracker {
	return &FrequencyTracker{
		window: FrequencyWindow,
		stats:  make(map[Key]*FrequencyStats),
	}
}

// Touch records a visit for key at now.
func (t *FrequencyTracker) Touch(key Key, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[key]
	if !ok {
		t.stats[key] = &FrequencyStats{
			Key:              key,
			FirstVisitAt:     now,
			LastVisitAt:      now,
			VisitCount:       1,
			RecentTimestamps: []time.Time{now},
		}
		return
	}

	// Concurrent requests may touch out of order; the latest time wins.
	if now.After(s.LastVisitAt) {
		s.LastVisitAt = now
	}
	if now.Before(s.FirstVisitAt) {
		s.FirstVisitAt = now
	}
	s.VisitCount++
	s.RecentTimestamps = trimBefore(insertSorted(s.RecentTimestamps, now), s.LastVisitAt.Add(-t.window))
	s.AverageInterval = averageGap(s.RecentTimestamps)
}

// Lookup returns a copy of the statistics for key.
func (t *FrequencyTracker) Lookup(key Key) (FrequencyStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[key]
	if !ok {
		return FrequencyStats{}, false
	}

	out := *s
	out.RecentTimestamps = append([]time.Time(nil), s.RecentTimestamps...)
	if s.AverageInterval != nil {
		avg := *s.AverageInterval
		out.AverageInterval = &avg
	}
	return out, true
}

// Len returns the number of tracked keys.
func (t *FrequencyTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.stats)
}

// insertSorted inserts ts into the ascending slice sorted, after any equal times.
func insertSorted(sorted []time.Time, ts time.Time) []time.Time {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i].After(ts) })
	sorted = append(sorted, time.Time{})
	copy(sorted[i+1:], sorted[i:])
	sorted[i] = ts
	return sorted
}

// trimBefore drops timestamps that are not strictly after cutoff.
func trimBefore(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// averageGap returns the mean interval in seconds between consecutive
// timestamps, or nil when there are fewer than two.
func averageGap(ts []time.Time) *float64 {
	if len(ts) < 2 {
		return nil
	}
	var total float64
	for i := 1; i < len(ts); i++ {
		total += ts[i].Sub(ts[i-1]).Seconds()
	}
	avg := total / float64(len(ts)-1)
	return &avg
}

package match

import (
	"sort"
	"sync"
	"time"
)

// Timing is a single named duration recorded during a match, identified
// by the Format or Signature it measures rather than by an ad-hoc
// string key.
type Timing struct {
	Label    string
	Duration time.Duration
}

// Accumulator merges Timing entries across objects under a single
// mutex, keyed by label, so a batch's instrumentation cost scales with
// the number of distinct formats/signatures rather than the number of
// objects scanned.
type Accumulator struct {
	mu      sync.Mutex
	entries map[string]time.Duration
	counts  map[string]int64
}

// NewAccumulator returns an empty Accumulator ready for concurrent use.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		entries: make(map[string]time.Duration),
		counts:  make(map[string]int64),
	}
}

// Add merges a set of per-object Timings into the accumulator.
func (a *Accumulator) Add(timings []Timing) {
	if len(timings) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, t := range timings {
		a.entries[t.Label] += t.Duration
		a.counts[t.Label]++
	}
}

// Entry is one row of the accumulator's report: a label's total
// accumulated time and the number of objects it was measured on.
type Entry struct {
	Label string
	Total time.Duration
	Count int64
}

// Top returns the n labels with the greatest accumulated time, in
// descending order. n <= 0 returns every entry.
func (a *Accumulator) Top(n int) []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries := make([]Entry, 0, len(a.entries))
	for label, total := range a.entries {
		entries = append(entries, Entry{Label: label, Total: total, Count: a.counts[label]})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Total > entries[j].Total })

	if n > 0 && n < len(entries) {
		entries = entries[:n]
	}
	return entries
}

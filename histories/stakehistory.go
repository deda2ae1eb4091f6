package histories

import (
	"sort"
	"sync"

	"github.com/clustercore/corevalidator/types"
)

type stakeHistoryEntry struct {
	epoch types.Epoch
	entry types.StakeHistoryEntry
}

// StakeHistory is an ordered-by-epoch-descending, capped ring of per-epoch
// stake activation/deactivation snapshots.
type StakeHistory struct {
	mu      sync.RWMutex
	cap     int
	entries []stakeHistoryEntry
}

// NewStakeHistory creates an empty ring with the given entry cap.
func NewStakeHistory(maxEntries int) *StakeHistory {
	return &StakeHistory{cap: maxEntries}
}

// Add inserts or updates the entry for epoch, keeping entries sorted by
// epoch descending, then truncates to cap.
func (s *StakeHistory) Add(epoch types.Epoch, entry types.StakeHistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].epoch <= epoch
	})
	if i < len(s.entries) && s.entries[i].epoch == epoch {
		s.entries[i].entry = entry
	} else {
		s.entries = append(s.entries, stakeHistoryEntry{})
		copy(s.entries[i+1:], s.entries[i:])
		s.entries[i] = stakeHistoryEntry{epoch: epoch, entry: entry}
	}
	if len(s.entries) > s.cap {
		s.entries = s.entries[:s.cap]
	}
}

// Get returns the entry recorded for epoch, if present.
func (s *StakeHistory) Get(epoch types.Epoch) (types.StakeHistoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].epoch <= epoch
	})
	if i < len(s.entries) && s.entries[i].epoch == epoch {
		return s.entries[i].entry, true
	}
	return types.StakeHistoryEntry{}, false
}

// Len returns the number of entries currently held.
func (s *StakeHistory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

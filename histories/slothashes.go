// Package histories implements the bounded, append-mostly collections the
// node's bank stand-in keeps: a slot-keyed hash ring, a dense recent-slot
// bitset, and a per-epoch stake history ring. The two rings expose Add
// (insert-or-update, keep sorted, truncate to cap) and Get (binary search);
// the bitset exposes Add and Check. They mirror the original Rust
// SlotHashes/SlotHistory/StakeHistory sysvars.
package histories

import (
	"sort"
	"sync"

	"github.com/clustercore/corevalidator/types"
)

// SlotHashes is an ordered-by-slot-descending, capped ring of (Slot, Hash)
// pairs. Used to answer "what was the bank hash at slot X" for recent
// slots.
type SlotHashes struct {
	mu      sync.RWMutex
	cap     int
	entries []types.SlotHash
}

// NewSlotHashes creates an empty ring with the given entry cap.
func NewSlotHashes(maxEntries int) *SlotHashes {
	return &SlotHashes{cap: maxEntries}
}

// Add inserts or updates the entry for slot, keeping entries sorted by slot
// descending, then truncates to cap.
func (s *SlotHashes) Add(slot types.Slot, hash types.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// entries are sorted descending by slot; find insertion point via the
	// first index whose slot is <= the new slot.
	i := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].Slot <= slot
	})
	if i < len(s.entries) && s.entries[i].Slot == slot {
		s.entries[i].Hash = hash
	} else {
		s.entries = append(s.entries, types.SlotHash{})
		copy(s.entries[i+1:], s.entries[i:])
		s.entries[i] = types.SlotHash{Slot: slot, Hash: hash}
	}
	if len(s.entries) > s.cap {
		s.entries = s.entries[:s.cap]
	}
}

// Get returns the hash recorded for slot, if present.
func (s *SlotHashes) Get(slot types.Slot) (types.Hash, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].Slot <= slot
	})
	if i < len(s.entries) && s.entries[i].Slot == slot {
		return s.entries[i].Hash, true
	}
	return types.Hash{}, false
}

// Len returns the number of entries currently held.
func (s *SlotHashes) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns a copy of the current ring contents, slot descending.
func (s *SlotHashes) Entries() []types.SlotHash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.SlotHash, len(s.entries))
	copy(out, s.entries)
	return out
}

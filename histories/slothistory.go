package histories

import (
	"sync"

	"github.com/clustercore/corevalidator/types"
)

// Check is the result of SlotHistory.Check.
type Check int

const (
	CheckFuture Check = iota
	CheckTooOld
	CheckFound
	CheckNotFound
)

func (c Check) String() string {
	switch c {
	case CheckFuture:
		return "Future"
	case CheckTooOld:
		return "TooOld"
	case CheckFound:
		return "Found"
	case CheckNotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// SlotHistory is a dense bitset recording which of the last N slots have
// been observed. N (MaxEntries) must be a multiple of 64.
type SlotHistory struct {
	mu        sync.RWMutex
	maxEntries uint64
	words     []uint64 // maxEntries/64 words, bit i lives at words[i/64] bit i%64
	nextSlot  types.Slot
}

// NewSlotHistory creates a SlotHistory with the given bitset width (must be
// a multiple of 64) and slot 0 already marked observed, matching the Rust
// Default impl which sets bit 0 and next_slot = 1.
func NewSlotHistory(maxEntries uint64) *SlotHistory {
	if maxEntries%64 != 0 {
		panic("histories: SlotHistory maxEntries must be a multiple of 64")
	}
	h := &SlotHistory{
		maxEntries: maxEntries,
		words:      make([]uint64, maxEntries/64),
		nextSlot:   1,
	}
	h.setBit(0)
	return h
}

func (h *SlotHistory) setBit(slot types.Slot) {
	idx := uint64(slot) % h.maxEntries
	h.words[idx/64] |= 1 << (idx % 64)
}

func (h *SlotHistory) clearBit(slot types.Slot) {
	idx := uint64(slot) % h.maxEntries
	h.words[idx/64] &^= 1 << (idx % 64)
}

func (h *SlotHistory) getBit(slot types.Slot) bool {
	idx := uint64(slot) % h.maxEntries
	return h.words[idx/64]&(1<<(idx%64)) != 0
}

// Add records slot as observed, clearing bits for any slots skipped since
// the last add, and zeroing the entire bitset if slot has wrapped all the
// way past the window.
func (h *SlotHistory) Add(slot types.Slot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if slot > h.nextSlot && uint64(slot-h.nextSlot) >= h.maxEntries {
		for i := range h.words {
			h.words[i] = 0
		}
	} else {
		for skipped := h.nextSlot; skipped < slot; skipped++ {
			h.clearBit(skipped)
		}
	}
	h.setBit(slot)
	h.nextSlot = slot + 1
}

// Check reports whether slot is known to have been observed.
func (h *SlotHistory) Check(slot types.Slot) Check {
	h.mu.RLock()
	defer h.mu.RUnlock()

	newest := h.newestLocked()
	oldest := h.oldestLocked()
	switch {
	case slot > newest:
		return CheckFuture
	case slot < oldest:
		return CheckTooOld
	case h.getBit(slot):
		return CheckFound
	default:
		return CheckNotFound
	}
}

func (h *SlotHistory) newestLocked() types.Slot {
	return h.nextSlot - 1
}

func (h *SlotHistory) oldestLocked() types.Slot {
	if uint64(h.nextSlot) < h.maxEntries {
		return 0
	}
	return types.Slot(uint64(h.nextSlot) - h.maxEntries)
}

// Newest returns the most recently added slot.
func (h *SlotHistory) Newest() types.Slot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.newestLocked()
}

// Oldest returns the oldest slot still within the window.
func (h *SlotHistory) Oldest() types.Slot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.oldestLocked()
}

// Package accountshash implements the snapshot-hash ring and the
// accounts-hash verifier worker that cross-checks it against trusted
// validators' published rings (spec.md §4.2), grounded on
// original_source/core/src/accounts_hash_verifier.rs.
package accountshash

import "github.com/clustercore/corevalidator/types"

// SnapshotHashRing is an append-only, capped FIFO of (Slot, Hash) pairs:
// the verifier's published accounts-hash history. It is owned and mutated
// only by the verifier's worker goroutine (spec.md §5's shared-resource
// policy) — no internal locking.
type SnapshotHashRing struct {
	cap     int
	entries []types.SlotHash
}

// NewSnapshotHashRing creates an empty ring with the given cap.
func NewSnapshotHashRing(cap int) *SnapshotHashRing {
	return &SnapshotHashRing{cap: cap}
}

// Append adds (slot, hash) to the ring, dropping the oldest entry if the
// ring now exceeds its cap.
func (r *SnapshotHashRing) Append(slot types.Slot, hash types.Hash) {
	r.entries = append(r.entries, types.SlotHash{Slot: slot, Hash: hash})
	for len(r.entries) > r.cap {
		r.entries = r.entries[1:]
	}
}

// Len returns the current ring length.
func (r *SnapshotHashRing) Len() int {
	return len(r.entries)
}

// Snapshot returns a copy of the ring's current contents, oldest first.
func (r *SnapshotHashRing) Snapshot() []types.SlotHash {
	cp := make([]types.SlotHash, len(r.entries))
	copy(cp, r.entries)
	return cp
}

// SlotToHash builds a slot->hash lookup map from the ring's current
// contents, used as the local reference map for the trusted-validator
// cross-check.
func (r *SnapshotHashRing) SlotToHash() map[types.Slot]types.Hash {
	m := make(map[types.Slot]types.Hash, len(r.entries))
	for _, e := range r.entries {
		m[e.Slot] = e.Hash
	}
	return m
}

// Package statuscache implements the generic signature-status cache used to
// detect duplicate transactions across recent forks. It mirrors the
// solana-style StatusCache<T>: for every blockhash seen it remembers a
// randomly chosen 20-byte slice of each signature (so the full signature
// never needs to be retained) mapped to the slots it was observed at, plus
// a rolling set of "root" slots whose signatures are always valid ancestors.
package statuscache

import (
	"math/rand/v2"
	"sync"

	"github.com/clustercore/corevalidator/types"
)

// CachedSignatureSize is the number of signature bytes retained per entry.
const CachedSignatureSize = 20

// SignatureSlice is the retained fragment of a full signature.
type SignatureSlice [CachedSignatureSize]byte

func sliceSignature(sig types.Signature, index int) SignatureSlice {
	var s SignatureSlice
	copy(s[:], sig[index:index+CachedSignatureSize])
	return s
}

// Ancestors reports which slots are visible from the fork being queried
// against (including the queried slot itself). Callers pass in the ancestor
// set belonging to the fork they're checking a transaction against.
type Ancestors map[types.Slot]struct{}

type forkStatus[T any] struct {
	slot   types.Slot
	status T
}

type sigMapEntry[T any] struct {
	forks []forkStatus[T]
}

type cacheEntry[T any] struct {
	maxSlot types.Slot
	sigIndex int
	sigMap   map[SignatureSlice]*sigMapEntry[T]
}

type hashDelta[T any] struct {
	sigIndex int
	sigs     []sigSlot[T]
}

type sigSlot[T any] struct {
	slice  SignatureSlice
	status T
}

// SignatureStatus is the per-slot map of blockhash -> signatures observed
// during that slot, shared between the cache's slotDeltas index and
// SlotDeltas/Append round-tripping.
type SignatureStatus[T any] struct {
	mu sync.Mutex
	m  map[types.Hash]*hashDelta[T]
}

func newSignatureStatus[T any]() *SignatureStatus[T] {
	return &SignatureStatus[T]{m: make(map[types.Hash]*hashDelta[T])}
}

// SlotDelta is a single slot's worth of signature statuses, used to
// serialize a StatusCache for snapshots and replay it back with Append.
type SlotDelta[T any] struct {
	Slot      types.Slot
	IsRoot    bool
	Statuses  *SignatureStatus[T]
}

// StatusCache tracks which (blockhash, signature) pairs have been observed
// and on which slots, so duplicate transactions can be rejected without
// needing to replay full transaction history.
type StatusCache[T any] struct {
	mu         sync.Mutex
	cache      map[types.Hash]*cacheEntry[T]
	roots      map[types.Slot]struct{}
	slotDeltas map[types.Slot]*SignatureStatus[T]
	maxCacheEntries int
}

// New creates an empty StatusCache. maxCacheEntries bounds how many root
// slots (and therefore how much signature history) are retained before the
// oldest root is purged.
func New[T any](maxCacheEntries int) *StatusCache[T] {
	return &StatusCache[T]{
		cache:      make(map[types.Hash]*cacheEntry[T]),
		roots:      map[types.Slot]struct{}{0: {}},
		slotDeltas: make(map[types.Slot]*SignatureStatus[T]),
		maxCacheEntries: maxCacheEntries,
	}
}

// Insert records that sig, sent against transactionBlockhash, landed at
// slot with result res.
func (c *StatusCache[T]) Insert(transactionBlockhash types.Hash, sig types.Signature, slot types.Slot, res T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[transactionBlockhash]
	var sigIndex int
	if ok {
		sigIndex = entry.sigIndex
	} else {
		sigIndex = rand.IntN(len(types.Hash{}) - CachedSignatureSize)
	}

	slice := sliceSignature(sig, sigIndex)
	c.insertWithSlice(transactionBlockhash, slot, sigIndex, slice, res)
}

func (c *StatusCache[T]) insertWithSlice(transactionBlockhash types.Hash, slot types.Slot, sigIndex int, slice SignatureSlice, res T) {
	entry, ok := c.cache[transactionBlockhash]
	if !ok {
		entry = &cacheEntry[T]{slot, sigIndex, make(map[SignatureSlice]*sigMapEntry[T])}
		c.cache[transactionBlockhash] = entry
	}
	if slot > entry.maxSlot {
		entry.maxSlot = slot
	}

	sm, ok := entry.sigMap[slice]
	if !ok {
		sm = &sigMapEntry[T]{}
		entry.sigMap[slice] = sm
	}
	sm.forks = append(sm.forks, forkStatus[T]{slot: slot, status: res})

	delta, ok := c.slotDeltas[slot]
	if !ok {
		delta = newSignatureStatus[T]()
		c.slotDeltas[slot] = delta
	}
	delta.mu.Lock()
	hd, ok := delta.m[transactionBlockhash]
	if !ok {
		hd = &hashDelta[T]{sigIndex: sigIndex}
		delta.m[transactionBlockhash] = hd
	}
	hd.sigs = append(hd.sigs, sigSlot[T]{slice: slice, status: res})
	delta.mu.Unlock()
}

// GetSignatureStatus reports the slot and result a signature was recorded
// at under transactionBlockhash, provided that slot is visible either as an
// ancestor of the fork being queried or as a known root.
func (c *StatusCache[T]) GetSignatureStatus(sig types.Signature, transactionBlockhash types.Hash, ancestors Ancestors) (types.Slot, T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	entry, ok := c.cache[transactionBlockhash]
	if !ok {
		return 0, zero, false
	}
	slice := sliceSignature(sig, entry.sigIndex)
	sm, ok := entry.sigMap[slice]
	if !ok {
		return 0, zero, false
	}
	for _, fs := range sm.forks {
		if _, visible := ancestors[fs.slot]; visible {
			return fs.slot, fs.status, true
		}
		if _, isRoot := c.roots[fs.slot]; isRoot {
			return fs.slot, fs.status, true
		}
	}
	return 0, zero, false
}

// GetSignatureSlot searches every blockhash the cache knows about for sig,
// returning the first match visible from ancestors. Used when the caller
// doesn't know which blockhash a transaction was built against.
func (c *StatusCache[T]) GetSignatureSlot(sig types.Signature, ancestors Ancestors) (types.Slot, T, bool) {
	c.mu.Lock()
	blockhashes := make([]types.Hash, 0, len(c.cache))
	for h := range c.cache {
		blockhashes = append(blockhashes, h)
	}
	c.mu.Unlock()

	for _, h := range blockhashes {
		if slot, status, ok := c.GetSignatureStatus(sig, h, ancestors); ok {
			return slot, status, true
		}
	}
	var zero T
	return 0, zero, false
}

// AddRoot marks fork as a known root; roots are always valid ancestors, and
// once more than maxCacheEntries roots are held the oldest is purged along
// with any cache/slotDeltas entries that can no longer be reached.
func (c *StatusCache[T]) AddRoot(fork types.Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roots[fork] = struct{}{}
	c.purgeRootsLocked()
}

func (c *StatusCache[T]) purgeRootsLocked() {
	if len(c.roots) <= c.maxCacheEntries {
		return
	}
	var min types.Slot
	first := true
	for r := range c.roots {
		if first || r < min {
			min = r
			first = false
		}
	}
	delete(c.roots, min)
	for h, entry := range c.cache {
		if entry.maxSlot <= min {
			delete(c.cache, h)
		}
	}
	for slot := range c.slotDeltas {
		if slot <= min {
			delete(c.slotDeltas, slot)
		}
	}
}

// Roots returns the set of slots currently considered roots.
func (c *StatusCache[T]) Roots() map[types.Slot]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[types.Slot]struct{}, len(c.roots))
	for r := range c.roots {
		out[r] = struct{}{}
	}
	return out
}

// ClearSignatures drops every recorded signature while leaving roots
// intact. Intended for tests.
func (c *StatusCache[T]) ClearSignatures() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.cache {
		entry.sigMap = make(map[SignatureSlice]*sigMapEntry[T])
	}
	for _, delta := range c.slotDeltas {
		delta.mu.Lock()
		delta.m = make(map[types.Hash]*hashDelta[T])
		delta.mu.Unlock()
	}
}

// ClearSlotSignatures removes every signature recorded at slot from both
// the slotDeltas index and the main cache. It panics if the structural
// invariant linking slotDeltas to cache is violated, matching the upstream
// behavior: a blockhash or signature slice present in slotDeltas must also
// exist in cache.
func (c *StatusCache[T]) ClearSlotSignatures(slot types.Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delta, ok := c.slotDeltas[slot]
	if !ok {
		return
	}
	delete(c.slotDeltas, slot)

	delta.mu.Lock()
	defer delta.mu.Unlock()
	for blockhash, hd := range delta.m {
		entry, ok := c.cache[blockhash]
		if !ok {
			panic("statuscache: blockhash must exist in cache if it exists in slotDeltas")
		}
		for _, s := range hd.sigs {
			sm, ok := entry.sigMap[s.slice]
			if !ok {
				panic("statuscache: signature map must exist if signature exists in slotDeltas")
			}
			kept := sm.forks[:0]
			for _, fs := range sm.forks {
				if fs.slot != slot {
					kept = append(kept, fs)
				}
			}
			sm.forks = kept
			if len(sm.forks) == 0 {
				delete(entry.sigMap, s.slice)
			}
		}
		if len(entry.sigMap) == 0 {
			delete(c.cache, blockhash)
		}
	}
}

// SlotDeltas returns the signature statuses recorded for each of the given
// slots, suitable for serializing into a snapshot.
func (c *StatusCache[T]) SlotDeltas(slots []types.Slot) []SlotDelta[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SlotDelta[T], 0, len(slots))
	for _, slot := range slots {
		_, isRoot := c.roots[slot]
		statuses, ok := c.slotDeltas[slot]
		if !ok {
			statuses = newSignatureStatus[T]()
		}
		out = append(out, SlotDelta[T]{Slot: slot, IsRoot: isRoot, Statuses: statuses})
	}
	return out
}

// Append replays slotDeltas into the cache, as when reconstructing a
// StatusCache from a snapshot.
func (c *StatusCache[T]) Append(slotDeltas []SlotDelta[T]) {
	for _, sd := range slotDeltas {
		sd.Statuses.mu.Lock()
		for blockhash, hd := range sd.Statuses.m {
			for _, s := range hd.sigs {
				c.mu.Lock()
				c.insertWithSlice(blockhash, sd.Slot, hd.sigIndex, s.slice, s.status)
				c.mu.Unlock()
			}
		}
		sd.Statuses.mu.Unlock()
		if sd.IsRoot {
			c.AddRoot(sd.Slot)
		}
	}
}

// FromSlotDeltas reconstructs a StatusCache from a snapshot's slot deltas.
func FromSlotDeltas[T any](maxCacheEntries int, slotDeltas []SlotDelta[T]) *StatusCache[T] {
	c := New[T](maxCacheEntries)
	c.Append(slotDeltas)
	return c
}

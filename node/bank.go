package node

import (
	"sync"

	"github.com/clustercore/corevalidator/clock"
	"github.com/clustercore/corevalidator/histories"
	"github.com/clustercore/corevalidator/statuscache"
	"github.com/clustercore/corevalidator/types"
)

// clockBank adapts a clock.SlotClock plus a settable stake snapshot into
// epochstakes.BankSource. The real bank (state transition, vote
// accounting) is out of scope for this core (spec.md §1 lists it as an
// external collaborator referenced only by the queries the epoch-stakes
// cache needs), but a real bank also owns the sysvar-like bounded
// histories and the status cache (spec.md §4.1/§3.2/§3.3); clockBank is
// the minimal stand-in that owns all of it, so the orchestrator has a
// single place to construct and advance this state from.
type clockBank struct {
	clock    *clock.SlotClock
	schedule types.EpochSchedule

	mu     sync.RWMutex
	stakes map[types.Epoch]map[types.Pubkey]types.Stake

	slotHashes   *histories.SlotHashes
	slotHistory  *histories.SlotHistory
	stakeHistory *histories.StakeHistory
	statusCache  *statuscache.StatusCache[struct{}]
}

// bankSizes bounds the histories and status cache clockBank constructs
// (spec.md §6 config knobs, carried by config.Config).
type bankSizes struct {
	SlotMaxEntries         int
	SlotHistoryMaxEntries  uint64
	StakeHistoryMaxEntries int
	MaxCacheEntries        int
}

func newClockBank(c *clock.SlotClock, schedule types.EpochSchedule, sizes bankSizes) *clockBank {
	return &clockBank{
		clock:        c,
		schedule:     schedule,
		stakes:       make(map[types.Epoch]map[types.Pubkey]types.Stake),
		slotHashes:   histories.NewSlotHashes(sizes.SlotMaxEntries),
		slotHistory:  histories.NewSlotHistory(sizes.SlotHistoryMaxEntries),
		stakeHistory: histories.NewStakeHistory(sizes.StakeHistoryMaxEntries),
		statusCache:  statuscache.New[struct{}](sizes.MaxCacheEntries),
	}
}

// AdvanceSlot records slot's bank hash into the slot-hashes ring and marks
// it found in the slot-history bitset (spec.md §4.1) — the bank-side
// bookkeeping that happens once per rooted slot. Out-of-scope consensus
// code is expected to call this as slots root; it is exercised directly by
// tests here since that caller is external to this core.
func (b *clockBank) AdvanceSlot(slot types.Slot, bankHash types.Hash) {
	b.slotHashes.Add(slot, bankHash)
	b.slotHistory.Add(slot)
}

// RecordStakeHistory records epoch's stake activation snapshot (spec.md
// §4.1), called whenever the out-of-scope bank computes one.
func (b *clockBank) RecordStakeHistory(epoch types.Epoch, entry types.StakeHistoryEntry) {
	b.stakeHistory.Add(epoch, entry)
}

// SlotHashes exposes the bank's bounded (slot, bank hash) ring.
func (b *clockBank) SlotHashes() *histories.SlotHashes {
	return b.slotHashes
}

// SlotHistory exposes the bank's rooted-slot bitset.
func (b *clockBank) SlotHistory() *histories.SlotHistory {
	return b.slotHistory
}

// StakeHistory exposes the bank's per-epoch stake activation ring.
func (b *clockBank) StakeHistory() *histories.StakeHistory {
	return b.stakeHistory
}

// StatusCache exposes the bank's transaction-status cache.
func (b *clockBank) StatusCache() *statuscache.StatusCache[struct{}] {
	return b.statusCache
}

// Epoch implements epochstakes.BankSource.
func (b *clockBank) Epoch() types.Epoch {
	return b.schedule.Epoch(b.clock.CurrentSlot())
}

// StakedNodes implements epochstakes.BankSource, returning the snapshot set
// for epoch, or the highest prior epoch's snapshot as a carry-over if none
// has been set for epoch itself (matching a real bank's "stakes are fixed
// for the epoch, inherited until the next activation" semantics). Returns
// nil only if no snapshot has ever been set at or before epoch.
func (b *clockBank) StakedNodes(epoch types.Epoch) map[types.Pubkey]types.Stake {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if stakes, ok := b.stakes[epoch]; ok {
		return stakes
	}

	var (
		best   types.Epoch
		found  bool
		stakes map[types.Pubkey]types.Stake
	)
	for e, s := range b.stakes {
		if e <= epoch && (!found || e > best) {
			best, stakes, found = e, s, true
		}
	}
	return stakes
}

// SetStakedNodes records the stake snapshot effective at epoch. Called by
// whatever out-of-scope process learns the bank's stake distribution
// (gossip vote-account updates, a snapshot load, or test fixtures).
func (b *clockBank) SetStakedNodes(epoch types.Epoch, stakes map[types.Pubkey]types.Stake) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stakes[epoch] = stakes
}

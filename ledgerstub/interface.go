// Package ledgerstub stands in for the ledger/blockstore collaborator
// spec.md §1 references only by the interface it provides: slot-indexed
// lookup of accounts packages and shred packet batches, plus a
// completed-slot signal channel. It is not part of the core's hot path —
// the accounts-hash verifier and turbine retransmit stage only ever see
// the channels a Store feeds, never the Store itself — so it carries none
// of the core's invariants. No other package in this module imports it;
// it is exercised only by its own tests. Grounded on
// `storage/interface.go` + `storage/memory/memory.go`.
package ledgerstub

import "github.com/clustercore/corevalidator/types"

// Store is a minimal slot-indexed fixture store for accounts packages and
// packet batches.
type Store interface {
	PutPackage(slot types.Slot, pkg types.AccountsPackage) error
	GetPackage(slot types.Slot) (types.AccountsPackage, bool, error)

	PutPacketBatch(slot types.Slot, batch []types.Packet) error
	GetPacketBatch(slot types.Slot) ([]types.Packet, bool, error)

	// CompletedSlots signals each slot as its package and/or packet batch
	// is written, mirroring Blockstore's CompletedSlotsReceiver.
	CompletedSlots() <-chan types.Slot

	Close() error
}

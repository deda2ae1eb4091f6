// Package memorystore is the in-memory ledgerstub.Store implementation,
// used by unit tests. Grounded on storage/memory/memory.go's
// map+sync.RWMutex pattern.
package memorystore

import (
	"sync"

	"github.com/clustercore/corevalidator/types"
)

// Store is an in-memory, slot-indexed fixture store.
type Store struct {
	mu       sync.RWMutex
	packages map[types.Slot]types.AccountsPackage
	batches  map[types.Slot][]types.Packet
	signal   chan types.Slot
}

// New creates an empty in-memory store. signalCap sizes the completed-slot
// channel buffer; signals are dropped (not blocked on) once it fills.
func New(signalCap int) *Store {
	return &Store{
		packages: make(map[types.Slot]types.AccountsPackage),
		batches:  make(map[types.Slot][]types.Packet),
		signal:   make(chan types.Slot, signalCap),
	}
}

func (s *Store) PutPackage(slot types.Slot, pkg types.AccountsPackage) error {
	s.mu.Lock()
	s.packages[slot] = pkg
	s.mu.Unlock()
	s.notify(slot)
	return nil
}

func (s *Store) GetPackage(slot types.Slot) (types.AccountsPackage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pkg, ok := s.packages[slot]
	return pkg, ok, nil
}

func (s *Store) PutPacketBatch(slot types.Slot, batch []types.Packet) error {
	cp := make([]types.Packet, len(batch))
	copy(cp, batch)

	s.mu.Lock()
	s.batches[slot] = cp
	s.mu.Unlock()
	s.notify(slot)
	return nil
}

func (s *Store) GetPacketBatch(slot types.Slot) ([]types.Packet, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.batches[slot]
	if !ok {
		return nil, false, nil
	}
	cp := make([]types.Packet, len(batch))
	copy(cp, batch)
	return cp, true, nil
}

func (s *Store) CompletedSlots() <-chan types.Slot {
	return s.signal
}

func (s *Store) Close() error {
	close(s.signal)
	return nil
}

// notify best-effort signals slot as completed; a full channel means no
// one's listening, so the signal is dropped rather than blocking the
// writer.
func (s *Store) notify(slot types.Slot) {
	select {
	case s.signal <- slot:
	default:
	}
}

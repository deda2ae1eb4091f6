package ledgerstub

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/clustercore/corevalidator/types"
)

// Key prefixes separate the two fixture kinds within one pebble keyspace.
const (
	packagePrefix = 'P'
	batchPrefix   = 'B'
)

// PebbleStore is a pebble-backed Store, an alternative to memorystore.Store
// whose fixtures survive a process restart. Grounded on storage/memory/memory.go's
// interface shape, backed by github.com/cockroachdb/pebble instead of a Go
// map.
type PebbleStore struct {
	db     *pebble.DB
	signal chan types.Slot
}

// OpenPebbleStore opens (creating if absent) a pebble database at dir.
func OpenPebbleStore(dir string, signalCap int) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("ledgerstub: open pebble db at %q: %w", dir, err)
	}
	return &PebbleStore{
		db:     db,
		signal: make(chan types.Slot, signalCap),
	}, nil
}

func packageKey(slot types.Slot) []byte {
	return slotKey(packagePrefix, slot)
}

func batchKey(slot types.Slot) []byte {
	return slotKey(batchPrefix, slot)
}

func slotKey(prefix byte, slot types.Slot) []byte {
	key := make([]byte, 9)
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:], uint64(slot))
	return key
}

func (p *PebbleStore) PutPackage(slot types.Slot, pkg types.AccountsPackage) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(pkg); err != nil {
		return fmt.Errorf("ledgerstub: encode package for slot %d: %w", slot, err)
	}
	if err := p.db.Set(packageKey(slot), buf.Bytes(), pebble.Sync); err != nil {
		return fmt.Errorf("ledgerstub: put package for slot %d: %w", slot, err)
	}
	p.notify(slot)
	return nil
}

func (p *PebbleStore) GetPackage(slot types.Slot) (types.AccountsPackage, bool, error) {
	val, closer, err := p.db.Get(packageKey(slot))
	if err == pebble.ErrNotFound {
		return types.AccountsPackage{}, false, nil
	}
	if err != nil {
		return types.AccountsPackage{}, false, fmt.Errorf("ledgerstub: get package for slot %d: %w", slot, err)
	}
	defer closer.Close()

	var pkg types.AccountsPackage
	if err := gob.NewDecoder(bytes.NewReader(val)).Decode(&pkg); err != nil {
		return types.AccountsPackage{}, false, fmt.Errorf("ledgerstub: decode package for slot %d: %w", slot, err)
	}
	return pkg, true, nil
}

func (p *PebbleStore) PutPacketBatch(slot types.Slot, batch []types.Packet) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(batch); err != nil {
		return fmt.Errorf("ledgerstub: encode packet batch for slot %d: %w", slot, err)
	}
	if err := p.db.Set(batchKey(slot), buf.Bytes(), pebble.Sync); err != nil {
		return fmt.Errorf("ledgerstub: put packet batch for slot %d: %w", slot, err)
	}
	p.notify(slot)
	return nil
}

func (p *PebbleStore) GetPacketBatch(slot types.Slot) ([]types.Packet, bool, error) {
	val, closer, err := p.db.Get(batchKey(slot))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ledgerstub: get packet batch for slot %d: %w", slot, err)
	}
	defer closer.Close()

	var batch []types.Packet
	if err := gob.NewDecoder(bytes.NewReader(val)).Decode(&batch); err != nil {
		return nil, false, fmt.Errorf("ledgerstub: decode packet batch for slot %d: %w", slot, err)
	}
	return batch, true, nil
}

func (p *PebbleStore) CompletedSlots() <-chan types.Slot {
	return p.signal
}

func (p *PebbleStore) Close() error {
	close(p.signal)
	return p.db.Close()
}

func (p *PebbleStore) notify(slot types.Slot) {
	select {
	case p.signal <- slot:
	default:
	}
}

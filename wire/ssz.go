package wire

import (
	"encoding/binary"
	"fmt"

	ssz "github.com/ferranbt/fastssz"

	"github.com/clustercore/corevalidator/types"
)

// slotHashSize is the SSZ-encoded size of a single (Slot, Hash) pair: an
// 8-byte little-endian slot followed by a 32-byte hash.
const slotHashSize = 8 + 32

// maxRingChunkLimit bounds the merkleization chunk count for the ring
// field, matching the default MAX_SNAPSHOT_HASHES (spec.md §6). It is only
// a hashing-capacity ceiling, not an enforced length limit — the ring's
// actual cap is owned by the accountshash package.
const maxRingChunkLimit = 16

// AccountsHashesMessage is the gossip value the accounts-hash verifier
// publishes each interval: a snapshot of its current snapshot-hash ring,
// tagged with the sender's pubkey. It carries no signature, and the gossip
// topic runs with gossipsub's StrictNoSign policy. It is the hand-written fastssz equivalent of what
// `sszgen` would otherwise generate from a `//go:generate` directive —
// sszgen can't be invoked here, so MarshalSSZ/UnmarshalSSZ/SizeSSZ/
// HashTreeRoot are written by hand against the same method set.
type AccountsHashesMessage struct {
	Sender types.Pubkey
	Ring   []types.SlotHash
}

// SizeSSZ returns the encoded size of m.
func (m *AccountsHashesMessage) SizeSSZ() int {
	return 32 + 4 + len(m.Ring)*slotHashSize
}

// MarshalSSZ encodes m.
func (m *AccountsHashesMessage) MarshalSSZ() ([]byte, error) {
	return m.MarshalSSZTo(nil)
}

// MarshalSSZTo appends the encoding of m to dst and returns the result.
func (m *AccountsHashesMessage) MarshalSSZTo(dst []byte) ([]byte, error) {
	buf := dst
	buf = append(buf, m.Sender[:]...)

	offset := uint32(36) // 32 (sender) + 4 (offset field itself)
	var offsetBytes [4]byte
	binary.LittleEndian.PutUint32(offsetBytes[:], offset)
	buf = append(buf, offsetBytes[:]...)

	for _, sh := range m.Ring {
		var slotBytes [8]byte
		binary.LittleEndian.PutUint64(slotBytes[:], uint64(sh.Slot))
		buf = append(buf, slotBytes[:]...)
		buf = append(buf, sh.Hash[:]...)
	}
	return buf, nil
}

// UnmarshalSSZ decodes buf into m.
func (m *AccountsHashesMessage) UnmarshalSSZ(buf []byte) error {
	if len(buf) < 36 {
		return fmt.Errorf("wire: accounts-hashes message too short: %d bytes", len(buf))
	}
	copy(m.Sender[:], buf[:32])

	offset := binary.LittleEndian.Uint32(buf[32:36])
	if int(offset) != 36 {
		return fmt.Errorf("wire: unexpected ring offset %d", offset)
	}
	tail := buf[offset:]
	if len(tail)%slotHashSize != 0 {
		return fmt.Errorf("wire: ring tail length %d not a multiple of %d", len(tail), slotHashSize)
	}

	n := len(tail) / slotHashSize
	m.Ring = make([]types.SlotHash, n)
	for i := 0; i < n; i++ {
		chunk := tail[i*slotHashSize : (i+1)*slotHashSize]
		m.Ring[i].Slot = types.Slot(binary.LittleEndian.Uint64(chunk[:8]))
		copy(m.Ring[i].Hash[:], chunk[8:])
	}
	return nil
}

// HashTreeRoot computes m's SSZ hash tree root using fastssz's default
// hasher pool.
func (m *AccountsHashesMessage) HashTreeRoot() ([32]byte, error) {
	return ssz.HashWithDefaultHasher(m)
}

// HashTreeRootWith writes m's hash-tree-root computation into hh, matching
// the shape sszgen emits for a fixed Pubkey field followed by a variable
// list field.
func (m *AccountsHashesMessage) HashTreeRootWith(hh ssz.HashWalker) error {
	indx := hh.Index()

	hh.PutBytes(m.Sender[:])

	{
		subIndx := hh.Index()
		for _, sh := range m.Ring {
			var slotBytes [8]byte
			binary.LittleEndian.PutUint64(slotBytes[:], uint64(sh.Slot))
			hh.PutBytes(slotBytes[:])
			hh.PutBytes(sh.Hash[:])
		}
		hh.MerkleizeWithMixin(subIndx, uint64(len(m.Ring)), maxRingChunkLimit)
	}

	hh.Merkleize(indx)
	return nil
}

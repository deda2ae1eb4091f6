package wire

import (
	"testing"

	"github.com/clustercore/corevalidator/types"
)

func TestExtendAndHashIsDeterministicAndDiffersFromPlainHash(t *testing.T) {
	h := Hash([]byte("package-hash"))
	a := ExtendAndHash(h, 3)
	b := ExtendAndHash(h, 3)
	if a != b {
		t.Fatalf("ExtendAndHash should be deterministic for the same input")
	}
	if a == h {
		t.Fatalf("ExtendAndHash should differ from the unmodified hash")
	}
	c := ExtendAndHash(h, 4)
	if a == c {
		t.Fatalf("different extra bytes should produce different hashes")
	}
}

func TestMerkleizeSingleChunkIsIdentity(t *testing.T) {
	chunk := Hash([]byte("leaf"))
	got := Merkleize([]types.Hash{chunk}, 1)
	if got != chunk {
		t.Fatalf("single-leaf merkleization should equal the leaf itself")
	}
}

func TestAccountsHashesMessageRoundTrip(t *testing.T) {
	msg := &AccountsHashesMessage{
		Sender: types.Pubkey{1, 2, 3},
		Ring: []types.SlotHash{
			{Slot: 100, Hash: Hash([]byte("h0"))},
			{Slot: 101, Hash: Hash([]byte("h1"))},
		},
	}

	data, err := msg.MarshalSSZ()
	if err != nil {
		t.Fatalf("MarshalSSZ: %v", err)
	}
	if len(data) != msg.SizeSSZ() {
		t.Fatalf("encoded length %d != SizeSSZ() %d", len(data), msg.SizeSSZ())
	}

	var decoded AccountsHashesMessage
	if err := decoded.UnmarshalSSZ(data); err != nil {
		t.Fatalf("UnmarshalSSZ: %v", err)
	}
	if decoded.Sender != msg.Sender {
		t.Fatalf("sender mismatch: got %v, want %v", decoded.Sender, msg.Sender)
	}
	if len(decoded.Ring) != len(msg.Ring) {
		t.Fatalf("ring length mismatch: got %d, want %d", len(decoded.Ring), len(msg.Ring))
	}
	for i := range msg.Ring {
		if decoded.Ring[i] != msg.Ring[i] {
			t.Fatalf("ring[%d] mismatch: got %+v, want %+v", i, decoded.Ring[i], msg.Ring[i])
		}
	}
}

func TestAccountsHashesMessageUnmarshalRejectsShortBuffer(t *testing.T) {
	var m AccountsHashesMessage
	if err := m.UnmarshalSSZ([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected an error for a too-short buffer")
	}
}

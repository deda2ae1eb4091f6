package statuscache

import (
	"testing"

	"github.com/clustercore/corevalidator/types"
)

const testMaxCacheEntries = 300

func TestEmptyHasNoSignatures(t *testing.T) {
	c := New[struct{}](testMaxCacheEntries)
	sig := types.Signature{}
	blockhash := types.Hash{}

	if _, _, ok := c.GetSignatureStatus(sig, blockhash, Ancestors{}); ok {
		t.Fatalf("expected no status in an empty cache")
	}
	if _, _, ok := c.GetSignatureSlot(sig, Ancestors{}); ok {
		t.Fatalf("expected no slot in an empty cache")
	}
}

func TestFindSigWithAncestorFork(t *testing.T) {
	c := New[struct{}](testMaxCacheEntries)
	sig := types.Signature{}
	blockhash := types.Hash{1}
	ancestors := Ancestors{0: {}}

	c.Insert(blockhash, sig, 0, struct{}{})

	slot, _, ok := c.GetSignatureStatus(sig, blockhash, ancestors)
	if !ok || slot != 0 {
		t.Fatalf("expected status at slot 0, got ok=%v slot=%d", ok, slot)
	}
	slot, _, ok = c.GetSignatureSlot(sig, ancestors)
	if !ok || slot != 0 {
		t.Fatalf("expected GetSignatureSlot to find slot 0, got ok=%v slot=%d", ok, slot)
	}
}

func TestFindSigWithoutAncestorFork(t *testing.T) {
	c := New[struct{}](testMaxCacheEntries)
	sig := types.Signature{}
	blockhash := types.Hash{1}

	c.Insert(blockhash, sig, 1, struct{}{})

	if _, _, ok := c.GetSignatureStatus(sig, blockhash, Ancestors{}); ok {
		t.Fatalf("expected slot 1 to be invisible without ancestors or a root")
	}
}

func TestFindSigWithRootAncestorFork(t *testing.T) {
	c := New[struct{}](testMaxCacheEntries)
	sig := types.Signature{}
	blockhash := types.Hash{1}

	c.Insert(blockhash, sig, 0, struct{}{})
	c.AddRoot(0)

	slot, _, ok := c.GetSignatureStatus(sig, blockhash, Ancestors{})
	if !ok || slot != 0 {
		t.Fatalf("expected root slot 0 to be visible, got ok=%v slot=%d", ok, slot)
	}
}

func TestInsertPicksLatestBlockhashFork(t *testing.T) {
	c := New[struct{}](testMaxCacheEntries)
	sig := types.Signature{}
	blockhash := types.Hash{1}
	ancestors := Ancestors{0: {}}

	c.Insert(blockhash, sig, 0, struct{}{})
	c.Insert(blockhash, sig, 1, struct{}{})
	for i := 0; i <= testMaxCacheEntries; i++ {
		c.AddRoot(types.Slot(i))
	}

	if _, _, ok := c.GetSignatureStatus(sig, blockhash, ancestors); !ok {
		t.Fatalf("expected a status to survive root rotation")
	}
}

func TestRootExpires(t *testing.T) {
	c := New[struct{}](testMaxCacheEntries)
	sig := types.Signature{}
	blockhash := types.Hash{1}

	c.Insert(blockhash, sig, 0, struct{}{})
	for i := 0; i <= testMaxCacheEntries; i++ {
		c.AddRoot(types.Slot(i))
	}

	if _, _, ok := c.GetSignatureStatus(sig, blockhash, Ancestors{}); ok {
		t.Fatalf("expected slot 0's signature to have expired")
	}
}

func TestClearSignaturesSigsAreGone(t *testing.T) {
	c := New[struct{}](testMaxCacheEntries)
	sig := types.Signature{}
	blockhash := types.Hash{1}

	c.Insert(blockhash, sig, 0, struct{}{})
	c.AddRoot(0)
	c.ClearSignatures()

	if _, _, ok := c.GetSignatureStatus(sig, blockhash, Ancestors{}); ok {
		t.Fatalf("expected signatures to be cleared")
	}
}

func TestClearSignaturesInsertWorks(t *testing.T) {
	c := New[struct{}](testMaxCacheEntries)
	sig := types.Signature{}
	blockhash := types.Hash{1}

	c.AddRoot(0)
	c.ClearSignatures()
	c.Insert(blockhash, sig, 0, struct{}{})

	if _, _, ok := c.GetSignatureStatus(sig, blockhash, Ancestors{}); !ok {
		t.Fatalf("expected insert after clear to be visible")
	}
}

func TestSlotDeltasRoundTrip(t *testing.T) {
	c := New[struct{}](testMaxCacheEntries)
	sig := types.Signature{}
	blockhash := types.Hash{1}

	c.ClearSignatures()
	c.Insert(blockhash, sig, 0, struct{}{})

	deltas := c.SlotDeltas([]types.Slot{0})
	rebuilt := FromSlotDeltas(testMaxCacheEntries, deltas)

	if _, _, ok := rebuilt.GetSignatureStatus(sig, blockhash, Ancestors{0: {}}); !ok {
		t.Fatalf("expected rebuilt cache to find the signature")
	}
}

func TestInsertSigIndexBoundedByHashSize(t *testing.T) {
	c := New[struct{}](testMaxCacheEntries)
	maxIndex := len(types.Hash{}) - CachedSignatureSize

	for i := 0; i < 50; i++ {
		blockhash := types.Hash{byte(i)}
		c.Insert(blockhash, types.Signature{}, types.Slot(i), struct{}{})

		entry, ok := c.cache[blockhash]
		if !ok {
			t.Fatalf("expected cache entry for blockhash %d", i)
		}
		if entry.sigIndex < 0 || entry.sigIndex >= maxIndex {
			t.Fatalf("sigIndex %d out of range [0,%d)", entry.sigIndex, maxIndex)
		}
	}
}

func TestClearSlotSignatures(t *testing.T) {
	c := New[struct{}](testMaxCacheEntries)
	sig := types.Signature{}
	blockhash := types.Hash{1}
	blockhash2 := types.Hash{2}

	c.Insert(blockhash, sig, 0, struct{}{})
	c.Insert(blockhash, sig, 1, struct{}{})
	c.Insert(blockhash2, sig, 1, struct{}{})

	ancestors0 := Ancestors{0: {}}
	ancestors1 := Ancestors{1: {}}

	if _, _, ok := c.GetSignatureStatus(sig, blockhash, ancestors0); !ok {
		t.Fatalf("expected slot 0 status before clearing")
	}
	c.ClearSlotSignatures(0)
	if _, _, ok := c.GetSignatureStatus(sig, blockhash, ancestors0); ok {
		t.Fatalf("expected slot 0 status to be gone after clearing")
	}
	if _, _, ok := c.GetSignatureStatus(sig, blockhash, ancestors1); !ok {
		t.Fatalf("expected slot 1 status for blockhash to survive")
	}
	if _, _, ok := c.GetSignatureStatus(sig, blockhash2, ancestors1); !ok {
		t.Fatalf("expected slot 1 status for blockhash2 to survive")
	}

	c.ClearSlotSignatures(1)
	if _, _, ok := c.GetSignatureStatus(sig, blockhash, ancestors1); ok {
		t.Fatalf("expected slot 1 status for blockhash to be gone")
	}
	if _, _, ok := c.GetSignatureStatus(sig, blockhash2, ancestors1); ok {
		t.Fatalf("expected slot 1 status for blockhash2 to be gone")
	}
}

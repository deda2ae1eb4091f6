package histories

import (
	"testing"

	"github.com/clustercore/corevalidator/types"
)

func TestSlotHashesAddSortedDescending(t *testing.T) {
	sh := NewSlotHashes(10)
	sh.Add(1, types.Hash{})
	sh.Add(3, types.Hash{})
	sh.Add(2, types.Hash{})

	entries := sh.Entries()
	want := []types.Slot{3, 2, 1}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if entries[i].Slot != w {
			t.Fatalf("entries[%d].Slot = %d, want %d", i, entries[i].Slot, w)
		}
	}
}

func TestSlotHashesTruncatesToCapKeepingNewest(t *testing.T) {
	const cap = 16
	sh := NewSlotHashes(cap)
	for i := 0; i <= cap; i++ {
		var h types.Hash
		h[0] = byte(i)
		sh.Add(types.Slot(i), h)
	}

	if sh.Len() != cap {
		t.Fatalf("len = %d, want %d", sh.Len(), cap)
	}
	// Oldest-inserted slot (0) must be gone; newest (cap) must remain.
	if _, ok := sh.Get(0); ok {
		t.Fatalf("slot 0 should have been evicted")
	}
	if _, ok := sh.Get(cap); !ok {
		t.Fatalf("slot %d should still be present", cap)
	}
}

func TestSlotHashesUpdateInPlace(t *testing.T) {
	sh := NewSlotHashes(10)
	var h1, h2 types.Hash
	h1[0] = 1
	h2[0] = 2
	sh.Add(5, h1)
	sh.Add(5, h2)

	got, ok := sh.Get(5)
	if !ok {
		t.Fatalf("expected slot 5 present")
	}
	if got != h2 {
		t.Fatalf("expected latest hash to win")
	}
	if sh.Len() != 1 {
		t.Fatalf("duplicate slot should not grow the ring, len = %d", sh.Len())
	}
}

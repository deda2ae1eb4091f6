package ledgerstub

import (
	"testing"

	"github.com/clustercore/corevalidator/types"
)

func TestPebbleStorePutGetPackageRoundTrip(t *testing.T) {
	store, err := OpenPebbleStore(t.TempDir(), 4)
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer store.Close()

	pkg := types.AccountsPackage{Root: 42, BlockHeight: 100, Hash: types.Hash{9, 9, 9}}
	if err := store.PutPackage(42, pkg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := store.GetPackage(42)
	if err != nil || !ok {
		t.Fatalf("expected to find package, ok=%v err=%v", ok, err)
	}
	if got != pkg {
		t.Fatalf("got %+v, want %+v", got, pkg)
	}
}

func TestPebbleStoreGetPackageMissing(t *testing.T) {
	store, err := OpenPebbleStore(t.TempDir(), 4)
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer store.Close()

	_, ok, err := store.GetPackage(1)
	if err != nil || ok {
		t.Fatalf("expected ok=false for missing slot, got ok=%v err=%v", ok, err)
	}
}

func TestPebbleStorePutGetPacketBatchRoundTrip(t *testing.T) {
	store, err := OpenPebbleStore(t.TempDir(), 4)
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer store.Close()

	batch := []types.Packet{
		{Payload: []byte("shred-a"), Meta: types.Meta{Slot: 3}},
		{Payload: []byte("shred-b"), Meta: types.Meta{Slot: 3}},
	}
	if err := store.PutPacketBatch(3, batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := store.GetPacketBatch(3)
	if err != nil || !ok {
		t.Fatalf("expected to find batch, ok=%v err=%v", ok, err)
	}
	if len(got) != 2 || string(got[0].Payload) != "shred-a" {
		t.Fatalf("unexpected batch contents: %+v", got)
	}
}

func TestPebbleStoreCompletedSlotsSignalsOnWrite(t *testing.T) {
	store, err := OpenPebbleStore(t.TempDir(), 4)
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer store.Close()

	store.PutPackage(11, types.AccountsPackage{Root: 11})

	select {
	case slot := <-store.CompletedSlots():
		if slot != 11 {
			t.Fatalf("expected signal for slot 11, got %d", slot)
		}
	default:
		t.Fatalf("expected a completed-slot signal after PutPackage")
	}
}

package accountshash

import (
	"sync/atomic"
	"testing"

	"github.com/clustercore/corevalidator/gossip"
	"github.com/clustercore/corevalidator/metrics"
	"github.com/clustercore/corevalidator/types"
	"github.com/clustercore/corevalidator/wire"
)

func newTestVerifier(cfg Config, cluster gossip.ClusterInfo) (*Verifier, *atomic.Bool) {
	var exit atomic.Bool
	packages := make(chan types.AccountsPackage)
	v := New(cfg, cluster, metrics.New(nil), nil, &exit, packages, nil)
	return v, &exit
}

// Scenario 1 from spec.md §8: ring truncation.
func TestRingTruncationScenario(t *testing.T) {
	cluster := gossip.NewFakeClusterInfo(types.Pubkey{0xAA})
	v, _ := newTestVerifier(Config{MaxSnapshotHashes: 16}, cluster)

	for i := 0; i < 17; i++ {
		root := types.Slot(100 + i)
		v.Process(types.AccountsPackage{Root: root, Hash: wire.Hash([]byte{byte(i)})})
	}

	ring := v.Ring()
	if len(ring) != 16 {
		t.Fatalf("expected ring length 16, got %d", len(ring))
	}
	if ring[0].Slot != 101 {
		t.Fatalf("expected oldest surviving slot 101, got %d", ring[0].Slot)
	}
	if ring[15].Slot != 116 {
		t.Fatalf("expected newest slot 116, got %d", ring[15].Slot)
	}
}

// Scenario 2 from spec.md §8: halt on conflict.
func TestHaltOnConflictScenario(t *testing.T) {
	self := types.Pubkey{0xAA}
	v1 := types.Pubkey{0x01}
	cluster := gossip.NewFakeClusterInfo(self)
	cluster.SetPeerAccountsHashes(v1, []types.SlotHash{{Slot: 0, Hash: wire.Hash([]byte("b"))}})

	cfg := Config{
		MaxSnapshotHashes: 16,
		HaltOnTrustedValidatorsAccountsHashMismatch: true,
		TrustedValidators: map[types.Pubkey]struct{}{v1: {}},
	}
	v, exit := newTestVerifier(cfg, cluster)

	v.Process(types.AccountsPackage{Root: 0, Hash: wire.Hash([]byte("a"))})

	if !exit.Load() {
		t.Fatalf("expected exit flag to be set on trusted-validator conflict")
	}
}

// Scenario 3 from spec.md §8: no halt when slot not shared.
func TestNoHaltWhenSlotNotSharedScenario(t *testing.T) {
	self := types.Pubkey{0xAA}
	v1 := types.Pubkey{0x01}
	cluster := gossip.NewFakeClusterInfo(self)
	cluster.SetPeerAccountsHashes(v1, []types.SlotHash{{Slot: 5, Hash: wire.Hash([]byte("h5"))}})

	cfg := Config{
		MaxSnapshotHashes: 16,
		HaltOnTrustedValidatorsAccountsHashMismatch: true,
		TrustedValidators: map[types.Pubkey]struct{}{v1: {}},
	}
	v, exit := newTestVerifier(cfg, cluster)

	v.Process(types.AccountsPackage{Root: 0, Hash: wire.Hash([]byte("h0"))})

	if exit.Load() {
		t.Fatalf("expected no halt when trusted validator's slot isn't locally shared")
	}
}

func TestHaltDisabledWhenTrustedValidatorsNil(t *testing.T) {
	self := types.Pubkey{0xAA}
	v1 := types.Pubkey{0x01}
	cluster := gossip.NewFakeClusterInfo(self)
	cluster.SetPeerAccountsHashes(v1, []types.SlotHash{{Slot: 0, Hash: wire.Hash([]byte("conflict"))}})

	cfg := Config{
		MaxSnapshotHashes: 16,
		HaltOnTrustedValidatorsAccountsHashMismatch: true,
		TrustedValidators: nil,
	}
	v, exit := newTestVerifier(cfg, cluster)

	v.Process(types.AccountsPackage{Root: 0, Hash: wire.Hash([]byte("a"))})

	if exit.Load() {
		t.Fatalf("expected no halt with an empty trusted validator set")
	}
}

func TestFaultInjectionReplacesRecordedHash(t *testing.T) {
	cluster := gossip.NewFakeClusterInfo(types.Pubkey{0xAA})
	cfg := Config{MaxSnapshotHashes: 16, FaultInjectionRateSlots: 2}
	v, _ := newTestVerifier(cfg, cluster)

	h := wire.Hash([]byte("real"))
	v.Process(types.AccountsPackage{Root: 100, Hash: h}) // 100 % 2 == 0: faulted
	v.Process(types.AccountsPackage{Root: 101, Hash: h}) // 101 % 2 != 0: unfaulted

	ring := v.Ring()
	if len(ring) != 2 {
		t.Fatalf("expected 2 ring entries, got %d", len(ring))
	}
	if ring[0].Hash == h {
		t.Fatalf("expected slot 100's hash to be replaced by fault injection")
	}
	if ring[1].Hash != h {
		t.Fatalf("expected slot 101's hash to remain unmodified")
	}
}

func TestPublishesRingOnEveryProcess(t *testing.T) {
	self := types.Pubkey{0xAA}
	cluster := gossip.NewFakeClusterInfo(self)
	v, _ := newTestVerifier(Config{MaxSnapshotHashes: 16}, cluster)

	v.Process(types.AccountsPackage{Root: 1, Hash: wire.Hash([]byte("x"))})

	var published []types.SlotHash
	if !cluster.GetAccountsHashForNode(self, func(r []types.SlotHash) { published = r }) {
		t.Fatalf("expected the verifier to publish its ring under its own identity")
	}
	if len(published) != 1 || published[0].Slot != 1 {
		t.Fatalf("unexpected published ring: %+v", published)
	}
}

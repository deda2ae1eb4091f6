package epochstakes

import (
	"testing"
	"time"

	"github.com/clustercore/corevalidator/gossip"
	"github.com/clustercore/corevalidator/types"
)

// countingBank counts how many times StakedNodes is invoked, so tests can
// assert the cache avoids redundant recomputation.
type countingBank struct {
	epoch  types.Epoch
	calls  int
	stakes map[types.Pubkey]types.Stake
}

func (b *countingBank) Epoch() types.Epoch { return b.epoch }

func (b *countingBank) StakedNodes(types.Epoch) map[types.Pubkey]types.Stake {
	b.calls++
	return b.stakes
}

func newTestCluster() *gossip.FakeClusterInfo {
	self := types.Pubkey{0xAA}
	v1 := types.Pubkey{0x01}
	v2 := types.Pubkey{0x02}
	c := gossip.NewFakeClusterInfo(self)
	c.SetPeerTable([]types.ContactInfo{
		{Pubkey: v1, TVUForwardAddr: "10.0.0.1:8001"},
		{Pubkey: v2, TVUForwardAddr: "10.0.0.2:8001"},
	})
	return c
}

func TestGetPopulatesOnFirstCall(t *testing.T) {
	bank := &countingBank{epoch: 1, stakes: map[types.Pubkey]types.Stake{{0x01}: 100, {0x02}: 50}}
	cluster := newTestCluster()
	c := New()

	stakes, peers, index := c.Get(bank, cluster)

	if bank.calls != 1 {
		t.Fatalf("expected exactly 1 StakedNodes call, got %d", bank.calls)
	}
	if len(stakes) != 2 || len(peers) != 2 || len(index) != 2 {
		t.Fatalf("unexpected cache contents: stakes=%v peers=%v index=%v", stakes, peers, index)
	}
	// Higher-stake peer must sort first.
	if peers[0].Pubkey != (types.Pubkey{0x01}) {
		t.Fatalf("expected the higher-stake peer first, got %x", peers[0].Pubkey)
	}
}

func TestGetReusesFreshEntryWithinSameEpoch(t *testing.T) {
	bank := &countingBank{epoch: 1, stakes: map[types.Pubkey]types.Stake{{0x01}: 100}}
	cluster := newTestCluster()
	c := New()

	c.Get(bank, cluster)
	c.Get(bank, cluster)
	c.Get(bank, cluster)

	if bank.calls != 1 {
		t.Fatalf("expected the cache to reuse the fresh entry, got %d StakedNodes calls", bank.calls)
	}
}

func TestGetRefreshesOnEpochChange(t *testing.T) {
	bank := &countingBank{epoch: 1, stakes: map[types.Pubkey]types.Stake{{0x01}: 100}}
	cluster := newTestCluster()
	c := New()

	c.Get(bank, cluster)
	bank.epoch = 2
	c.Get(bank, cluster)

	if bank.calls != 2 {
		t.Fatalf("expected a refresh on epoch change, got %d StakedNodes calls", bank.calls)
	}
}

func TestGetRefreshesAfterPeerStalenessWindow(t *testing.T) {
	bank := &countingBank{epoch: 1, stakes: map[types.Pubkey]types.Stake{{0x01}: 100}}
	cluster := newTestCluster()
	c := New()

	c.Get(bank, cluster)
	c.mu.Lock()
	c.peerUpdated = time.Now().Add(-2 * time.Second)
	c.mu.Unlock()
	c.Get(bank, cluster)

	if bank.calls != 2 {
		t.Fatalf("expected a refresh once the peer staleness window elapsed, got %d calls", bank.calls)
	}
}

func TestGetReturnsIndependentCopies(t *testing.T) {
	bank := &countingBank{epoch: 1, stakes: map[types.Pubkey]types.Stake{{0x01}: 100}}
	cluster := newTestCluster()
	c := New()

	stakes, peers, _ := c.Get(bank, cluster)
	stakes[types.Pubkey{0x09}] = 999
	peers[0].TVUForwardAddr = "mutated"

	stakes2, peers2, _ := c.Get(bank, cluster)
	if _, ok := stakes2[types.Pubkey{0x09}]; ok {
		t.Fatalf("mutating a returned stakes map must not affect the cache")
	}
	if peers2[0].TVUForwardAddr == "mutated" {
		t.Fatalf("mutating a returned peer slice must not affect the cache")
	}
}

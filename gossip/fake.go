package gossip

import (
	"sort"
	"sync"

	"github.com/clustercore/corevalidator/types"
)

// FakeClusterInfo is a pure in-memory ClusterInfo, used by the epoch-stakes,
// accounts-hash verifier, and turbine unit tests in place of a real libp2p
// host. Grounded on the teacher's in-memory storage map+RWMutex pattern.
type FakeClusterInfo struct {
	mu    sync.RWMutex
	self  types.Pubkey
	peers map[types.Pubkey][]types.SlotHash
	table map[types.Pubkey]types.ContactInfo
}

// NewFakeClusterInfo creates an empty FakeClusterInfo identifying as self.
func NewFakeClusterInfo(self types.Pubkey) *FakeClusterInfo {
	return &FakeClusterInfo{
		self:  self,
		peers: make(map[types.Pubkey][]types.SlotHash),
		table: make(map[types.Pubkey]types.ContactInfo),
	}
}

// Self implements ClusterInfo.
func (f *FakeClusterInfo) Self() types.Pubkey { return f.self }

// PushAccountsHashes implements ClusterInfo by recording self's ring as if
// it had been received from the network.
func (f *FakeClusterInfo) PushAccountsHashes(ring []types.SlotHash) {
	cp := make([]types.SlotHash, len(ring))
	copy(cp, ring)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.peers[f.self] = cp
}

// SetPeerAccountsHashes is a test helper that injects a ring as if
// published by pub, without going through PushAccountsHashes (which always
// records under self).
func (f *FakeClusterInfo) SetPeerAccountsHashes(pub types.Pubkey, ring []types.SlotHash) {
	cp := make([]types.SlotHash, len(ring))
	copy(cp, ring)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.peers[pub] = cp
}

// GetAccountsHashForNode implements ClusterInfo.
func (f *FakeClusterInfo) GetAccountsHashForNode(pub types.Pubkey, visit func([]types.SlotHash)) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ring, ok := f.peers[pub]
	if !ok {
		return false
	}
	visit(ring)
	return true
}

// SetPeerTable replaces the stake-sorted peer directory's backing contact
// info; a test helper for seeding turbine fanout scenarios.
func (f *FakeClusterInfo) SetPeerTable(peers []types.ContactInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.table = make(map[types.Pubkey]types.ContactInfo, len(peers))
	for _, p := range peers {
		f.table[p.Pubkey] = p
	}
}

// SortedRetransmitPeersAndStakes implements ClusterInfo: peers are sorted
// by stake descending, pubkey ascending as a tie-break, and the returned
// index table carries each sorted position and that peer's own stake.
func (f *FakeClusterInfo) SortedRetransmitPeersAndStakes(stakes map[types.Pubkey]types.Stake) ([]types.ContactInfo, []types.StakeIndex) {
	f.mu.RLock()
	peers := make([]types.ContactInfo, 0, len(f.table))
	for _, p := range f.table {
		peers = append(peers, p)
	}
	f.mu.RUnlock()

	sort.Slice(peers, func(i, j int) bool {
		si, sj := stakes[peers[i].Pubkey], stakes[peers[j].Pubkey]
		if si != sj {
			return si > sj
		}
		return peers[i].Pubkey.Compare(peers[j].Pubkey) < 0
	})

	indices := make([]types.StakeIndex, len(peers))
	for i, p := range peers {
		indices[i] = types.StakeIndex{Index: types.Index(i), Stake: stakes[p.Pubkey]}
	}
	return peers, indices
}

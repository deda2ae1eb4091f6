// Package epochstakes implements the turbine retransmit stage's
// epoch-stakes cache (spec.md §4.3): a single shared record, refreshed
// under double-checked locking, mapping the current bank epoch to its
// staked-node table and a stake-sorted peer directory. Grounded on
// `forkchoice/store.go`'s sync.RWMutex guard-drop-upgrade idiom and
// original_source/core/src/retransmit_stage.rs's EpochStakesCache refresh
// block.
package epochstakes

import (
	"sync"
	"time"

	"github.com/clustercore/corevalidator/gossip"
	"github.com/clustercore/corevalidator/types"
)

// peerStaleness bounds how long a sorted peer table may be reused before a
// refresh is forced, independent of epoch staleness (spec.md §4.3: "the
// staleness bound is ≤ 1 second for peers").
const peerStaleness = time.Second

// BankSource is the out-of-scope bank collaborator (spec.md §1): only the
// two queries the cache needs are modeled here.
type BankSource interface {
	// Epoch returns the epoch containing the bank's current slot.
	Epoch() types.Epoch
	// StakedNodes returns the stake table effective at epoch.
	StakedNodes(epoch types.Epoch) map[types.Pubkey]types.Stake
}

// Cache is the single shared epoch-stakes record. Safe for concurrent use
// by every retransmit worker.
type Cache struct {
	mu sync.RWMutex

	epoch       types.Epoch
	peerUpdated time.Time
	stakes      map[types.Pubkey]types.Stake
	peers       []types.ContactInfo
	stakeIndex  []types.StakeIndex
}

// New creates an empty cache; the first Get call always misses and
// populates it.
func New() *Cache {
	return &Cache{}
}

// Get returns the stake table, sorted peer directory, and stake-index
// table for bank's current epoch, refreshing the cache first if it is
// stale. This is the retransmit worker's per-packet hot path (spec.md
// §4.4 step 2): the common case only ever takes the read lock.
func (c *Cache) Get(bank BankSource, cluster gossip.ClusterInfo) (map[types.Pubkey]types.Stake, []types.ContactInfo, []types.StakeIndex) {
	epoch := bank.Epoch()

	c.mu.RLock()
	fresh := c.epoch == epoch && time.Since(c.peerUpdated) < peerStaleness
	if fresh {
		stakes, peers, index := c.snapshotLocked()
		c.mu.RUnlock()
		return stakes, peers, index
	}
	c.mu.RUnlock()

	c.mu.Lock()
	// Re-check: another worker may have refreshed while we waited for the
	// write lock.
	if c.epoch != epoch || time.Since(c.peerUpdated) >= peerStaleness {
		stakes := bank.StakedNodes(epoch)
		peers, index := cluster.SortedRetransmitPeersAndStakes(stakes)
		c.epoch = epoch
		c.peerUpdated = time.Now()
		c.stakes = stakes
		c.peers = peers
		c.stakeIndex = index
	}
	c.mu.Unlock()

	c.mu.RLock()
	stakes, peers, index := c.snapshotLocked()
	c.mu.RUnlock()
	return stakes, peers, index
}

// snapshotLocked copies the cache's fields out under whatever lock the
// caller already holds.
func (c *Cache) snapshotLocked() (map[types.Pubkey]types.Stake, []types.ContactInfo, []types.StakeIndex) {
	stakes := make(map[types.Pubkey]types.Stake, len(c.stakes))
	for k, v := range c.stakes {
		stakes[k] = v
	}
	peers := make([]types.ContactInfo, len(c.peers))
	copy(peers, c.peers)
	index := make([]types.StakeIndex, len(c.stakeIndex))
	copy(index, c.stakeIndex)
	return stakes, peers, index
}

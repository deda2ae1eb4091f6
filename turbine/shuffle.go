// Package turbine implements the stake-weighted retransmit stage (spec.md
// §4.4): a pool of per-socket workers that shuffle the sorted peer table
// deterministically per packet, partition it into a neighbor/children
// fanout tree, and forward shreds accordingly. Grounded on
// original_source/core/src/retransmit_stage.rs's `retransmit`/
// `retransmitter` functions; the shuffle/fanout helpers they call
// (`ClusterInfo::shuffle_peers_and_index`, `compute_retransmit_peers`) were
// not present in the retrieved source, so they are implemented here
// directly from spec.md §4.4's documented contract (see DESIGN.md).
package turbine

import (
	"math/rand/v2"

	"github.com/clustercore/corevalidator/types"
)

// ShufflePeersAndIndex deterministically reorders stakeIndex using seed as
// the sole entropy source (spec.md §4.4: "the same seed on every honest
// node yields the same shuffle, so tree position is agreed cluster-wide"),
// locates selfID's position in the shuffled order, and returns that
// position plus the remaining peer indices (into peers) with self removed.
func ShufflePeersAndIndex(selfID types.Pubkey, peers []types.ContactInfo, stakeIndex []types.StakeIndex, seed [32]byte) (myPos int, remaining []int, ok bool) {
	shuffled := make([]types.StakeIndex, len(stakeIndex))
	copy(shuffled, stakeIndex)

	src := rand.NewChaCha8(seed)
	rng := rand.New(src)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	selfPos := -1
	for i, si := range shuffled {
		if int(si.Index) >= len(peers) {
			continue
		}
		if peers[si.Index].Pubkey == selfID {
			selfPos = i
			break
		}
	}
	if selfPos == -1 {
		return 0, nil, false
	}

	remaining = make([]int, 0, len(shuffled)-1)
	for i, si := range shuffled {
		if i == selfPos {
			continue
		}
		remaining = append(remaining, int(si.Index))
	}
	return selfPos, remaining, true
}

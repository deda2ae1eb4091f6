package turbine

import (
	"testing"

	"github.com/clustercore/corevalidator/types"
)

func samplePeersAndStakes() ([]types.ContactInfo, []types.StakeIndex) {
	peers := []types.ContactInfo{
		{Pubkey: types.Pubkey{0x01}},
		{Pubkey: types.Pubkey{0x02}},
		{Pubkey: types.Pubkey{0x03}},
		{Pubkey: types.Pubkey{0x04}},
		{Pubkey: types.Pubkey{0x05}},
	}
	stakeIndex := make([]types.StakeIndex, len(peers))
	for i := range peers {
		stakeIndex[i] = types.StakeIndex{Index: types.Index(i), Stake: types.Stake(100 - i)}
	}
	return peers, stakeIndex
}

func TestShuffleIsDeterministicForSameSeed(t *testing.T) {
	peers, stakeIndex := samplePeersAndStakes()
	self := types.Pubkey{0x03}
	seed := [32]byte{1, 2, 3}

	pos1, rem1, ok1 := ShufflePeersAndIndex(self, peers, stakeIndex, seed)
	pos2, rem2, ok2 := ShufflePeersAndIndex(self, peers, stakeIndex, seed)

	if !ok1 || !ok2 {
		t.Fatalf("expected self to be found in both shuffles")
	}
	if pos1 != pos2 {
		t.Fatalf("same seed produced different self positions: %d vs %d", pos1, pos2)
	}
	if !equalInts(rem1, rem2) {
		t.Fatalf("same seed produced different remaining orders: %v vs %v", rem1, rem2)
	}
}

func TestShuffleDiffersAcrossSeeds(t *testing.T) {
	peers, stakeIndex := samplePeersAndStakes()
	self := types.Pubkey{0x03}

	_, rem1, _ := ShufflePeersAndIndex(self, peers, stakeIndex, [32]byte{1})
	_, rem2, _ := ShufflePeersAndIndex(self, peers, stakeIndex, [32]byte{2})

	if equalInts(rem1, rem2) {
		t.Fatalf("expected different seeds to (almost certainly) produce different orders")
	}
}

func TestShuffleRemainingExcludesSelf(t *testing.T) {
	peers, stakeIndex := samplePeersAndStakes()
	self := types.Pubkey{0x03}
	selfIndex := 2

	_, remaining, ok := ShufflePeersAndIndex(self, peers, stakeIndex, [32]byte{9, 9, 9})
	if !ok {
		t.Fatalf("expected self to be found")
	}
	if len(remaining) != len(peers)-1 {
		t.Fatalf("expected remaining to have all peers but self, got %d", len(remaining))
	}
	for _, idx := range remaining {
		if idx == selfIndex {
			t.Fatalf("remaining must not contain self's peer index")
		}
	}
}

func TestShuffleUnknownSelfReturnsNotOK(t *testing.T) {
	peers, stakeIndex := samplePeersAndStakes()
	unknown := types.Pubkey{0xFF}

	_, _, ok := ShufflePeersAndIndex(unknown, peers, stakeIndex, [32]byte{1})
	if ok {
		t.Fatalf("expected ok=false when self is not present in the peer table")
	}
}

package gossip

import "github.com/clustercore/corevalidator/types"

// ClusterInfo is the gossip-layer collaborator the accounts-hash verifier
// and turbine retransmit stage depend on: publishing this node's own
// accounts-hash ring, reading a peer's last-published ring, and producing
// the stake-sorted peer table retransmit fanout needs. spec.md treats
// gossip as an external collaborator referenced only through this surface.
type ClusterInfo interface {
	// PushAccountsHashes republishes this node's current snapshot-hash
	// ring as a gossip value. The value carries no signature.
	PushAccountsHashes(ring []types.SlotHash)

	// GetAccountsHashForNode looks up the last accounts-hashes ring
	// published by pub and invokes visit with it. Returns false if no
	// value has ever been seen for pub.
	GetAccountsHashForNode(pub types.Pubkey, visit func([]types.SlotHash)) bool

	// SortedRetransmitPeersAndStakes returns the current peer directory
	// sorted deterministically by stake (descending, pubkey tie-break),
	// paired with an index table giving each sorted position and that
	// peer's own stake, for fanout partitioning.
	SortedRetransmitPeersAndStakes(stakes map[types.Pubkey]types.Stake) ([]types.ContactInfo, []types.StakeIndex)

	// Self returns this node's own pubkey identity.
	Self() types.Pubkey
}

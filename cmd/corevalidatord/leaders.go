package main

import "github.com/clustercore/corevalidator/types"

// roundRobinLeaders is a minimal turbine.LeaderSchedule stand-in for the
// real leader-schedule cache (out of scope for this core, spec.md §1):
// it assigns each slot to a validator in a fixed round-robin order, the
// same scheme the teacher used for proposer selection.
type roundRobinLeaders struct {
	validators []types.Pubkey
}

func (r roundRobinLeaders) LeaderAt(slot types.Slot) (types.Pubkey, bool) {
	if len(r.validators) == 0 {
		return types.Pubkey{}, false
	}
	return r.validators[uint64(slot)%uint64(len(r.validators))], true
}

package accountshash

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clustercore/corevalidator/gossip"
	"github.com/clustercore/corevalidator/metrics"
	"github.com/clustercore/corevalidator/types"
	"github.com/clustercore/corevalidator/wire"
)

// Config holds the verifier's cadence and trust-set knobs (spec.md §6).
type Config struct {
	MaxSnapshotHashes int

	FaultInjectionRateSlots uint64
	SnapshotIntervalSlots   uint64

	HaltOnTrustedValidatorsAccountsHashMismatch bool
	// TrustedValidators is nil to mean "trust-all, disable the halt check"
	// (spec.md §6).
	TrustedValidators map[types.Pubkey]struct{}
}

// Verifier is the single long-lived accounts-hash-verifier worker (spec.md
// §4.2): it owns the snapshot-hash ring, cross-checks trusted validators,
// forwards packages to archival on interval, and republishes the ring on
// gossip.
type Verifier struct {
	cfg     Config
	cluster gossip.ClusterInfo
	metrics *metrics.Recorder
	logger  *slog.Logger
	exit    *atomic.Bool

	ring     *SnapshotHashRing
	packages <-chan types.AccountsPackage
	// archival is the optional best-effort forward target; nil disables
	// forwarding entirely.
	archival chan<- types.AccountsPackage
}

// New creates a Verifier. exit is the process-wide shared exit flag the
// orchestrator also observes; packages is the inbound accounts-package
// channel; archival may be nil.
func New(cfg Config, cluster gossip.ClusterInfo, rec *metrics.Recorder, logger *slog.Logger, exit *atomic.Bool, packages <-chan types.AccountsPackage, archival chan<- types.AccountsPackage) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		cfg:      cfg,
		cluster:  cluster,
		metrics:  rec,
		logger:   logger,
		exit:     exit,
		ring:     NewSnapshotHashRing(cfg.MaxSnapshotHashes),
		packages: packages,
		archival: archival,
	}
}

// Ring exposes the verifier's current published ring, for tests and
// diagnostics.
func (v *Verifier) Ring() []types.SlotHash {
	return v.ring.Snapshot()
}

// Run drives the verifier's receive loop: poll exit, receive the next
// package with a 1-second timeout, process it, repeat. Returns when exit is
// set, ctx is cancelled, or the inbound channel is closed.
func (v *Verifier) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if v.exit.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case pkg, ok := <-v.packages:
			if !ok {
				return
			}
			v.Process(pkg)
		case <-ticker.C:
		}
	}
}

// Process runs a single package through the verifier pipeline (spec.md
// §4.2 steps 3-7). Exported so tests can drive the verifier synchronously
// without a goroutine.
func (v *Verifier) Process(pkg types.AccountsPackage) {
	hash := pkg.Hash
	if v.cfg.FaultInjectionRateSlots != 0 && uint64(pkg.Root)%v.cfg.FaultInjectionRateSlots == 0 {
		v.logger.Warn("inserting fault", "slot", pkg.Root)
		extra := byte(rand.IntN(10))
		hash = wire.ExtendAndHash(pkg.Hash, extra)
	}
	v.ring.Append(pkg.Root, hash)

	if v.cfg.HaltOnTrustedValidatorsAccountsHashMismatch {
		slotToHash := v.ring.SlotToHash()
		if v.shouldHalt(slotToHash) {
			v.exit.Store(true)
		}
	}

	if v.cfg.SnapshotIntervalSlots != 0 && pkg.BlockHeight%v.cfg.SnapshotIntervalSlots == 0 {
		v.forwardToArchival(pkg)
	}

	v.cluster.PushAccountsHashes(v.ring.Snapshot())
}

// forwardToArchival best-effort forwards pkg to the archival sender.
// A nil archival channel disables forwarding silently. A full channel drops
// the package without blocking (spec.md §4.2 step 6 — archival is optional)
// and counts the drop as a metric per the Open Question resolution recorded
// in DESIGN.md.
func (v *Verifier) forwardToArchival(pkg types.AccountsPackage) {
	if v.archival == nil {
		return
	}
	select {
	case v.archival <- pkg:
	default:
		if v.metrics != nil {
			v.metrics.Counter("snapshot-package-forward-dropped", 1)
		}
	}
}

// shouldHalt implements the trusted-validator cross-check (spec.md §4.2
// step 5): for each trusted peer, walk their last published ring and
// compare against slotToHash, which doubles as the evolving reference map
// (so later peers are cross-checked against the first peer that reported a
// given slot — the documented tie-break rule).
func (v *Verifier) shouldHalt(slotToHash map[types.Slot]types.Hash) bool {
	verified := 0
	var highest types.Slot

	for tv := range v.cfg.TrustedValidators {
		conflicting := false
		v.cluster.GetAccountsHashForNode(tv, func(ring []types.SlotHash) {
			for _, sh := range ring {
				ref, exists := slotToHash[sh.Slot]
				if exists {
					if ref != sh.Hash {
						v.logger.Error("trusted validator produced conflicting hash",
							"validator", tv.String(), "slot", sh.Slot,
							"hash", sh.Hash.Short(), "reference", ref.Short())
						conflicting = true
						break
					}
					verified++
				} else {
					if sh.Slot > highest {
						highest = sh.Slot
					}
					slotToHash[sh.Slot] = sh.Hash
				}
			}
		})
		if conflicting {
			return true
		}
	}

	if v.metrics != nil {
		v.metrics.Counter("accounts_hash_verifier-hashes_verified", verified)
		v.metrics.Datapoint("accounts_hash_verifier", "highest_slot_verified", int64(highest))
	}
	return false
}

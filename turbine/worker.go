package turbine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clustercore/corevalidator/epochstakes"
	"github.com/clustercore/corevalidator/gossip"
	"github.com/clustercore/corevalidator/metrics"
	"github.com/clustercore/corevalidator/types"
)

// LeaderSchedule resolves the leader identity for a slot; shreds are never
// retransmitted back to the leader (spec.md §4.4).
type LeaderSchedule interface {
	LeaderAt(slot types.Slot) (types.Pubkey, bool)
}

// WorkerConfig holds the knobs a retransmit worker needs, shared across
// every worker in a Pool.
type WorkerConfig struct {
	DataPlaneFanout    int
	MaxPacketBatchSize int
}

// Worker is one retransmit thread, bound to a single UDP socket (spec.md
// §4.4: "a pool of N worker threads, one per UDP socket"). Grounded on
// original_source/core/src/retransmit_stage.rs's `retransmit` function.
type Worker struct {
	id      int
	cfg     WorkerConfig
	socket  Socket
	batches <-chan []types.Packet

	cache   *epochstakes.Cache
	bank    epochstakes.BankSource
	cluster gossip.ClusterInfo
	leaders LeaderSchedule

	stats   *Stats
	metrics *metrics.Recorder
	logger  *slog.Logger
	exit    *atomic.Bool
}

// NewWorker constructs a single retransmit worker.
func NewWorker(id int, cfg WorkerConfig, socket Socket, batches <-chan []types.Packet, cache *epochstakes.Cache, bank epochstakes.BankSource, cluster gossip.ClusterInfo, leaders LeaderSchedule, stats *Stats, rec *metrics.Recorder, logger *slog.Logger, exit *atomic.Bool) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		id:      id,
		cfg:     cfg,
		socket:  socket,
		batches: batches,
		cache:   cache,
		bank:    bank,
		cluster: cluster,
		leaders: leaders,
		stats:   stats,
		metrics: rec,
		logger:  logger,
		exit:    exit,
	}
}

// Run drives the worker's receive-drain-process loop until exit is set,
// ctx is cancelled, or the upstream channel closes (spec.md §4.4 steps
// 1-4; "failure" clause: a receive timeout is benign, a closed channel
// terminates the worker).
func (w *Worker) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if w.exit.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case first, ok := <-w.batches:
			if !ok {
				return
			}
			all := w.drain(first)
			w.processBatches(all)
		case <-ticker.C:
		}
	}
}

// drain accumulates first plus any additional batches available on the
// channel without blocking, up to MaxPacketBatchSize total packets (spec.md
// §4.4 step 1).
func (w *Worker) drain(first []types.Packet) [][]types.Packet {
	all := [][]types.Packet{first}
	total := len(first)
	for total < w.cfg.MaxPacketBatchSize {
		select {
		case next, ok := <-w.batches:
			if !ok {
				return all
			}
			all = append(all, next)
			total += len(next)
		default:
			return all
		}
	}
	return all
}

// processBatches runs every packet in batches through the fanout pipeline
// and folds the resulting counters into the shared Stats.
func (w *Worker) processBatches(batches [][]types.Packet) {
	stakes, peers, stakeIndex := w.cache.Get(w.bank, w.cluster)
	self := w.cluster.Self()

	totalPackets, discardCount, repairCount, retransmitCount := 0, 0, 0, 0
	bySlot := make(map[types.Slot]int)
	bySource := make(map[string]int)
	peerCount := len(peers)

	for _, batch := range batches {
		for _, pkt := range batch {
			totalPackets++
			if pkt.Meta.Discard {
				discardCount++
				continue
			}
			if pkt.Meta.Repair {
				repairCount++
				continue
			}

			bySlot[pkt.Meta.Slot]++
			bySource[pkt.Meta.Addr]++

			myPos, remaining, ok := ShufflePeersAndIndex(self, peers, stakeIndex, pkt.Meta.Seed)
			if !ok {
				continue
			}
			if len(remaining) > peerCount {
				peerCount = len(remaining)
			}
			neighbors, children := ComputeRetransmitPeers(w.cfg.DataPlaneFanout, myPos, remaining)

			leader, hasLeader := w.leaders.LeaderAt(pkt.Meta.Slot)

			sent := w.forward(pkt, peers, neighbors, children, leader, hasLeader, stakes)
			retransmitCount += sent
		}
	}

	w.stats.RecordBatch(w.metrics, totalPackets, retransmitCount, discardCount, repairCount, bySlot, bySource, peerCount)
}

// forward implements the per-packet forward/neighbor state machine
// (spec.md §4.4 step 3's final bullet) and returns the number of
// successful sends.
func (w *Worker) forward(pkt types.Packet, peers []types.ContactInfo, neighbors, children []int, leader types.Pubkey, hasLeader bool, stakes map[types.Pubkey]types.Stake) int {
	sent := 0
	send := func(idx int, forwardFlag bool) {
		p := peers[idx]
		if hasLeader && p.Pubkey == leader {
			return
		}
		if err := w.socket.SendTo(p.TVUForwardAddr, encodeFrame(forwardFlag, pkt.Payload)); err != nil {
			w.logger.Warn("retransmit send failed", "peer", p.Pubkey.String(), "error", err)
			if w.metrics != nil {
				w.metrics.Error("turbine-send", err)
			}
			return
		}
		sent++
	}

	if !pkt.Meta.Forward {
		for _, idx := range neighbors {
			send(idx, true)
		}
		for _, idx := range children {
			send(idx, false)
		}
	} else {
		for _, idx := range children {
			send(idx, true)
		}
	}
	return sent
}

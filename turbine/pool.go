package turbine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/clustercore/corevalidator/epochstakes"
	"github.com/clustercore/corevalidator/gossip"
	"github.com/clustercore/corevalidator/metrics"
	"github.com/clustercore/corevalidator/types"
)

// PoolConfig configures a Pool of retransmit workers.
type PoolConfig struct {
	WorkerConfig
}

// Pool is the retransmit stage: one Worker per socket, sharing one Stats
// accumulator (spec.md §4.4, §4.5). Grounded on
// original_source/core/src/retransmit_stage.rs's `retransmitter` function,
// which spawns one thread per socket sharing one `Arc<RetransmitStats>`.
type Pool struct {
	workers []*Worker
	stats   *Stats
}

// NewPool constructs one Worker per socket. batches is the shared upstream
// packet-batch channel every worker competes to drain from, matching the
// original's single `Arc<Mutex<PacketReceiver>>` fanned out across
// threads.
func NewPool(sockets []Socket, batches <-chan []types.Packet, cfg PoolConfig, cache *epochstakes.Cache, bank epochstakes.BankSource, cluster gossip.ClusterInfo, leaders LeaderSchedule, rec *metrics.Recorder, logger *slog.Logger, exit *atomic.Bool) *Pool {
	stats := NewStats()
	workers := make([]*Worker, len(sockets))
	for i, sock := range sockets {
		workers[i] = NewWorker(i, cfg.WorkerConfig, sock, batches, cache, bank, cluster, leaders, stats, rec, logger, exit)
	}
	return &Pool{workers: workers, stats: stats}
}

// Run starts every worker in its own goroutine, each joining wg
// independently, and returns without waiting; callers wait on wg to join
// the workers once exit is observed (spec.md §4.5).
func (p *Pool) Run(ctx context.Context, wg *sync.WaitGroup) {
	for _, w := range p.workers {
		wg.Add(1)
		go w.Run(ctx, wg)
	}
}

// Stats exposes the pool's shared accumulator, for tests and diagnostics.
func (p *Pool) Stats() *Stats {
	return p.stats
}

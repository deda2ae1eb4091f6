// Package node implements the top-level validator core service
// orchestrator (spec.md §4.5): it constructs every subsystem in
// dependency order, wires them to a single shared exit flag, and joins
// them on shutdown. Grounded on the teacher's node/node.go
// ctx/cancel/wg + Start/Stop skeleton, generalized from "slot ticker
// drives block production" to "gossip carries accounts-hashes; the
// verifier and retransmit pool drain their own channels".
package node

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clustercore/corevalidator/accountshash"
	"github.com/clustercore/corevalidator/clock"
	"github.com/clustercore/corevalidator/config"
	"github.com/clustercore/corevalidator/epochstakes"
	"github.com/clustercore/corevalidator/gossip"
	"github.com/clustercore/corevalidator/histories"
	"github.com/clustercore/corevalidator/metrics"
	"github.com/clustercore/corevalidator/statuscache"
	"github.com/clustercore/corevalidator/turbine"
	"github.com/clustercore/corevalidator/types"
)

// Config holds everything New needs beyond the shared config.Config:
// identity, genesis timing, and the out-of-scope leader schedule and
// retransmit sockets this deployment supplies.
type Config struct {
	Cfg config.Config

	Self        types.Pubkey
	GenesisTime uint64
	Schedule    types.EpochSchedule

	ListenAddrs []string
	Bootnodes   []string

	Leaders turbine.LeaderSchedule
	Sockets []turbine.Socket

	// Archival is the optional best-effort forward target for accounts
	// packages (spec.md §4.2 step 6); nil disables forwarding.
	Archival chan<- types.AccountsPackage

	Logger *slog.Logger
}

// Node is the top-level validator core service.
type Node struct {
	cfg    Config
	logger *slog.Logger

	cluster  *gossip.Service
	bank     *clockBank
	epoch    *epochstakes.Cache
	verifier *accountshash.Verifier
	pool     *turbine.Pool

	packages chan types.AccountsPackage
	batches  chan []types.Packet

	exit   *atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs every subsystem in dependency order: the gossip service
// (the ClusterInfo every other component needs), the epoch-stakes cache,
// the accounts-hash verifier, and the turbine retransmit pool (spec.md
// §4.5).
func New(ctx context.Context, cfg Config) (*Node, error) {
	ctx, cancel := context.WithCancel(ctx)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	host, err := gossip.NewHost(ctx, gossip.HostConfig{ListenAddrs: cfg.ListenAddrs})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create host: %w", err)
	}

	bootnodes, err := gossip.ParseBootnodes(cfg.Bootnodes)
	if err != nil {
		cancel()
		host.Close()
		return nil, fmt.Errorf("parse bootnodes: %w", err)
	}

	var exit atomic.Bool

	packages := make(chan types.AccountsPackage, 1)
	batches := make(chan []types.Packet, 1)

	n := &Node{
		cfg:      cfg,
		logger:   logger,
		packages: packages,
		batches:  batches,
		exit:     &exit,
		ctx:      ctx,
		cancel:   cancel,
	}

	cluster, err := gossip.NewService(ctx, gossip.ServiceConfig{
		Host:      host,
		Self:      cfg.Self,
		Bootnodes: bootnodes,
		Handlers:  &gossip.MessageHandlers{},
		Logger:    logger,
	})
	if err != nil {
		cancel()
		host.Close()
		return nil, fmt.Errorf("create gossip service: %w", err)
	}
	n.cluster = cluster

	rec := metrics.New(logger)

	slotDuration := 400 * time.Millisecond
	n.bank = newClockBank(clock.New(cfg.GenesisTime, slotDuration), cfg.Schedule, bankSizes{
		SlotMaxEntries:         cfg.Cfg.SlotMaxEntries,
		SlotHistoryMaxEntries:  cfg.Cfg.SlotHistoryMaxEntries,
		StakeHistoryMaxEntries: cfg.Cfg.StakeHistoryMaxEntries,
		MaxCacheEntries:        cfg.Cfg.MaxCacheEntries,
	})
	n.epoch = epochstakes.New()

	trustedValidators, err := cfg.Cfg.TrustedValidatorSet()
	if err != nil {
		cancel()
		host.Close()
		return nil, fmt.Errorf("decode trusted validators: %w", err)
	}

	n.verifier = accountshash.New(
		accountshash.Config{
			MaxSnapshotHashes:       cfg.Cfg.MaxSnapshotHashes,
			FaultInjectionRateSlots: cfg.Cfg.FaultInjectionRateSlots,
			SnapshotIntervalSlots:   cfg.Cfg.SnapshotIntervalSlots,
			HaltOnTrustedValidatorsAccountsHashMismatch: cfg.Cfg.HaltOnTrustedValidatorsAccountsHashMismatch,
			TrustedValidators: trustedValidators,
		},
		cluster, rec, logger, n.exit, packages, cfg.Archival,
	)

	n.pool = turbine.NewPool(
		cfg.Sockets, batches,
		turbine.PoolConfig{WorkerConfig: turbine.WorkerConfig{
			DataPlaneFanout:    cfg.Cfg.DataPlaneFanout,
			MaxPacketBatchSize: cfg.Cfg.MaxPacketBatchSize,
		}},
		n.epoch, n.bank, cluster, cfg.Leaders, rec, logger, n.exit,
	)

	return n, nil
}

// Start begins node operation: the gossip service, then the verifier,
// then the retransmit pool (spec.md §4.5's construction order).
func (n *Node) Start() {
	n.cluster.Start()

	n.wg.Add(1)
	go n.verifier.Run(n.ctx, &n.wg)

	n.pool.Run(n.ctx, &n.wg)

	n.logger.Info("node started", "self", n.cfg.Self.String())
}

// Stop sets the shared exit flag, cancels the context, and joins every
// worker before stopping the gossip service (spec.md §4.5: "set exit,
// then join each thread in construction order").
func (n *Node) Stop() {
	n.exit.Store(true)
	n.cancel()
	n.wg.Wait()
	n.cluster.Stop()
	n.logger.Info("node stopped")
}

// Packages returns the inbound accounts-package channel the out-of-scope
// accounts-hashing service feeds.
func (n *Node) Packages() chan<- types.AccountsPackage {
	return n.packages
}

// Batches returns the inbound shred-packet-batch channel the out-of-scope
// window service feeds.
func (n *Node) Batches() chan<- []types.Packet {
	return n.batches
}

// SetStakedNodes records the stake snapshot effective at epoch, feeding
// the epoch-stakes cache's next refresh.
func (n *Node) SetStakedNodes(epoch types.Epoch, stakes map[types.Pubkey]types.Stake) {
	n.bank.SetStakedNodes(epoch, stakes)
}

// AdvanceSlot records slot's bank hash into the bank's bounded histories,
// called as slots root.
func (n *Node) AdvanceSlot(slot types.Slot, bankHash types.Hash) {
	n.bank.AdvanceSlot(slot, bankHash)
}

// RecordStakeHistory records epoch's stake activation snapshot.
func (n *Node) RecordStakeHistory(epoch types.Epoch, entry types.StakeHistoryEntry) {
	n.bank.RecordStakeHistory(epoch, entry)
}

// SlotHashes exposes the bank's bounded (slot, bank hash) ring.
func (n *Node) SlotHashes() *histories.SlotHashes {
	return n.bank.SlotHashes()
}

// SlotHistory exposes the bank's rooted-slot bitset.
func (n *Node) SlotHistory() *histories.SlotHistory {
	return n.bank.SlotHistory()
}

// StakeHistory exposes the bank's per-epoch stake activation ring.
func (n *Node) StakeHistory() *histories.StakeHistory {
	return n.bank.StakeHistory()
}

// StatusCache exposes the bank's transaction-status cache.
func (n *Node) StatusCache() *statuscache.StatusCache[struct{}] {
	return n.bank.StatusCache()
}

// PeerCount returns the number of connected gossip peers.
func (n *Node) PeerCount() int {
	return n.cluster.PeerCount()
}

// Ring exposes the verifier's current published accounts-hash ring.
func (n *Node) Ring() []types.SlotHash {
	return n.verifier.Ring()
}

// Stats exposes the retransmit pool's shared counters.
func (n *Node) Stats() *turbine.Stats {
	return n.pool.Stats()
}

package gossip

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/clustercore/corevalidator/types"
	"github.com/clustercore/corevalidator/wire"
)

// Service is the libp2p/gossipsub-backed ClusterInfo implementation. It
// owns a single accounts-hashes topic subscription, tracks the last ring
// published by every peer it has seen, and maintains the contact-info table
// used to compute retransmit fanout.
type Service struct {
	host     host.Host
	pubsub   *pubsub.PubSub
	self     types.Pubkey
	logger   *slog.Logger
	handlers *MessageHandlers

	topic *pubsub.Topic
	sub   *pubsub.Subscription

	failedBootnodes []peer.AddrInfo

	mu    sync.RWMutex
	peers map[types.Pubkey][]types.SlotHash
	table map[types.Pubkey]types.ContactInfo

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ServiceConfig holds configuration for the gossip service.
type ServiceConfig struct {
	Host      host.Host
	Self      types.Pubkey
	Bootnodes []peer.AddrInfo
	Handlers  *MessageHandlers
	Logger    *slog.Logger
}

// NewService creates a new gossip service: a libp2p host joined to the
// accounts-hashes topic, with bootnode connection attempts tracked for
// retry.
func NewService(ctx context.Context, cfg ServiceConfig) (*Service, error) {
	ctx, cancel := context.WithCancel(ctx)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ps, err := NewGossipSub(ctx, cfg.Host)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create gossipsub: %w", err)
	}

	topic, err := ps.Join(AccountsHashesTopic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("join accounts-hashes topic: %w", err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe accounts-hashes topic: %w", err)
	}

	svc := &Service{
		host:     cfg.Host,
		pubsub:   ps,
		self:     cfg.Self,
		logger:   logger,
		handlers: cfg.Handlers,
		topic:    topic,
		sub:      sub,
		peers:    make(map[types.Pubkey][]types.SlotHash),
		table:    make(map[types.Pubkey]types.ContactInfo),
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, pi := range cfg.Bootnodes {
		if err := cfg.Host.Connect(ctx, pi); err != nil {
			logger.Warn("failed to connect to bootnode", "peer", pi.ID, "error", err)
			svc.failedBootnodes = append(svc.failedBootnodes, pi)
		} else {
			logger.Info("connected to bootnode", "peer", pi.ID)
		}
	}

	return svc, nil
}

// Start begins processing incoming accounts-hashes messages and retrying
// any bootnodes that failed initial connection.
func (s *Service) Start() {
	s.wg.Add(1)
	go s.processAccountsHashes()

	if len(s.failedBootnodes) > 0 {
		s.wg.Add(1)
		go s.retryBootnodes()
	}

	s.logger.Info("gossip service started", "peer_id", s.host.ID(), "addrs", s.host.Addrs())
}

// Stop shuts down the gossip service.
func (s *Service) Stop() {
	s.cancel()
	s.sub.Cancel()
	s.wg.Wait()
	s.host.Close()
	s.logger.Info("gossip service stopped")
}

const bootnodeRetryInterval = 30 * time.Second

func (s *Service) retryBootnodes() {
	defer s.wg.Done()

	ticker := time.NewTicker(bootnodeRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			var remaining []peer.AddrInfo
			for _, pi := range s.failedBootnodes {
				if err := s.host.Connect(s.ctx, pi); err != nil {
					s.logger.Debug("bootnode reconnect failed", "peer", pi.ID, "error", err)
					remaining = append(remaining, pi)
				} else {
					s.logger.Info("reconnected to bootnode", "peer", pi.ID)
				}
			}
			s.failedBootnodes = remaining
			if len(s.failedBootnodes) == 0 {
				s.logger.Debug("all bootnodes connected, stopping retry")
				return
			}
		}
	}
}

func (s *Service) processAccountsHashes() {
	defer s.wg.Done()

	for {
		msg, err := s.sub.Next(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error("accounts-hashes subscription error", "error", err)
			continue
		}
		if msg.ReceivedFrom == s.host.ID() {
			continue
		}

		wm, err := decodeAccountsHashesMessage(msg.Data)
		if err != nil {
			s.logger.Warn("decode accounts-hashes message", "error", err)
			continue
		}

		s.mu.Lock()
		s.peers[wm.Sender] = wm.Ring
		s.mu.Unlock()

		if s.handlers != nil && s.handlers.OnAccountsHashes != nil {
			if err := s.handlers.OnAccountsHashes(s.ctx, wm.Sender, wm.Ring, msg.ReceivedFrom); err != nil {
				s.logger.Warn("accounts-hashes handler error", "error", err)
			}
		}
	}
}

// PushAccountsHashes implements gossip.ClusterInfo.
func (s *Service) PushAccountsHashes(ring []types.SlotHash) {
	s.mu.Lock()
	s.peers[s.self] = append([]types.SlotHash(nil), ring...)
	s.mu.Unlock()

	msg := &wire.AccountsHashesMessage{Sender: s.self, Ring: ring}
	data, err := msg.MarshalSSZ()
	if err != nil {
		s.logger.Error("marshal accounts-hashes message", "error", err)
		return
	}
	compressed := CompressMessage(data)
	if err := s.topic.Publish(s.ctx, compressed); err != nil {
		s.logger.Error("publish accounts-hashes message", "error", err)
	}
}

// GetAccountsHashForNode implements gossip.ClusterInfo.
func (s *Service) GetAccountsHashForNode(pub types.Pubkey, visit func([]types.SlotHash)) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ring, ok := s.peers[pub]
	if !ok {
		return false
	}
	visit(ring)
	return true
}

// SetPeerTable replaces the contact-info table SortedRetransmitPeersAndStakes
// draws from. The gossip layer's full push/pull contact-info protocol is out
// of scope (spec.md Non-goals); the node orchestrator refreshes this table
// directly from connected-peer metadata.
func (s *Service) SetPeerTable(peers []types.ContactInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = make(map[types.Pubkey]types.ContactInfo, len(peers))
	for _, p := range peers {
		s.table[p.Pubkey] = p
	}
}

// Self implements gossip.ClusterInfo.
func (s *Service) Self() types.Pubkey { return s.self }

// SortedRetransmitPeersAndStakes implements gossip.ClusterInfo.
func (s *Service) SortedRetransmitPeersAndStakes(stakes map[types.Pubkey]types.Stake) ([]types.ContactInfo, []types.StakeIndex) {
	s.mu.RLock()
	peers := make([]types.ContactInfo, 0, len(s.table))
	for _, p := range s.table {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

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

// PeerCount returns the number of connected peers.
func (s *Service) PeerCount() int {
	return len(s.host.Network().Peers())
}

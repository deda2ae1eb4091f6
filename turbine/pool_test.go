package turbine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clustercore/corevalidator/epochstakes"
	"github.com/clustercore/corevalidator/gossip"
	"github.com/clustercore/corevalidator/types"
)

func TestPoolRunSpawnsOneWorkerPerSocketAndStopsOnExit(t *testing.T) {
	self := types.Pubkey{0x01}
	cluster := gossip.NewFakeClusterInfo(self)
	cluster.SetPeerTable([]types.ContactInfo{{Pubkey: self, TVUForwardAddr: "10.0.0.1:8001"}})

	batches := make(chan []types.Packet)
	var exit atomic.Bool
	pool := NewPool([]Socket{&fakeSocket{}, &fakeSocket{}}, batches, PoolConfig{WorkerConfig{DataPlaneFanout: 2, MaxPacketBatchSize: 10}}, epochstakes.New(), fixedEpochBank{epoch: 1}, cluster, &fakeLeaderSchedule{}, nil, nil, &exit)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	pool.Run(ctx, &wg)

	exit.Store(true)
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected all pool workers to join after exit was set")
	}
}

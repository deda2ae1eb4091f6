package turbine

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clustercore/corevalidator/metrics"
	"github.com/clustercore/corevalidator/types"
)

// statsFlushInterval is the minimum spacing between metric flushes (spec.md
// §4.4 step 4: "periodically (every >= 2s..."), coordinated with an atomic
// compare-and-swap on lastFlush exactly as update_retransmit_stats does.
const statsFlushInterval = 2 * time.Second

// topSourcesKept bounds the by-source summary log line, matching the
// original's top-5-by-count behavior.
const topSourcesKept = 5

// Stats accumulates the retransmit worker pool's counters, grounded on
// original_source/core/src/retransmit_stage.rs's RetransmitStats +
// update_retransmit_stats.
type Stats struct {
	totalPackets      atomic.Int64
	totalBatches      atomic.Int64
	retransmitTotal   atomic.Int64
	discardTotal      atomic.Int64
	repairTotal       atomic.Int64
	lastFlushUnixNano atomic.Int64

	mu              sync.Mutex
	packetsBySlot   map[types.Slot]int
	packetsBySource map[string]int
}

// NewStats creates an empty Stats accumulator.
func NewStats() *Stats {
	return &Stats{
		packetsBySlot:   make(map[types.Slot]int),
		packetsBySource: make(map[string]int),
	}
}

// RecordBatch folds one worker's processed-batch counters into the shared
// accumulator and, if the flush interval has elapsed, emits and clears the
// histograms via rec. peerCount is the current fanout peer-table size,
// logged alongside the flush (retransmit-num_nodes).
func (s *Stats) RecordBatch(rec *metrics.Recorder, totalPackets, retransmitCount, discardCount, repairCount int, bySlot map[types.Slot]int, bySource map[string]int, peerCount int) {
	s.totalPackets.Add(int64(totalPackets))
	s.totalBatches.Add(1)
	s.retransmitTotal.Add(int64(retransmitCount))
	s.discardTotal.Add(int64(discardCount))
	s.repairTotal.Add(int64(repairCount))

	s.mu.Lock()
	for slot, n := range bySlot {
		s.packetsBySlot[slot] += n
	}
	for src, n := range bySource {
		s.packetsBySource[src] += n
	}
	s.mu.Unlock()

	s.maybeFlush(rec, peerCount)
}

// maybeFlush emits datapoints and clears the histograms if the flush
// interval elapsed and this goroutine won the compare-and-swap race.
func (s *Stats) maybeFlush(rec *metrics.Recorder, peerCount int) {
	now := time.Now().UnixNano()
	last := s.lastFlushUnixNano.Load()
	if now-last < int64(statsFlushInterval) {
		return
	}
	if !s.lastFlushUnixNano.CompareAndSwap(last, now) {
		return
	}

	if rec != nil {
		rec.Counter("retransmit-num_nodes", peerCount)
		rec.Datapoint("retransmit-stage",
			"total_batches", s.totalBatches.Swap(0),
			"total_packets", s.totalPackets.Swap(0),
			"retransmit_total", s.retransmitTotal.Swap(0),
			"repair_total", s.repairTotal.Swap(0),
			"discard_total", s.discardTotal.Swap(0),
		)
	} else {
		s.totalBatches.Store(0)
		s.totalPackets.Store(0)
		s.retransmitTotal.Store(0)
		s.repairTotal.Store(0)
		s.discardTotal.Store(0)
	}

	s.mu.Lock()
	bySlot := s.packetsBySlot
	bySource := s.packetsBySource
	s.packetsBySlot = make(map[types.Slot]int)
	s.packetsBySource = make(map[string]int)
	s.mu.Unlock()

	if rec != nil {
		rec.Datapoint("retransmit-stage", "packets_by_slot_count", len(bySlot))
		top, total := topSources(bySource, topSourcesKept)
		rec.Datapoint("retransmit-stage", "top_packets_by_source", top, "packets_by_source_count", total)
	}
}

// topSources returns the n source addresses with the highest packet
// counts, matching the original's BTreeMap-by-count top-5 summary.
func topSources(bySource map[string]int, n int) ([]string, int) {
	type entry struct {
		addr  string
		count int
	}
	entries := make([]entry, 0, len(bySource))
	for addr, count := range bySource {
		entries = append(entries, entry{addr, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].addr < entries[j].addr
	})
	if n > len(entries) {
		n = len(entries)
	}
	top := make([]string, n)
	for i := 0; i < n; i++ {
		top[i] = entries[i].addr
	}
	return top, len(bySource)
}

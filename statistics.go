package comparemixer

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/xaionaro-go/comparemixer/ingest"
	"github.com/xaionaro-go/comparemixer/pool"
	"github.com/xaionaro-go/comparemixer/types"
	"github.com/xaionaro-go/typing"
)

type StreamStatistics struct {
	StreamID     types.StreamID
	IsReference  bool
	Cell         typing.Optional[int]
	Queue        ingest.Statistics
	Missing      uint64
	Stalled      uint64
	Excluded     bool
	QualityTrend typing.Optional[float64]
}

type Statistics struct {
	Outputs    uint64
	SinkErrors uint64

	// DroppedFrames are frames dropped by the backpressure policies.
	DroppedFrames uint64

	// NonMonotonic counts frames discarded for out-of-order timestamps,
	// both at ingest and at alignment.
	NonMonotonic uint64

	LateFrames      uint64
	StalledStreams  uint64
	WaitExpirations uint64
	SkippedMetrics  uint64
	ScoreErrors     uint64

	WaitP50 time.Duration
	WaitP99 time.Duration

	Pool      pool.Statistics
	InputPool pool.Statistics
	Streams   []StreamStatistics
}

func (e *Engine) Stats(ctx context.Context) Statistics {
	syncStats := e.Synchronizer.Stats(ctx)
	mixStats := e.Mixer.Stats(ctx)

	stats := Statistics{
		Outputs:         e.CountOutputs.Load(),
		SinkErrors:      e.CountSinkErrors.Load(),
		NonMonotonic:    syncStats.NonMonotonic,
		LateFrames:      syncStats.Late,
		StalledStreams:  syncStats.Stalled,
		WaitExpirations: syncStats.WaitExpirations,
		SkippedMetrics:  mixStats.SkippedMetrics,
		ScoreErrors:     mixStats.ScoreErrors,
		WaitP50:         syncStats.WaitP50,
		WaitP99:         syncStats.WaitP99,
		Pool:            e.FramePool.Stats(ctx),
		InputPool:       e.InputPool.Stats(ctx),
	}

	byID := map[types.StreamID]*StreamStatistics{}
	for _, h := range e.handles(ctx) {
		queue := h.adapter.Stats(ctx)
		stats.DroppedFrames += queue.Dropped
		stats.NonMonotonic += queue.NonMonotonic
		stats.Streams = append(stats.Streams, StreamStatistics{
			StreamID:    h.StreamID,
			IsReference: h.IsReference,
			Queue:       queue,
		})
	}
	slices.SortFunc(stats.Streams, func(a, b StreamStatistics) int {
		return int(a.StreamID) - int(b.StreamID)
	})
	for idx := range stats.Streams {
		byID[stats.Streams[idx].StreamID] = &stats.Streams[idx]
	}
	for _, s := range syncStats.Streams {
		if st := byID[s.StreamID]; st != nil {
			st.Missing = s.Missing
			st.Stalled = s.Stalled
			st.Excluded = s.Excluded
		}
	}
	for _, s := range mixStats.Streams {
		if st := byID[s.StreamID]; st != nil {
			st.Cell = s.Cell
			st.QualityTrend = s.QualityTrend
		}
	}
	return stats
}

func (s Statistics) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "outputs:%d dropped:%d non_monotonic:%d late:%d stalled:%d wait_expired:%d skipped_metrics:%d wait_p50:%v wait_p99:%v pool:[%s] input_pool:[%s]",
		s.Outputs, s.DroppedFrames, s.NonMonotonic, s.LateFrames, s.StalledStreams, s.WaitExpirations, s.SkippedMetrics, s.WaitP50, s.WaitP99, s.Pool, s.InputPool)
	for _, st := range s.Streams {
		fmt.Fprintf(&b, "\n  %s: queue:%d/%d pushed:%d dropped:%d missing:%d", st.StreamID, st.Queue.QueueLength, st.Queue.QueueDepth, st.Queue.Pushed, st.Queue.Dropped, st.Missing)
		if st.QualityTrend.IsSet() {
			fmt.Fprintf(&b, " quality:%.2f", st.QualityTrend.Get())
		}
	}
	return b.String()
}


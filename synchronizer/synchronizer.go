// Package synchronizer aligns frames of independently clocked streams into
// slices with strictly increasing timestamps.
//
// The target timestamp of a slot is the smallest queued timestamp across all
// streams. Every stream contributes its head frame if it is within
// Config.Tolerance of the target. A stream without queued data delays the
// slot at most Config.MaxWaitPerSlot (or until it is detected as stalled),
// after that it is recorded as missing and is not waited for again until it
// produces new data.
package synchronizer

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/influxdata/tdigest"
	"github.com/xaionaro-go/comparemixer/ingest"
	"github.com/xaionaro-go/comparemixer/logger"
	"github.com/xaionaro-go/comparemixer/types"
	"github.com/xaionaro-go/typing"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

type streamState struct {
	Adapter *ingest.Adapter

	// Excluded streams are not waited for until they have data again.
	Excluded          atomic.Bool
	RemoveWhenDrained bool
	MissingInLast     bool

	CountMissing atomic.Uint64
	CountStalled atomic.Uint64
}

// Synchronizer must be consumed (Next) from a single goroutine; streams may
// be added and removed from any goroutine.
type Synchronizer struct {
	Config Config

	locker        xsync.Mutex
	streams       []*streamState
	stopRequested bool
	wakeCh        chan struct{}

	lastEmitted  typing.Optional[time.Duration]
	nextSequence uint64

	waitDigestLocker xsync.Mutex
	waitDigest       *tdigest.TDigest

	CountSlices          atomic.Uint64
	CountNonMonotonic    atomic.Uint64
	CountLate            atomic.Uint64
	CountStalled         atomic.Uint64
	CountWaitExpirations atomic.Uint64
}

func New(cfg Config) *Synchronizer {
	return &Synchronizer{
		Config:     cfg.withDefaults(),
		wakeCh:     make(chan struct{}, 1),
		waitDigest: tdigest.NewWithCompression(100),
	}
}

func (s *Synchronizer) String() string {
	return fmt.Sprintf("Synchronizer(tolerance:%v, max_wait:%v)", s.Config.Tolerance, s.Config.MaxWaitPerSlot)
}

// Wake interrupts a pending wait of Next; it never blocks.
func (s *Synchronizer) Wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// AddStream appends the stream; the order of addition is the order of
// entries in every slice.
func (s *Synchronizer) AddStream(
	ctx context.Context,
	adapter *ingest.Adapter,
) error {
	err := xsync.DoR1(ctx, &s.locker, func() error {
		if s.stopRequested {
			return fmt.Errorf("the synchronizer is stopped")
		}
		for _, st := range s.streams {
			if st.Adapter.StreamID == adapter.StreamID {
				return fmt.Errorf("%s is already added", adapter.StreamID)
			}
		}
		s.streams = append(s.streams, &streamState{Adapter: adapter})
		return nil
	})
	if err != nil {
		return err
	}
	s.Wake()
	return nil
}

// RemoveStream ends the stream; it is dropped from slices once drained.
func (s *Synchronizer) RemoveStream(
	ctx context.Context,
	streamID types.StreamID,
) error {
	adapter := xsync.DoR1(ctx, &s.locker, func() *ingest.Adapter {
		for _, st := range s.streams {
			if st.Adapter.StreamID == streamID {
				st.RemoveWhenDrained = true
				return st.Adapter
			}
		}
		return nil
	})
	if adapter == nil {
		return fmt.Errorf("%s is not added", streamID)
	}
	adapter.MarkEndOfStream(ctx)
	s.Wake()
	return nil
}

// Stop ends all streams; Next keeps returning slices until everything
// queued is drained, and then returns io.EOF.
func (s *Synchronizer) Stop(ctx context.Context) {
	adapters := xsync.DoR1(ctx, &s.locker, func() []*ingest.Adapter {
		s.stopRequested = true
		result := make([]*ingest.Adapter, 0, len(s.streams))
		for _, st := range s.streams {
			result = append(result, st.Adapter)
		}
		return result
	})
	for _, a := range adapters {
		a.MarkEndOfStream(ctx)
	}
	s.Wake()
}

// snapshot returns the current streams, forgetting the removed drained ones.
func (s *Synchronizer) snapshot(ctx context.Context) ([]*streamState, bool) {
	var removed []types.StreamID
	streams, stopRequested := xsync.DoR2(ctx, &s.locker, func() ([]*streamState, bool) {
		s.streams = slices.DeleteFunc(s.streams, func(st *streamState) bool {
			if !st.RemoveWhenDrained {
				return false
			}
			if _, state := st.Adapter.Peek(ctx); state != ingest.StateDrained {
				return false
			}
			removed = append(removed, st.Adapter.StreamID)
			return true
		})
		return slices.Clone(s.streams), s.stopRequested
	})
	for _, streamID := range removed {
		logger.Debugf(ctx, "%s is removed", streamID)
		if s.Config.OnStreamRemoved != nil {
			s.Config.OnStreamRemoved(ctx, streamID)
		}
	}
	return streams, stopRequested
}

// dropStaleHeads discards queued frames that cannot belong to a future slice.
func (s *Synchronizer) dropStaleHeads(
	ctx context.Context,
	st *streamState,
) {
	if !s.lastEmitted.IsSet() {
		return
	}
	lastEmitted := s.lastEmitted.Get()
	if n := st.Adapter.DiscardNotAfter(ctx, lastEmitted); n > 0 {
		s.CountNonMonotonic.Add(uint64(n))
		logger.Warnf(ctx, "%v", ErrNonMonotonicTimestamp{
			StreamID:  st.Adapter.StreamID,
			Discarded: n,
			LastSlice: lastEmitted,
		})
	}
	if !st.MissingInLast {
		return
	}
	// arrived after their slot was already emitted without them
	if n := st.Adapter.DiscardNotAfter(ctx, lastEmitted+s.Config.Tolerance); n > 0 {
		s.CountLate.Add(uint64(n))
		logger.Debugf(ctx, "%s: discarded %d late frames (the slot %v is already emitted)", st.Adapter.StreamID, n, lastEmitted)
	}
}

type plannedEntry struct {
	Stream  *streamState
	Present bool
	Missing MissingReason
	Pending bool
}

// Next blocks until the next slice is finalized. It returns io.EOF once
// every stream is ended and drained (or Stop was called and everything got
// drained). If ctx is cancelled no frame is consumed.
func (s *Synchronizer) Next(ctx context.Context) (_ret *Slice, _err error) {
	logger.Tracef(ctx, "Next")
	defer func() { logger.Tracef(ctx, "/Next: %v %v", _ret, _err) }()

	var slotStart time.Time
	for {
		streams, stopRequested := s.snapshot(ctx)
		for _, st := range streams {
			s.dropStaleHeads(ctx, st)
		}

		target, anchor, hasHead, allDrained := s.findTarget(ctx, streams)
		if allDrained && (len(streams) > 0 || stopRequested) {
			return nil, io.EOF
		}
		if !hasHead {
			slotStart = time.Time{}
			if err := s.wait(ctx, nil); err != nil {
				return nil, err
			}
			continue
		}

		now := s.Config.NowFunc()
		if slotStart.IsZero() {
			slotStart = now
		}
		waitDeadline := slotStart.Add(s.Config.MaxWaitPerSlot)

		plan, pendingDeadline := s.plan(ctx, streams, target, now)
		if pendingDeadline.IsZero() {
			return s.emit(ctx, plan, target, anchor, now.Sub(slotStart)), nil
		}

		if !now.Before(waitDeadline) {
			for idx := range plan {
				e := &plan[idx]
				if !e.Pending {
					continue
				}
				e.Pending = false
				e.Missing = MissingWaitExpired
				e.Stream.Excluded.Store(true)
				s.CountWaitExpirations.Inc()
				logger.Debugf(ctx, "%s: no data within %v, marking as missing", e.Stream.Adapter.StreamID, s.Config.MaxWaitPerSlot)
			}
			return s.emit(ctx, plan, target, anchor, now.Sub(slotStart)), nil
		}

		if pendingDeadline.After(waitDeadline) {
			pendingDeadline = waitDeadline
		}
		timer := time.NewTimer(pendingDeadline.Sub(now))
		err := s.wait(ctx, timer.C)
		timer.Stop()
		if err != nil {
			return nil, err
		}
	}
}

func (s *Synchronizer) findTarget(
	ctx context.Context,
	streams []*streamState,
) (target time.Duration, anchor types.StreamID, hasHead bool, allDrained bool) {
	allDrained = true
	for _, st := range streams {
		ts, state := st.Adapter.Peek(ctx)
		if state != ingest.StateDrained {
			allDrained = false
		}
		if state != ingest.StateAvailable {
			continue
		}
		streamID := st.Adapter.StreamID
		if !hasHead || ts < target || (ts == target && streamID < anchor) {
			target, anchor, hasHead = ts, streamID, true
		}
	}
	return
}

// plan decides the fate of every stream for the slot; the returned deadline
// is zero if nothing has to be waited for, otherwise it is the moment the
// earliest pending stream would be considered stalled.
func (s *Synchronizer) plan(
	ctx context.Context,
	streams []*streamState,
	target time.Duration,
	now time.Time,
) ([]plannedEntry, time.Time) {
	var pendingDeadline time.Time
	plan := make([]plannedEntry, 0, len(streams))
	for _, st := range streams {
		e := plannedEntry{Stream: st}
		ts, state := st.Adapter.Peek(ctx)
		switch state {
		case ingest.StateAvailable:
			st.Excluded.Store(false)
			if ts-target <= s.Config.Tolerance {
				e.Present = true
			} else {
				e.Missing = MissingNoFrameInWindow
			}
		case ingest.StateDrained:
			st.Excluded.Store(true)
			e.Missing = MissingEnded
		case ingest.StateEmpty:
			switch {
			case st.Excluded.Load():
				e.Missing = MissingExcluded
			case st.Adapter.IsStalled(now):
				st.Excluded.Store(true)
				e.Missing = MissingStalled
				st.CountStalled.Inc()
				s.CountStalled.Inc()
				logger.Warnf(ctx, "%v", ErrStreamStalled{
					StreamID:     st.Adapter.StreamID,
					LastActivity: st.Adapter.LastActivity(),
				})
			default:
				e.Pending = true
				stallAt := st.Adapter.LastActivity().Add(st.Adapter.Config.StaleTimeout + 1)
				if pendingDeadline.IsZero() || stallAt.Before(pendingDeadline) {
					pendingDeadline = stallAt
				}
			}
		}
		plan = append(plan, e)
	}
	return plan, pendingDeadline
}

func (s *Synchronizer) emit(
	ctx context.Context,
	plan []plannedEntry,
	target time.Duration,
	anchor types.StreamID,
	waited time.Duration,
) *Slice {
	slice := &Slice{
		Sequence:  s.nextSequence,
		Timestamp: target,
		Anchor:    anchor,
		Entries:   make([]Entry, 0, len(plan)),
		Waited:    waited,
	}
	s.nextSequence++

	for _, e := range plan {
		entry := Entry{
			StreamID: e.Stream.Adapter.StreamID,
			Missing:  e.Missing,
		}
		if e.Present {
			// the head may have been evicted by the producer since planning
			if f, _ := e.Stream.Adapter.PopNotAfter(ctx, target+s.Config.Tolerance); f != nil {
				entry.Frame = f
				entry.Missing = NotMissing
			} else {
				entry.Missing = MissingNoFrameInWindow
			}
		}
		if entry.Frame == nil {
			e.Stream.CountMissing.Inc()
		}
		e.Stream.MissingInLast = entry.Frame == nil
		slice.Entries = append(slice.Entries, entry)
	}

	s.lastEmitted = typing.Opt(target)
	s.CountSlices.Inc()
	s.waitDigestLocker.Do(ctx, func() {
		s.waitDigest.Add(float64(waited), 1)
	})
	logger.Tracef(ctx, "emitting %s", slice)
	return slice
}

func (s *Synchronizer) wait(
	ctx context.Context,
	timeoutCh <-chan time.Time,
) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.wakeCh:
	case <-timeoutCh:
	}
	return nil
}

type StreamStatistics struct {
	StreamID types.StreamID
	Excluded bool
	Missing  uint64
	Stalled  uint64
}

type Statistics struct {
	Slices          uint64
	NonMonotonic    uint64
	Late            uint64
	Stalled         uint64
	WaitExpirations uint64
	WaitP50         time.Duration
	WaitP99         time.Duration
	Streams         []StreamStatistics
}

func (s *Synchronizer) Stats(ctx context.Context) Statistics {
	stats := Statistics{
		Slices:          s.CountSlices.Load(),
		NonMonotonic:    s.CountNonMonotonic.Load(),
		Late:            s.CountLate.Load(),
		Stalled:         s.CountStalled.Load(),
		WaitExpirations: s.CountWaitExpirations.Load(),
	}
	s.waitDigestLocker.Do(ctx, func() {
		if s.waitDigest.Count() == 0 {
			return
		}
		stats.WaitP50 = time.Duration(s.waitDigest.Quantile(0.5))
		stats.WaitP99 = time.Duration(s.waitDigest.Quantile(0.99))
	})
	s.locker.Do(ctx, func() {
		for _, st := range s.streams {
			stats.Streams = append(stats.Streams, StreamStatistics{
				StreamID: st.Adapter.StreamID,
				Excluded: st.Excluded.Load(),
				Missing:  st.CountMissing.Load(),
				Stalled:  st.CountStalled.Load(),
			})
		}
	})
	return stats
}

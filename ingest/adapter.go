// Package ingest decouples the delivery cadence of every input stream from
// the consumer by a bounded, ordered per-stream queue.
package ingest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-ng/xatomic"
	"github.com/xaionaro-go/comparemixer/frame"
	"github.com/xaionaro-go/comparemixer/logger"
	"github.com/xaionaro-go/comparemixer/types"
	"github.com/xaionaro-go/typing"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

// State is the result of looking at the head of a queue.
type State int

const (
	UndefinedState = State(iota)
	StateAvailable
	StateEmpty
	StateDrained
)

func (s State) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateEmpty:
		return "empty"
	case StateDrained:
		return "drained"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Adapter is the queue of one input stream. Push is called by the stream
// producer; Peek, Pop and DiscardNotAfter are called only by the consumer.
type Adapter struct {
	StreamID types.StreamID
	Config   Config

	locker        xsync.Mutex
	queue         []*frame.Frame
	queueHead     int
	queueLen      int
	lastTimestamp typing.Optional[time.Duration]
	isEndOfStream bool
	spaceCh       *chan struct{}
	lastActivity  atomic.Time

	CountPushed       atomic.Uint64
	CountPopped       atomic.Uint64
	CountDropped      atomic.Uint64
	CountNonMonotonic atomic.Uint64
}

func New(
	streamID types.StreamID,
	cfg Config,
) *Adapter {
	cfg = cfg.withDefaults()
	a := &Adapter{
		StreamID: streamID,
		Config:   cfg,
		queue:    make([]*frame.Frame, cfg.QueueDepth),
	}
	xatomic.StorePointer(&a.spaceCh, ptr(make(chan struct{})))
	a.lastActivity.Store(cfg.NowFunc())
	return a
}

func (a *Adapter) String() string {
	return fmt.Sprintf("IngestAdapter(%s)", a.StreamID)
}

type pushResult int

const (
	pushAccepted = pushResult(iota)
	pushDiscarded
	pushEnded
	pushMustWait
)

// Push enqueues the frame. Push takes over the caller's reference to f
// whatever the outcome is: rejected or dropped frames are released.
func (a *Adapter) Push(
	ctx context.Context,
	f *frame.Frame,
) (_err error) {
	logger.Tracef(ctx, "Push(%s)", f)
	defer func() { logger.Tracef(ctx, "/Push(%s): %v", f, _err) }()

	for {
		var (
			result  pushResult
			waitCh  <-chan struct{}
			evicted *frame.Frame
		)
		a.locker.Do(ctx, func() {
			result, waitCh, evicted = a.pushLocked(ctx, f)
		})
		if evicted != nil {
			evicted.Release(ctx)
		}

		switch result {
		case pushAccepted:
			a.lastActivity.Store(a.Config.NowFunc())
			a.notify()
			return nil
		case pushDiscarded:
			return nil
		case pushEnded:
			f.Release(ctx)
			return ErrEndOfStream{StreamID: a.StreamID}
		case pushMustWait:
			select {
			case <-ctx.Done():
				f.Release(ctx)
				return ctx.Err()
			case <-waitCh:
			}
		}
	}
}

func (a *Adapter) pushLocked(
	ctx context.Context,
	f *frame.Frame,
) (pushResult, <-chan struct{}, *frame.Frame) {
	if a.isEndOfStream {
		return pushEnded, nil, nil
	}

	if a.lastTimestamp.IsSet() && f.Timestamp <= a.lastTimestamp.Get() {
		a.CountNonMonotonic.Inc()
		logger.Debugf(ctx, "%v", ErrNonMonotonicTimestamp{
			StreamID:  a.StreamID,
			Timestamp: f.Timestamp,
			Previous:  a.lastTimestamp.Get(),
		})
		return pushDiscarded, nil, f
	}

	var evicted *frame.Frame
	if a.queueLen >= len(a.queue) {
		switch a.Config.BackpressurePolicy {
		case BackpressurePolicyBlockProducer:
			return pushMustWait, *xatomic.LoadPointer(&a.spaceCh), nil
		case BackpressurePolicyDropIncoming:
			a.CountDropped.Inc()
			logger.Debugf(ctx, "%v", ErrQueueOverflow{
				StreamID:  a.StreamID,
				Policy:    a.Config.BackpressurePolicy,
				Timestamp: f.Timestamp,
			})
			return pushDiscarded, nil, f
		default:
			evicted = a.popLocked()
			a.CountDropped.Inc()
			logger.Debugf(ctx, "%v", ErrQueueOverflow{
				StreamID:  a.StreamID,
				Policy:    a.Config.BackpressurePolicy,
				Timestamp: evicted.Timestamp,
			})
		}
	}

	a.queue[(a.queueHead+a.queueLen)%len(a.queue)] = f
	a.queueLen++
	a.lastTimestamp = typing.Opt(f.Timestamp)
	a.CountPushed.Inc()
	return pushAccepted, nil, evicted
}

func (a *Adapter) popLocked() *frame.Frame {
	if a.queueLen == 0 {
		return nil
	}
	f := a.queue[a.queueHead]
	a.queue[a.queueHead] = nil
	a.queueHead = (a.queueHead + 1) % len(a.queue)
	a.queueLen--
	close(*xatomic.SwapPointer(&a.spaceCh, ptr(make(chan struct{}))))
	return f
}

func (a *Adapter) stateLocked() State {
	switch {
	case a.queueLen > 0:
		return StateAvailable
	case a.isEndOfStream:
		return StateDrained
	default:
		return StateEmpty
	}
}

// Peek returns the timestamp of the oldest queued frame.
func (a *Adapter) Peek(ctx context.Context) (time.Duration, State) {
	return xsync.DoR2(ctx, &a.locker, func() (time.Duration, State) {
		state := a.stateLocked()
		if state != StateAvailable {
			return 0, state
		}
		return a.queue[a.queueHead].Timestamp, state
	})
}

// Pop removes the oldest queued frame; the caller owns the returned reference.
func (a *Adapter) Pop(ctx context.Context) (*frame.Frame, State) {
	return a.PopNotAfter(ctx, time.Duration(math.MaxInt64))
}

// PopNotAfter removes the oldest queued frame only if its timestamp is not
// after maxTS; otherwise it returns nil and the state of the queue.
func (a *Adapter) PopNotAfter(
	ctx context.Context,
	maxTS time.Duration,
) (*frame.Frame, State) {
	return xsync.DoR2(ctx, &a.locker, func() (*frame.Frame, State) {
		state := a.stateLocked()
		if state != StateAvailable {
			return nil, state
		}
		if a.queue[a.queueHead].Timestamp > maxTS {
			return nil, state
		}
		a.CountPopped.Inc()
		return a.popLocked(), state
	})
}

// DiscardNotAfter releases all the queued frames with timestamps not after
// maxTS and returns how many were discarded.
func (a *Adapter) DiscardNotAfter(
	ctx context.Context,
	maxTS time.Duration,
) int {
	var frames []*frame.Frame
	a.locker.Do(ctx, func() {
		for a.queueLen > 0 && a.queue[a.queueHead].Timestamp <= maxTS {
			frames = append(frames, a.popLocked())
		}
	})
	for _, f := range frames {
		f.Release(ctx)
	}
	return len(frames)
}

// Flush releases everything still queued, returning the amount of frames.
func (a *Adapter) Flush(ctx context.Context) int {
	var frames []*frame.Frame
	a.locker.Do(ctx, func() {
		for a.queueLen > 0 {
			frames = append(frames, a.popLocked())
		}
	})
	for _, f := range frames {
		f.Release(ctx)
	}
	return len(frames)
}

// MarkEndOfStream rejects further pushes; the queue is still drained normally.
func (a *Adapter) MarkEndOfStream(ctx context.Context) {
	changed := xsync.DoR1(ctx, &a.locker, func() bool {
		if a.isEndOfStream {
			return false
		}
		a.isEndOfStream = true
		close(*xatomic.SwapPointer(&a.spaceCh, ptr(make(chan struct{}))))
		return true
	})
	if changed {
		logger.Debugf(ctx, "%s: end of stream", a.StreamID)
		a.notify()
	}
}

func (a *Adapter) IsEndOfStream(ctx context.Context) bool {
	return xsync.DoR1(ctx, &a.locker, func() bool {
		return a.isEndOfStream
	})
}

// IsStalled reports whether the stream produced nothing for longer than StaleTimeout.
func (a *Adapter) IsStalled(now time.Time) bool {
	return now.Sub(a.lastActivity.Load()) > a.Config.StaleTimeout
}

func (a *Adapter) LastActivity() time.Time {
	return a.lastActivity.Load()
}

func (a *Adapter) Len(ctx context.Context) int {
	return xsync.DoR1(ctx, &a.locker, func() int {
		return a.queueLen
	})
}

func (a *Adapter) notify() {
	if a.Config.OnActivity != nil {
		a.Config.OnActivity()
	}
}

type Statistics struct {
	StreamID      types.StreamID
	QueueLength   int
	QueueDepth    uint
	Pushed        uint64
	Popped        uint64
	Dropped       uint64
	NonMonotonic  uint64
	LastTimestamp typing.Optional[time.Duration]
	LastActivity  time.Time
	EndOfStream   bool
}

func (a *Adapter) Stats(ctx context.Context) Statistics {
	s := Statistics{
		StreamID:     a.StreamID,
		QueueDepth:   a.Config.QueueDepth,
		Pushed:       a.CountPushed.Load(),
		Popped:       a.CountPopped.Load(),
		Dropped:      a.CountDropped.Load(),
		NonMonotonic: a.CountNonMonotonic.Load(),
		LastActivity: a.lastActivity.Load(),
	}
	a.locker.Do(ctx, func() {
		s.QueueLength = a.queueLen
		s.LastTimestamp = a.lastTimestamp
		s.EndOfStream = a.isEndOfStream
	})
	return s
}

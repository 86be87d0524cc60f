// engine.go wires the ingest adapters, the synchronizer, the mixer and the
// output pool into the comparison engine.

// Package comparemixer synchronizes independently clocked video streams into
// aligned slices and compares and/or composites every slice into one output
// frame.
package comparemixer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/xaionaro-go/comparemixer/frame"
	"github.com/xaionaro-go/comparemixer/helpers/closuresignaler"
	"github.com/xaionaro-go/comparemixer/ingest"
	"github.com/xaionaro-go/comparemixer/logger"
	"github.com/xaionaro-go/comparemixer/meta"
	"github.com/xaionaro-go/comparemixer/mixer"
	"github.com/xaionaro-go/comparemixer/synchronizer"
	"github.com/xaionaro-go/comparemixer/types"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/typing"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

// ErrStopped is the closure cause after a graceful Stop.
var ErrStopped = errors.New("the engine is stopped")

type StreamHandle struct {
	StreamID    types.StreamID
	LayoutHint  typing.Optional[int]
	IsReference bool

	adapter      *ingest.Adapter
	nextSequence atomic.Uint64
	unregistered atomic.Bool
}

func (h *StreamHandle) String() string {
	return h.StreamID.String()
}

type Engine struct {
	Config Config
	Sink   Sink

	// FramePool holds the output frames only; producers acquire from
	// InputPool, so queued inputs can never starve the mixer.
	FramePool *frame.Pool
	InputPool *frame.Pool

	Synchronizer *synchronizer.Synchronizer
	Mixer        *mixer.Mixer

	locker  xsync.Mutex
	streams map[types.StreamID]*StreamHandle
	closer  *closuresignaler.ClosureSignaler
	serving atomic.Bool

	CountOutputs    atomic.Uint64
	CountSinkErrors atomic.Uint64
}

func New(
	ctx context.Context,
	cfg Config,
	sink Sink,
) (*Engine, error) {
	if sink == nil {
		return nil, fmt.Errorf("the sink is not set")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger.Debugf(ctx, "config: %s", spew.Sdump(cfg))

	e := &Engine{
		Config:    cfg,
		Sink:      sink,
		FramePool: frame.NewPool(cfg.poolConfig()),
		InputPool: frame.NewPool(cfg.inputPoolConfig()),
		streams:   map[types.StreamID]*StreamHandle{},
		closer:    closuresignaler.New(),
	}

	syncCfg := cfg.synchronizerConfig()
	syncCfg.OnStreamRemoved = e.onStreamRemoved
	e.Synchronizer = synchronizer.New(syncCfg)

	var err error
	e.Mixer, err = mixer.New(cfg.mixerConfig(), e.FramePool)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the mixer: %w", err)
	}
	return e, nil
}

func (e *Engine) String() string {
	return fmt.Sprintf("Engine(%s, %s)", e.Synchronizer, e.Mixer)
}

// RegisterStream adds an input; slices list the streams in the order of
// registration. At most one stream may be the reference.
func (e *Engine) RegisterStream(
	ctx context.Context,
	streamID types.StreamID,
	layoutHint typing.Optional[int],
	isReference bool,
) (_ret *StreamHandle, _err error) {
	ctx = logger.CtxWithStreamID(ctx, streamID)
	logger.Debugf(ctx, "RegisterStream(%v, %t)", layoutHint, isReference)
	defer func() { logger.Debugf(ctx, "/RegisterStream(%v, %t): %v", layoutHint, isReference, _err) }()

	if e.closer.IsClosed() {
		return nil, fmt.Errorf("unable to register %s: %w", streamID, e.closer.Err())
	}

	return xsync.DoR2(ctx, &e.locker, func() (*StreamHandle, error) {
		if _, ok := e.streams[streamID]; ok {
			return nil, fmt.Errorf("%s is already registered", streamID)
		}

		if err := e.Mixer.AddStream(ctx, streamID, layoutHint, isReference); err != nil {
			return nil, fmt.Errorf("unable to add %s to the layout: %w", streamID, err)
		}

		ingestCfg := e.Config.ingestConfig()
		ingestCfg.OnActivity = e.Synchronizer.Wake
		h := &StreamHandle{
			StreamID:    streamID,
			LayoutHint:  layoutHint,
			IsReference: isReference,
			adapter:     ingest.New(streamID, ingestCfg),
		}
		if err := e.Synchronizer.AddStream(ctx, h.adapter); err != nil {
			e.Mixer.RemoveStream(ctx, streamID)
			return nil, fmt.Errorf("unable to add %s to the synchronizer: %w", streamID, err)
		}
		e.streams[streamID] = h
		return h, nil
	})
}

// UnregisterStream ends the stream: no more frames are accepted, the queued
// ones are still mixed, then the stream leaves the slices and the layout.
func (e *Engine) UnregisterStream(
	ctx context.Context,
	h *StreamHandle,
) error {
	ctx = logger.CtxWithStreamID(ctx, h.StreamID)
	logger.Debugf(ctx, "UnregisterStream")
	if !h.unregistered.CompareAndSwap(false, true) {
		return fmt.Errorf("%s is already unregistered", h.StreamID)
	}
	return e.Synchronizer.RemoveStream(ctx, h.StreamID)
}

func (e *Engine) onStreamRemoved(
	ctx context.Context,
	streamID types.StreamID,
) {
	e.Mixer.RemoveStream(ctx, streamID)
	e.locker.Do(ctx, func() {
		delete(e.streams, streamID)
	})
}

// Submit enqueues a frame of the stream. The engine takes over the caller's
// reference to f in every case. ts is the alignment key and replaces the
// presentation timestamp of m. A nil record means the producer had no
// statistics: a record is synthesized unless the frame already carries one.
func (e *Engine) Submit(
	ctx context.Context,
	h *StreamHandle,
	f *frame.Frame,
	m *meta.Meta,
	ts time.Duration,
) error {
	if h.unregistered.Load() {
		f.Release(ctx)
		return ingest.ErrEndOfStream{StreamID: h.StreamID}
	}

	f.StreamID = h.StreamID
	f.Timestamp = ts
	switch {
	case m != nil:
		record := *m
		record.PresentationTimestamp = ts
		if err := f.SetMeta(record); err != nil {
			f.Release(ctx)
			return fmt.Errorf("unable to attach the metadata to the frame of %s: %w", h.StreamID, err)
		}
	case f.Meta() == nil:
		if err := f.SetMeta(meta.Meta{
			SequenceNumber:        h.nextSequence.Inc() - 1,
			PresentationTimestamp: ts,
		}); err != nil {
			f.Release(ctx)
			return fmt.Errorf("unable to attach the metadata to the frame of %s: %w", h.StreamID, err)
		}
	}
	return h.adapter.Push(ctx, f)
}

// AcquireFrame returns a frame from the input pool for producers which
// want to recycle their input storage. The frame returns to the pool once
// it is mixed.
func (e *Engine) AcquireFrame(
	ctx context.Context,
	width, height int,
) (*frame.Frame, error) {
	return e.InputPool.AcquireRGBA(ctx, width, height)
}

// Serve runs the consumer loop until every stream is ended and drained
// (then it returns nil), ctx is cancelled, or the output pool is exhausted.
func (e *Engine) Serve(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Serve")
	defer func() { logger.Debugf(ctx, "/Serve: %v", _err) }()

	if !e.serving.CompareAndSwap(false, true) {
		return fmt.Errorf("the engine is already being served")
	}
	defer e.serving.Store(false)

	for {
		slice, err := e.Synchronizer.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			e.closer.Close(ctx, ErrStopped)
			return nil
		case err != nil:
			return err
		}

		out, err := e.Mixer.Mix(ctx, slice)
		if err != nil {
			err = fmt.Errorf("unable to mix %s: %w", slice, err)
			logger.Errorf(ctx, "%v", err)
			e.abort(xcontext.DetachDone(ctx), err)
			return err
		}

		if err := e.Sink.SendOutput(ctx, out); err != nil {
			e.CountSinkErrors.Inc()
			logger.Warnf(ctx, "unable to send the output %s: %v", out, err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		e.CountOutputs.Inc()
	}
}

// Start runs Serve in the background; the result is delivered into the
// returned channel.
func (e *Engine) Start(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	observability.Go(ctx, func(ctx context.Context) {
		errCh <- e.Serve(ctx)
	})
	return errCh
}

// Stop ends all the streams; Serve returns nil after draining what is
// already queued.
func (e *Engine) Stop(ctx context.Context) {
	logger.Debugf(ctx, "Stop")
	e.Synchronizer.Stop(ctx)
}

func (e *Engine) abort(ctx context.Context, cause error) {
	if !e.closer.Close(ctx, cause) {
		return
	}
	e.Synchronizer.Stop(ctx)
	for _, h := range e.handles(ctx) {
		if n := h.adapter.Flush(ctx); n > 0 {
			logger.Debugf(ctx, "%s: dropped %d queued frames", h.StreamID, n)
		}
	}
}

// Done is closed once the engine has stopped serving for good.
func (e *Engine) Done() <-chan struct{} {
	return e.closer.CloseChan()
}

// Err returns the reason the engine stopped, if it did.
func (e *Engine) Err() error {
	return e.closer.Err()
}

func (e *Engine) handles(ctx context.Context) []*StreamHandle {
	return xsync.DoR1(ctx, &e.locker, func() []*StreamHandle {
		result := make([]*StreamHandle, 0, len(e.streams))
		for _, h := range e.streams {
			result = append(result, h)
		}
		return result
	})
}

package comparemixer

import (
	"context"

	"github.com/xaionaro-go/comparemixer/frame"
)

// Sink receives the output frames; it takes over the reference to the
// frame whatever it returns.
type Sink interface {
	SendOutput(ctx context.Context, f *frame.Frame) error
}

// ChanSink delivers the output frames into a channel, blocking while the
// channel is full.
type ChanSink chan *frame.Frame

var _ Sink = ChanSink(nil)

func NewChanSink(size int) ChanSink {
	return make(ChanSink, size)
}

func (s ChanSink) SendOutput(ctx context.Context, f *frame.Frame) error {
	select {
	case <-ctx.Done():
		f.Release(ctx)
		return ctx.Err()
	case s <- f:
		return nil
	}
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, f *frame.Frame) error

func (fn SinkFunc) SendOutput(ctx context.Context, f *frame.Frame) error {
	return fn(ctx, f)
}

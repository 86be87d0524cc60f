package statsproducer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/comparemixer/frame"
	"github.com/xaionaro-go/comparemixer/types"
	"github.com/xaionaro-go/typing"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func TestTracker(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(0, 0)}
	tr := NewTracker("x264", types.Rational{Num: 25, Den: 1})
	tr.NowFunc = clock.Now

	tr.BufferIn(ctx)
	clock.now = clock.now.Add(10 * time.Millisecond)
	tr.BufferIn(ctx)
	tr.BufferIn(ctx)
	clock.now = clock.now.Add(20 * time.Millisecond)

	f := frame.NewRGBA(1, 1)
	require.NoError(t, tr.Observe(ctx, f, Encoded{
		PresentationTimestamp: 40 * time.Millisecond,
		FrameType:             types.FrameTypeKey,
		SizeBytes:             1000,
		QuantizationParameter: typing.Opt(23.0),
	}))
	m := f.Meta()
	require.Equal(t, uint64(0), m.SequenceNumber)
	require.Equal(t, 40*time.Millisecond, m.PresentationTimestamp)
	require.Equal(t, uint64(8000), m.EncodedSizeBits)
	require.Equal(t, 30*time.Millisecond, m.EncodeDuration.Get())
	require.Equal(t, "x264", m.EncoderName)
	require.False(t, m.QualityScore.IsSet())

	m2, err := tr.BufferOut(ctx, Encoded{SizeBytes: 1500})
	require.NoError(t, err)
	require.Equal(t, uint64(1), m2.SequenceNumber)
	require.Equal(t, 20*time.Millisecond, m2.EncodeDuration.Get())

	stats := tr.Stats(ctx)
	require.Equal(t, uint64(2), stats.Buffers)
	require.Equal(t, uint64(2500), stats.Bytes)
	require.Equal(t, 1, stats.InFlight)
	require.Equal(t, 3, stats.MaxInFlight)
	require.Equal(t, 25*time.Millisecond, stats.AvgProcessingTime)
	// 2500 bytes in 2 frames of 40ms
	require.InDelta(t, 250000.0, stats.Bitrate, 1e-6)
	require.Contains(t, stats.String(), "Bitrate: 250 kb/s")
}

func TestTrackerOutputWithoutInput(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker("x", types.Rational{})
	_, err := tr.BufferOut(ctx, Encoded{})
	require.Error(t, err)
	require.Zero(t, tr.Stats(ctx).Bitrate)
}

func TestTrackerFinalizedFrame(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker("x", types.Rational{Num: 30, Den: 1})
	tr.BufferIn(ctx)

	f := frame.NewRGBA(1, 1)
	f.Finalize()
	require.ErrorAs(t, tr.Observe(ctx, f, Encoded{}), &frame.ErrAlreadyFinalized{})
}

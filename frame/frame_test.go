package frame

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/comparemixer/meta"
	"github.com/xaionaro-go/comparemixer/pool"
	"github.com/xaionaro-go/comparemixer/types"
	"github.com/xaionaro-go/typing"
)

func TestFrameMetaAttach(t *testing.T) {
	f := NewRGBA(4, 4)
	require.Nil(t, f.Meta())

	m := meta.Meta{
		SequenceNumber:        7,
		PresentationTimestamp: 100 * time.Millisecond,
		FrameType:             types.FrameTypeKey,
		EncodedSizeBits:       8000,
		QuantizationParameter: typing.Opt(23.0),
	}
	require.NoError(t, f.SetMeta(m))

	// the frame keeps its own copy
	m.SequenceNumber = 8
	require.Equal(t, uint64(7), f.Meta().SequenceNumber)
	require.Equal(t, 23.0, f.Meta().QuantizationParameter.Get())
	require.False(t, f.Meta().EncodeDuration.IsSet())

	t.Run("replace", func(t *testing.T) {
		require.NoError(t, f.SetMeta(meta.Meta{SequenceNumber: 9}))
		require.Equal(t, uint64(9), f.Meta().SequenceNumber)
		require.False(t, f.Meta().QuantizationParameter.IsSet())
	})

	t.Run("finalized", func(t *testing.T) {
		f.Finalize()
		require.True(t, f.IsFinalized())
		err := f.SetMeta(meta.Meta{SequenceNumber: 10})
		require.ErrorAs(t, err, &ErrAlreadyFinalized{})
		require.Equal(t, uint64(9), f.Meta().SequenceNumber)
	})
}

func TestFrameMetaConcurrentReaders(t *testing.T) {
	f := NewRGBA(1, 1)
	require.NoError(t, f.SetMeta(meta.Meta{SequenceNumber: 1}))
	f.Finalize()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if f.Meta().SequenceNumber != 1 {
					t.Errorf("unexpected sequence number")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestFrameCopyMetaFrom(t *testing.T) {
	src := NewRGBA(1, 1)
	require.NoError(t, src.SetMeta(meta.Meta{SequenceNumber: 1}))

	dst := NewRGBA(1, 1)
	require.NoError(t, dst.CopyMetaFrom(src))
	require.Equal(t, uint64(1), dst.Meta().SequenceNumber)
	require.NotSame(t, src.Meta(), dst.Meta())

	// an existing record is kept
	require.NoError(t, src.SetMeta(meta.Meta{SequenceNumber: 2}))
	require.NoError(t, dst.CopyMetaFrom(src))
	require.Equal(t, uint64(1), dst.Meta().SequenceNumber)

	empty := NewRGBA(1, 1)
	require.NoError(t, empty.CopyMetaFrom(NewRGBA(1, 1)))
	require.Nil(t, empty.Meta())
}

func TestFramePoolRecycling(t *testing.T) {
	ctx := context.Background()
	p := NewPool(pool.Config{MaxItems: 2, AcquireTimeout: -1})

	f, err := p.AcquireRGBA(ctx, 8, 8)
	require.NoError(t, err)
	require.Equal(t, 8, f.Bounds().Dx())
	require.NoError(t, f.SetMeta(meta.Meta{SequenceNumber: 1}))
	f.Finalize()

	f.Ref()
	f.Release(ctx)
	require.Equal(t, uint64(0), p.Stats(ctx).Recycled)
	f.Release(ctx)
	require.Equal(t, uint64(1), p.Stats(ctx).Recycled)

	// smaller images reuse the storage, and the frame state is reset
	f2, err := p.AcquireRGBA(ctx, 4, 2)
	require.NoError(t, err)
	require.Same(t, f, f2)
	require.Nil(t, f2.Meta())
	require.False(t, f2.IsFinalized())
	require.Equal(t, int32(1), f2.RefCount())
	require.Equal(t, 4, f2.Bounds().Dx())
	require.Equal(t, 2, f2.Bounds().Dy())
	require.Len(t, f2.Image.Pix, 4*4*2)

	empty, err := p.AcquireRGBA(ctx, 0, 0)
	require.NoError(t, err)
	require.Nil(t, empty.Image)

	_, err = p.AcquireRGBA(ctx, 1, 1)
	require.ErrorAs(t, err, &pool.ErrPoolExhausted{})

	f2.Release(ctx)
	empty.Release(ctx)
	require.Equal(t, uint(2), p.Stats(ctx).Idle)
}

func TestFrameUnpooledRelease(t *testing.T) {
	ctx := context.Background()
	f := NewRGBA(2, 2)
	f.Release(ctx)
	require.Zero(t, f.RefCount())

	var nilFrame *Frame
	nilFrame.Release(ctx)
}

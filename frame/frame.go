// Package frame provides the reference-counted frame buffer which carries
// pixels and, optionally, a metadata record through the pipeline.
package frame

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/xaionaro-go/comparemixer/internal"
	"github.com/xaionaro-go/comparemixer/meta"
	"github.com/xaionaro-go/comparemixer/types"
	"go.uber.org/atomic"
)

type Frame struct {
	StreamID  types.StreamID
	Timestamp time.Duration

	// Image is nil for buffers without pixel data (e.g. metrics-only output).
	Image *image.RGBA

	meta      atomic.Pointer[meta.Meta]
	finalized atomic.Bool
	refCount  atomic.Int32
	storage   []uint8
	owner     *Pool
}

// New wraps an image into a frame which does not belong to any pool.
func New(img *image.RGBA) *Frame {
	f := &Frame{Image: img}
	if img != nil {
		f.storage = img.Pix
	}
	f.refCount.Store(1)
	return f
}

func NewRGBA(width, height int) *Frame {
	return New(image.NewRGBA(image.Rect(0, 0, width, height)))
}

func (f *Frame) String() string {
	if f == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Frame(%s, ts:%v, %s)", f.StreamID, f.Timestamp, f.Bounds().Size())
}

func (f *Frame) Bounds() image.Rectangle {
	if f.Image == nil {
		return image.Rectangle{}
	}
	return f.Image.Bounds()
}

// Capacity is the amount of bytes the frame storage can hold without reallocation.
func (f *Frame) Capacity() int {
	return cap(f.storage)
}

// Ref adds a holder of the frame; every Ref must be paired with a Release.
func (f *Frame) Ref() *Frame {
	f.refCount.Inc()
	return f
}

func (f *Frame) RefCount() int32 {
	return f.refCount.Load()
}

// Release drops one reference; the last one returns the storage to the owning pool.
func (f *Frame) Release(ctx context.Context) {
	if f == nil {
		return
	}
	refs := f.refCount.Dec()
	internal.Assert(ctx, refs >= 0, "frame released more times than referenced", f.String())
	if refs > 0 {
		return
	}
	if f.owner != nil {
		f.owner.put(ctx, f)
	}
}

// SetMeta attaches the record to the frame, replacing any previous one.
// The record is copied, so later changes to m do not affect the frame.
func (f *Frame) SetMeta(m meta.Meta) error {
	if f.finalized.Load() {
		return ErrAlreadyFinalized{Frame: f.String()}
	}
	f.meta.Store(&m)
	return nil
}

// Meta returns the attached record or nil. The result must not be modified.
func (f *Frame) Meta() *meta.Meta {
	return f.meta.Load()
}

// CopyMetaFrom copies the record of src unless f already has one.
func (f *Frame) CopyMetaFrom(src *Frame) error {
	if f.meta.Load() != nil {
		return nil
	}
	m := src.Meta()
	if m == nil {
		return nil
	}
	return f.SetMeta(*m)
}

// Finalize marks the frame read-only: further SetMeta calls fail.
func (f *Frame) Finalize() {
	f.finalized.Store(true)
}

func (f *Frame) IsFinalized() bool {
	return f.finalized.Load()
}

// resetAsRGBA reuses the storage for a width x height image;
// the pixel contents are undefined.
func (f *Frame) resetAsRGBA(width, height int) {
	f.StreamID = 0
	f.Timestamp = 0
	f.meta.Store(nil)
	f.finalized.Store(false)
	f.refCount.Store(1)

	size := 4 * width * height
	if size == 0 {
		f.Image = nil
		return
	}
	if cap(f.storage) < size {
		f.storage = make([]uint8, size)
	}
	f.Image = &image.RGBA{
		Pix:    f.storage[:size],
		Stride: 4 * width,
		Rect:   image.Rect(0, 0, width, height),
	}
}

package frame

import (
	"context"

	"github.com/xaionaro-go/comparemixer/pool"
)

// Pool recycles frame storage.
type Pool struct {
	*pool.Pool[Frame]
}

func NewPool(cfg pool.Config) *Pool {
	p := &Pool{}
	p.Pool = pool.New(cfg, pool.Funcs[Frame]{
		Alloc: func(size int) *Frame {
			f := &Frame{owner: p}
			if size > 0 {
				f.storage = make([]uint8, size)
			}
			return f
		},
		Size: func(f *Frame) int {
			return cap(f.storage)
		},
		Reset: func(f *Frame, size int) {},
	})
	return p
}

// AcquireRGBA returns a frame holding a width x height image with undefined
// pixels, or no image at all if the size is zero.
func (p *Pool) AcquireRGBA(
	ctx context.Context,
	width, height int,
) (*Frame, error) {
	f, err := p.Pool.Acquire(ctx, 4*width*height)
	if err != nil {
		return nil, err
	}
	f.resetAsRGBA(width, height)
	return f, nil
}

func (p *Pool) put(ctx context.Context, f *Frame) {
	f.meta.Store(nil)
	p.Pool.Release(ctx, f)
}

// Package pool provides a bounded, thread-safe object pool.
//
// Unlike sync.Pool it keeps explicit accounting: the amount of live items
// (idle plus handed out) never exceeds MaxItems, and Acquire waits for a
// Release (up to AcquireTimeout) once that limit is reached.
package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ng/xatomic"
	"github.com/xaionaro-go/comparemixer/logger"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

const (
	DefaultMaxItems       = 16
	DefaultAcquireTimeout = time.Second
)

type Config struct {
	// MaxItems is the limit of live items; zero means DefaultMaxItems.
	MaxItems uint

	// MaxIdle is the limit of items kept for reuse; zero means MaxItems.
	MaxIdle uint

	// AcquireTimeout bounds the wait for a released item once MaxItems is
	// reached; zero means DefaultAcquireTimeout, negative means "do not wait".
	AcquireTimeout time.Duration
}

type Funcs[T any] struct {
	Alloc func(size int) *T
	Size  func(*T) int
	Reset func(*T, int)
	Free  func(*T)
}

type Pool[T any] struct {
	Config Config
	Funcs  Funcs[T]

	locker    xsync.Mutex
	idle      []*T
	liveCount uint
	releaseCh *chan struct{}

	CountAllocated atomic.Uint64
	CountReused    atomic.Uint64
	CountRecycled  atomic.Uint64
	CountFreed     atomic.Uint64
	CountWaits     atomic.Uint64
	CountExhausted atomic.Uint64
}

func New[T any](cfg Config, funcs Funcs[T]) *Pool[T] {
	if cfg.MaxItems == 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.MaxIdle == 0 || cfg.MaxIdle > cfg.MaxItems {
		cfg.MaxIdle = cfg.MaxItems
	}
	if cfg.AcquireTimeout == 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	p := &Pool[T]{
		Config: cfg,
		Funcs:  funcs,
		idle:   make([]*T, 0, cfg.MaxIdle),
	}
	xatomic.StorePointer(&p.releaseCh, ptr(make(chan struct{})))
	return p
}

// Acquire returns an item able to hold at least size units.
func (p *Pool[T]) Acquire(
	ctx context.Context,
	size int,
) (_ret *T, _err error) {
	logger.Tracef(ctx, "Acquire(%d)", size)
	defer func() { logger.Tracef(ctx, "/Acquire(%d): %v", size, _err) }()

	var deadline <-chan time.Time
	for {
		item, waitCh := xsync.DoR2(ctx, &p.locker, func() (*T, <-chan struct{}) {
			return p.tryAcquireLocked(size)
		})
		if item != nil {
			return item, nil
		}

		if p.Config.AcquireTimeout < 0 {
			p.CountExhausted.Inc()
			return nil, ErrPoolExhausted{MaxItems: p.Config.MaxItems}
		}
		if deadline == nil {
			p.CountWaits.Inc()
			t := time.NewTimer(p.Config.AcquireTimeout)
			defer t.Stop()
			deadline = t.C
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			p.CountExhausted.Inc()
			return nil, ErrPoolExhausted{
				MaxItems: p.Config.MaxItems,
				Waited:   p.Config.AcquireTimeout,
			}
		case <-waitCh:
		}
	}
}

func (p *Pool[T]) tryAcquireLocked(size int) (*T, <-chan struct{}) {
	for idx := len(p.idle) - 1; idx >= 0; idx-- {
		item := p.idle[idx]
		if p.Funcs.Size(item) < size {
			continue
		}
		p.idle = append(p.idle[:idx], p.idle[idx+1:]...)
		p.Funcs.Reset(item, size)
		p.CountReused.Inc()
		return item, nil
	}

	if p.liveCount >= p.Config.MaxItems && len(p.idle) > 0 {
		// everything idle is too small: replace the oldest one
		p.free(p.idle[0])
		p.idle = p.idle[1:]
	}

	if p.liveCount < p.Config.MaxItems {
		p.liveCount++
		p.CountAllocated.Inc()
		return p.Funcs.Alloc(size), nil
	}

	return nil, *xatomic.LoadPointer(&p.releaseCh)
}

// Release returns the item to the pool; it is freed if the idle list is full.
func (p *Pool[T]) Release(ctx context.Context, item *T) {
	if item == nil {
		return
	}
	p.locker.Do(ctx, func() {
		if uint(len(p.idle)) < p.Config.MaxIdle {
			p.idle = append(p.idle, item)
			p.CountRecycled.Inc()
		} else {
			p.free(item)
		}
		close(*xatomic.SwapPointer(&p.releaseCh, ptr(make(chan struct{}))))
	})
}

func (p *Pool[T]) free(item *T) {
	p.liveCount--
	p.CountFreed.Inc()
	if p.Funcs.Free != nil {
		p.Funcs.Free(item)
	}
}

type Statistics struct {
	Live      uint
	Idle      uint
	MaxItems  uint
	Allocated uint64
	Reused    uint64
	Recycled  uint64
	Freed     uint64
	Waits     uint64
	Exhausted uint64
}

func (p *Pool[T]) Stats(ctx context.Context) Statistics {
	live, idle := xsync.DoR2(ctx, &p.locker, func() (uint, uint) {
		return p.liveCount, uint(len(p.idle))
	})
	return Statistics{
		Live:      live,
		Idle:      idle,
		MaxItems:  p.Config.MaxItems,
		Allocated: p.CountAllocated.Load(),
		Reused:    p.CountReused.Load(),
		Recycled:  p.CountRecycled.Load(),
		Freed:     p.CountFreed.Load(),
		Waits:     p.CountWaits.Load(),
		Exhausted: p.CountExhausted.Load(),
	}
}

func (s Statistics) String() string {
	return fmt.Sprintf("live:%d/%d idle:%d alloc:%d reuse:%d free:%d exhausted:%d", s.Live, s.MaxItems, s.Idle, s.Allocated, s.Reused, s.Freed, s.Exhausted)
}

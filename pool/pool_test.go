package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type buffer struct {
	Data  []byte
	Freed bool
}

func newTestPool(cfg Config) *Pool[buffer] {
	return New(cfg, Funcs[buffer]{
		Alloc: func(size int) *buffer {
			return &buffer{Data: make([]byte, size)}
		},
		Size: func(b *buffer) int {
			return cap(b.Data)
		},
		Reset: func(b *buffer, size int) {
			b.Data = b.Data[:size]
		},
		Free: func(b *buffer) {
			b.Freed = true
		},
	})
}

func TestPoolReuse(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(Config{MaxItems: 2})

	b0, err := p.Acquire(ctx, 100)
	require.NoError(t, err)
	require.Len(t, b0.Data, 100)
	p.Release(ctx, b0)

	b1, err := p.Acquire(ctx, 50)
	require.NoError(t, err)
	require.Same(t, b0, b1)
	require.Len(t, b1.Data, 50)

	stats := p.Stats(ctx)
	require.Equal(t, uint64(1), stats.Allocated)
	require.Equal(t, uint64(1), stats.Reused)
	require.Equal(t, uint(1), stats.Live)
	require.Zero(t, stats.Idle)
}

func TestPoolReplacesUndersizedIdle(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(Config{MaxItems: 1})

	small, err := p.Acquire(ctx, 10)
	require.NoError(t, err)
	p.Release(ctx, small)

	big, err := p.Acquire(ctx, 1000)
	require.NoError(t, err)
	require.NotSame(t, small, big)
	require.True(t, small.Freed)
	require.Len(t, big.Data, 1000)
	require.Equal(t, uint(1), p.Stats(ctx).Live)
}

func TestPoolExhausted(t *testing.T) {
	ctx := context.Background()

	t.Run("no wait", func(t *testing.T) {
		p := newTestPool(Config{MaxItems: 1, AcquireTimeout: -1})
		_, err := p.Acquire(ctx, 1)
		require.NoError(t, err)

		_, err = p.Acquire(ctx, 1)
		require.ErrorAs(t, err, &ErrPoolExhausted{})
		require.Equal(t, uint64(1), p.CountExhausted.Load())
		require.Zero(t, p.CountWaits.Load())
	})

	t.Run("timeout", func(t *testing.T) {
		p := newTestPool(Config{MaxItems: 1, AcquireTimeout: 20 * time.Millisecond})
		_, err := p.Acquire(ctx, 1)
		require.NoError(t, err)

		startedAt := time.Now()
		_, err = p.Acquire(ctx, 1)
		var errExhausted ErrPoolExhausted
		require.ErrorAs(t, err, &errExhausted)
		require.Equal(t, 20*time.Millisecond, errExhausted.Waited)
		require.GreaterOrEqual(t, time.Since(startedAt), 20*time.Millisecond)
		require.Equal(t, uint64(1), p.CountWaits.Load())
	})

	t.Run("released while waiting", func(t *testing.T) {
		p := newTestPool(Config{MaxItems: 1, AcquireTimeout: time.Minute})
		b, err := p.Acquire(ctx, 1)
		require.NoError(t, err)

		go func() {
			time.Sleep(20 * time.Millisecond)
			p.Release(ctx, b)
		}()

		b2, err := p.Acquire(ctx, 1)
		require.NoError(t, err)
		require.Same(t, b, b2)
	})

	t.Run("cancelled", func(t *testing.T) {
		p := newTestPool(Config{MaxItems: 1, AcquireTimeout: time.Minute})
		_, err := p.Acquire(ctx, 1)
		require.NoError(t, err)

		ctx, cancelFn := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancelFn()
		_, err = p.Acquire(ctx, 1)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestPoolMaxIdle(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(Config{MaxItems: 4, MaxIdle: 1})

	var items []*buffer
	for i := 0; i < 4; i++ {
		b, err := p.Acquire(ctx, 8)
		require.NoError(t, err)
		items = append(items, b)
	}
	for _, b := range items {
		p.Release(ctx, b)
	}

	stats := p.Stats(ctx)
	require.Equal(t, uint(1), stats.Idle)
	require.Equal(t, uint(1), stats.Live)
	require.Equal(t, uint64(3), stats.Freed)
	require.Equal(t, uint64(1), stats.Recycled)
}

func TestPoolConcurrentLimit(t *testing.T) {
	ctx := context.Background()
	const maxItems = 3
	p := newTestPool(Config{MaxItems: maxItems, AcquireTimeout: 5 * time.Second})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inUse   int
		maxSeen int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				b, err := p.Acquire(ctx, 16)
				if err != nil {
					t.Errorf("unable to acquire: %v", err)
					return
				}
				mu.Lock()
				inUse++
				if inUse > maxSeen {
					maxSeen = inUse
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inUse--
				mu.Unlock()
				p.Release(ctx, b)
			}
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, maxSeen, maxItems)
	require.LessOrEqual(t, p.Stats(ctx).Live, uint(maxItems))
}

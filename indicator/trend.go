package indicator

import (
	"context"

	"github.com/xaionaro-go/xsync"
)

const DefaultTrendWindow = 32

// Trend keeps one smoothed series per key.
type Trend[K comparable] struct {
	Window int

	locker xsync.Mutex
	series map[K]*MAMA[float64]
}

func NewTrend[K comparable](window int) *Trend[K] {
	if window <= 0 {
		window = DefaultTrendWindow
	}
	return &Trend[K]{
		Window: window,
		series: map[K]*MAMA[float64]{},
	}
}

func (t *Trend[K]) Update(ctx context.Context, key K, v float64) float64 {
	series := xsync.DoR1(ctx, &t.locker, func() *MAMA[float64] {
		s := t.series[key]
		if s == nil {
			s = NewMAMADefault[float64](t.Window)
			t.series[key] = s
		}
		return s
	})
	return series.Update(v)
}

func (t *Trend[K]) Get(ctx context.Context, key K) (float64, bool) {
	series := xsync.DoR1(ctx, &t.locker, func() *MAMA[float64] {
		return t.series[key]
	})
	if series == nil {
		return 0, false
	}
	return series.Last(), true
}

func (t *Trend[K]) Remove(ctx context.Context, key K) {
	t.locker.Do(ctx, func() {
		delete(t.series, key)
	})
}

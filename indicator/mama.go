// mama.go implements the MESA Adaptive Moving Average (MAMA) indicator.

package indicator

import (
	"sync"

	indicators "github.com/lmpizarro/go_ehlers_indicators"
	"golang.org/x/exp/constraints"
)

type MAMA[T constraints.Integer | constraints.Float] struct {
	FastLimit float64
	SlowLimit float64

	locker  sync.Mutex
	ring    []float64
	ordered []float64
	next    int
	count   int
	last    T
}

var _ MovingAverage[float64] = (*MAMA[float64])(nil)

func NewMAMADefault[T constraints.Integer | constraints.Float](
	window int,
) *MAMA[T] {
	return NewMAMA[T](window, 0.5, 0.05)
}

func NewMAMA[T constraints.Integer | constraints.Float](
	window int,
	fastLimit float64,
	slowLimit float64,
) *MAMA[T] {
	return &MAMA[T]{
		FastLimit: fastLimit,
		SlowLimit: slowLimit,
		ring:      make([]float64, window),
		ordered:   make([]float64, window),
	}
}

// Update adds a measurement and returns the smoothed value; until the
// window is filled the measurement itself is returned.
func (m *MAMA[T]) Update(v T) T {
	m.locker.Lock()
	defer m.locker.Unlock()

	m.ring[m.next] = float64(v)
	m.next = (m.next + 1) % len(m.ring)
	m.count++
	if m.count < len(m.ring) {
		m.last = v
		return v
	}

	// oldest first
	n := copy(m.ordered, m.ring[m.next:])
	copy(m.ordered[n:], m.ring[:m.next])

	result := indicators.MAMA(m.ordered, m.FastLimit, m.SlowLimit)
	m.last = T(result[len(result)-1])
	return m.last
}

// Last returns the value returned by the latest Update.
func (m *MAMA[T]) Last() T {
	m.locker.Lock()
	defer m.locker.Unlock()
	return m.last
}

func (m *MAMA[T]) InitPeriod() int64 {
	return int64(len(m.ring))
}

func (m *MAMA[T]) Valid() bool {
	m.locker.Lock()
	defer m.locker.Unlock()
	return m.count >= len(m.ring)
}

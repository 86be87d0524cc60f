// Package ts converts stream timestamps into the durations used as
// alignment keys.
package ts

import (
	"context"
	"math"
	"time"

	"github.com/xaionaro-go/comparemixer/types"
	"github.com/xaionaro-go/xsync"
)

// NoTimestamp is the value used by libav for an unknown timestamp.
const NoTimestamp = int64(math.MinInt64)

// ClockCalculator maps timestamps in TimeBase units onto durations since the
// first converted timestamp, so streams starting at different offsets share
// one clock domain.
type ClockCalculator struct {
	xsync.Mutex
	TimeBase  types.Rational
	StartTS   int64
	StartTime time.Time
	NowFunc   func() time.Time
}

func NewClockCalculator(
	timeBase types.Rational,
) *ClockCalculator {
	return &ClockCalculator{
		TimeBase: timeBase,
		StartTS:  NoTimestamp,
		NowFunc:  time.Now,
	}
}

// ToDuration returns false for NoTimestamp.
func (c *ClockCalculator) ToDuration(
	ctx context.Context,
	ts int64,
) (time.Duration, bool) {
	return xsync.DoR2(ctx, &c.Mutex, func() (time.Duration, bool) {
		return c.asLocked().ToDuration(ts)
	})
}

func (c *ClockCalculator) ToWallClock(
	ctx context.Context,
	ts int64,
) (time.Time, bool) {
	return xsync.DoR2(ctx, &c.Mutex, func() (time.Time, bool) {
		d, ok := c.asLocked().ToDuration(ts)
		return c.StartTime.Add(d), ok
	})
}

// Reset makes the next converted timestamp the new zero.
func (c *ClockCalculator) Reset(ctx context.Context) {
	c.Mutex.Do(ctx, func() {
		c.StartTS = NoTimestamp
		c.StartTime = time.Time{}
	})
}

type clockCalculatorLocked struct {
	*ClockCalculator
}

func (c *ClockCalculator) asLocked() *clockCalculatorLocked {
	return &clockCalculatorLocked{c}
}

func (c *clockCalculatorLocked) ToDuration(
	ts int64,
) (time.Duration, bool) {
	if ts == NoTimestamp {
		return 0, false
	}
	if c.StartTS == NoTimestamp {
		c.StartTS = ts
		c.StartTime = c.NowFunc()
		return 0, true
	}

	tsDelta := ts - c.StartTS
	return time.Duration(tsDelta * int64(time.Second) * int64(c.TimeBase.Num) / int64(c.TimeBase.Den)), true
}

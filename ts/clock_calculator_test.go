package ts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/comparemixer/types"
)

func TestClockCalculator(t *testing.T) {
	ctx := context.Background()
	startTime := time.Unix(1000, 0)
	c := NewClockCalculator(types.Rational{Num: 1, Den: 90000})
	c.NowFunc = func() time.Time { return startTime }

	_, ok := c.ToDuration(ctx, NoTimestamp)
	require.False(t, ok)

	for _, tc := range []struct {
		ts       int64
		expected time.Duration
	}{
		{ts: 900000, expected: 0},
		{ts: 903000, expected: 33333333},
		{ts: 990000, expected: time.Second},
		{ts: 891000, expected: -100 * time.Millisecond},
	} {
		d, ok := c.ToDuration(ctx, tc.ts)
		require.True(t, ok)
		require.Equal(t, tc.expected, d, "%d", tc.ts)
	}

	wall, ok := c.ToWallClock(ctx, 990000)
	require.True(t, ok)
	require.Equal(t, startTime.Add(time.Second), wall)

	c.Reset(ctx)
	d, _ := c.ToDuration(ctx, 5)
	require.Zero(t, d)
}

package closuresignaler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClosureSignaler(t *testing.T) {
	ctx := context.Background()
	c := New()
	require.False(t, c.IsClosed())
	require.NoError(t, c.Err())

	errFirst := errors.New("first")
	require.True(t, c.Close(ctx, errFirst))
	require.False(t, c.Close(ctx, errors.New("second")))

	<-c.CloseChan()
	require.True(t, c.IsClosed())
	require.ErrorIs(t, c.Err(), errFirst)
}

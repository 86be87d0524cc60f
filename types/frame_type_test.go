package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameTypeText(t *testing.T) {
	for c := FrameTypeUnknown; c < EndOfFrameType; c++ {
		b, err := c.MarshalText()
		require.NoError(t, err)

		var parsed FrameType
		require.NoError(t, parsed.UnmarshalText(b))
		require.Equal(t, c, parsed)
	}

	var parsed FrameType
	require.NoError(t, parsed.UnmarshalText([]byte(" Key ")))
	require.Equal(t, FrameTypeKey, parsed)
	require.Error(t, parsed.UnmarshalText([]byte("x")))
}

func TestFrameTypeLetter(t *testing.T) {
	require.Equal(t, "I", FrameTypeKey.Letter())
	require.Equal(t, "P", FrameTypePredicted.Letter())
	require.Equal(t, "B", FrameTypeBidirectional.Letter())
	require.Equal(t, "?", FrameTypeUnknown.Letter())
}

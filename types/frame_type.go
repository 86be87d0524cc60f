package types

import (
	"fmt"
	"strings"
)

// FrameType is the picture type reported by an encoder.
type FrameType int

const (
	FrameTypeUnknown = FrameType(iota)
	FrameTypeKey
	FrameTypePredicted
	FrameTypeBidirectional
	EndOfFrameType
)

func (t FrameType) String() string {
	switch t {
	case FrameTypeUnknown:
		return "unknown"
	case FrameTypeKey:
		return "key"
	case FrameTypePredicted:
		return "predicted"
	case FrameTypeBidirectional:
		return "bidirectional"
	default:
		return fmt.Sprintf("FrameType(%d)", int(t))
	}
}

// Letter returns the conventional one-letter picture type (I/P/B/?).
func (t FrameType) Letter() string {
	switch t {
	case FrameTypeKey:
		return "I"
	case FrameTypePredicted:
		return "P"
	case FrameTypeBidirectional:
		return "B"
	default:
		return "?"
	}
}

func (t FrameType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *FrameType) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for c := FrameTypeUnknown; c < EndOfFrameType; c++ {
		if c.String() == s {
			*t = c
			return nil
		}
	}
	return fmt.Errorf("unknown frame type '%s'", s)
}

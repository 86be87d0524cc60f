package synchronizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xaionaro-go/comparemixer/frame"
	"github.com/xaionaro-go/comparemixer/types"
)

// MissingReason explains why a stream has no frame in a slice.
type MissingReason int

const (
	NotMissing = MissingReason(iota)
	MissingNoFrameInWindow
	MissingWaitExpired
	MissingStalled
	MissingExcluded
	MissingEnded
)

func (r MissingReason) String() string {
	switch r {
	case NotMissing:
		return "present"
	case MissingNoFrameInWindow:
		return "no_frame_in_window"
	case MissingWaitExpired:
		return "wait_expired"
	case MissingStalled:
		return "stalled"
	case MissingExcluded:
		return "excluded"
	case MissingEnded:
		return "ended"
	default:
		return fmt.Sprintf("MissingReason(%d)", int(r))
	}
}

type Entry struct {
	StreamID types.StreamID

	// Frame is nil if the stream is missing from the slice.
	Frame   *frame.Frame
	Missing MissingReason
}

func (e Entry) IsPresent() bool {
	return e.Frame != nil
}

// Slice is one aligned output slot: at most one frame per stream, in the
// order the streams were added.
type Slice struct {
	Sequence  uint64
	Timestamp time.Duration

	// Anchor is the stream whose frame defined Timestamp
	// (the lowest stream ID on equal timestamps).
	Anchor types.StreamID

	Entries []Entry

	// Waited is how long the slot waited for late streams.
	Waited time.Duration
}

func (s *Slice) Entry(streamID types.StreamID) (Entry, bool) {
	for _, e := range s.Entries {
		if e.StreamID == streamID {
			return e, true
		}
	}
	return Entry{}, false
}

func (s *Slice) Frame(streamID types.StreamID) *frame.Frame {
	e, _ := s.Entry(streamID)
	return e.Frame
}

func (s *Slice) PresentCount() int {
	count := 0
	for _, e := range s.Entries {
		if e.IsPresent() {
			count++
		}
	}
	return count
}

// Release drops the slice's references to its frames.
func (s *Slice) Release(ctx context.Context) {
	for idx := range s.Entries {
		s.Entries[idx].Frame.Release(ctx)
		s.Entries[idx].Frame = nil
	}
}

func (s *Slice) String() string {
	var parts []string
	for _, e := range s.Entries {
		if e.IsPresent() {
			parts = append(parts, fmt.Sprintf("%d:%v", int(e.StreamID), e.Frame.Timestamp))
		} else {
			parts = append(parts, fmt.Sprintf("%d:%s", int(e.StreamID), e.Missing))
		}
	}
	return fmt.Sprintf("Slice#%d(%v; %s)", s.Sequence, s.Timestamp, strings.Join(parts, ", "))
}

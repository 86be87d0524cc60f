package ingest

import (
	"fmt"
	"time"

	"github.com/xaionaro-go/comparemixer/types"
)

// ErrEndOfStream is returned by Push after MarkEndOfStream.
type ErrEndOfStream struct {
	StreamID types.StreamID
}

func (e ErrEndOfStream) Error() string {
	return fmt.Sprintf("%s has already ended", e.StreamID)
}

// ErrQueueOverflow describes a frame lost to a full queue. It is never
// returned by Push; it is what the drop counters count and what gets logged.
type ErrQueueOverflow struct {
	StreamID  types.StreamID
	Policy    BackpressurePolicy
	Timestamp time.Duration
}

func (e ErrQueueOverflow) Error() string {
	return fmt.Sprintf("%s: queue overflow (%s), dropped the frame with timestamp %v", e.StreamID, e.Policy, e.Timestamp)
}

// ErrNonMonotonicTimestamp describes a frame which is not newer than the
// previous frame of the same stream; such frames are discarded.
type ErrNonMonotonicTimestamp struct {
	StreamID  types.StreamID
	Timestamp time.Duration
	Previous  time.Duration
}

func (e ErrNonMonotonicTimestamp) Error() string {
	return fmt.Sprintf("%s: timestamp %v is not after the previous one %v", e.StreamID, e.Timestamp, e.Previous)
}

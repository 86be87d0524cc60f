package synchronizer

import (
	"fmt"
	"time"

	"github.com/xaionaro-go/comparemixer/types"
)

// ErrStreamStalled is logged when a stream is downgraded to "missing"
// because it produced nothing for longer than its stale timeout.
type ErrStreamStalled struct {
	StreamID     types.StreamID
	LastActivity time.Time
}

func (e ErrStreamStalled) Error() string {
	return fmt.Sprintf("%s is stalled: no activity since %v", e.StreamID, e.LastActivity)
}

// ErrNonMonotonicTimestamp is logged when queued frames are not after the
// last emitted slice; such frames are discarded and the next one is used.
type ErrNonMonotonicTimestamp struct {
	StreamID  types.StreamID
	Discarded int
	LastSlice time.Duration
}

func (e ErrNonMonotonicTimestamp) Error() string {
	return fmt.Sprintf("%s: %d frame(s) are not after the last emitted slice %v", e.StreamID, e.Discarded, e.LastSlice)
}

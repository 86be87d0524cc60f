package pool

import (
	"fmt"
	"time"
)

// ErrPoolExhausted means no item could be obtained within the configured
// bound; callers are expected to treat it as fatal.
type ErrPoolExhausted struct {
	MaxItems uint
	Waited   time.Duration
}

func (e ErrPoolExhausted) Error() string {
	return fmt.Sprintf("pool exhausted: all %d items are in use (waited %v)", e.MaxItems, e.Waited)
}

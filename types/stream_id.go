package types

import (
	"fmt"
)

// StreamID identifies an input stream for its whole lifetime.
type StreamID int

func (id StreamID) String() string {
	return fmt.Sprintf("stream#%d", int(id))
}

package frame

import (
	"fmt"
)

// ErrAlreadyFinalized is returned when metadata is attached to a frame
// after a consumer marked it read-only.
type ErrAlreadyFinalized struct {
	Frame string
}

func (e ErrAlreadyFinalized) Error() string {
	return fmt.Sprintf("frame %s is already finalized, metadata cannot be attached", e.Frame)
}

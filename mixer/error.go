package mixer

import (
	"fmt"

	"github.com/xaionaro-go/comparemixer/types"
	"github.com/xaionaro-go/typing"
)

// ErrReferenceUnavailable is recorded when the metrics of a slice are
// skipped because it has no reference frame; compositing still proceeds.
type ErrReferenceUnavailable struct {
	Sequence    uint64
	ReferenceID typing.Optional[types.StreamID]
}

func (e ErrReferenceUnavailable) Error() string {
	if !e.ReferenceID.IsSet() {
		return fmt.Sprintf("slice #%d: no reference stream is registered", e.Sequence)
	}
	return fmt.Sprintf("slice #%d: the reference %s is missing", e.Sequence, e.ReferenceID.Get())
}

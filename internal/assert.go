// Package internal contains helpers shared by the packages of this module.
package internal

import (
	"context"

	"github.com/xaionaro-go/comparemixer/logger"
)

// Assert panics (through the logger, so the context fields are kept)
// if the invariant does not hold.
func Assert(
	ctx context.Context,
	mustBeTrue bool,
	extraArgs ...any,
) {
	if mustBeTrue {
		return
	}

	logger.Panic(ctx, append([]any{"assertion failed"}, extraArgs...)...)
}

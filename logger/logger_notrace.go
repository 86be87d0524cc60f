//go:build !debug_trace
// +build !debug_trace

package logger

import (
	"context"
)

// Tracef is compiled out unless the debug_trace build tag is set.
func Tracef(ctx context.Context, format string, args ...any) {}

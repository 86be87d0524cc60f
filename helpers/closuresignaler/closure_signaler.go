// Package closuresignaler provides a one-shot close signal carrying a cause.
package closuresignaler

import (
	"context"
	"sync"

	"github.com/xaionaro-go/comparemixer/logger"
)

type ClosureSignaler struct {
	closeOnce sync.Once
	c         chan struct{}
	err       error
}

func New() *ClosureSignaler {
	return &ClosureSignaler{
		c: make(chan struct{}),
	}
}

func (c *ClosureSignaler) CloseChan() <-chan struct{} {
	return c.c
}

// Close signals the closure; only the cause of the first call is kept.
// It reports whether this call closed the signaler.
func (c *ClosureSignaler) Close(ctx context.Context, cause error) bool {
	closed := false
	c.closeOnce.Do(func() {
		logger.Debugf(ctx, "closing: %v", cause)
		c.err = cause
		close(c.c)
		closed = true
	})
	return closed
}

func (c *ClosureSignaler) IsClosed() bool {
	select {
	case <-c.c:
		return true
	default:
		return false
	}
}

// Err returns the cause passed to Close, or nil if it is not closed yet.
func (c *ClosureSignaler) Err() error {
	if !c.IsClosed() {
		return nil
	}
	return c.err
}

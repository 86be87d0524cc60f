package logger

import (
	"context"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
)

func FromCtx(ctx context.Context) Logger {
	return logger.FromCtx(ctx)
}

func CtxWithLogger(ctx context.Context, l Logger) context.Context {
	return logger.CtxWithLogger(ctx, l)
}

// CtxWithStreamID tags every following log entry with the stream identifier.
func CtxWithStreamID(ctx context.Context, streamID any) context.Context {
	return belt.WithField(ctx, "stream_id", streamID)
}

package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// CallIDKey is the outgoing metadata key that carries the per-call id.
const CallIDKey = "x-render-call-id"

// LoggingMiddleware logs one entry per call: debug on success, warn on failure.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)

		fields := []zap.Field{
			zap.String("method", method),
			zap.Duration("duration", time.Since(start)),
			zap.Stringer("code", status.Code(err)),
		}
		if md, ok := metadata.FromOutgoingContext(ctx); ok {
			if ids := md.Get(CallIDKey); len(ids) > 0 {
				fields = append(fields, zap.String("call_id", ids[0]))
			}
		}
		if err != nil {
			logger.Warn("rpc failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("rpc", fields...)
		}
		return err
	}
}

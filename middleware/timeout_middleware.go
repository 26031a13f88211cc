package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

// TimeOutMiddleware bounds every call on the channel. A non-positive timeout
// disables it. An earlier deadline already on ctx wins.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if timeout <= 0 {
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

package middleware

import (
	"context"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RateLimitMiddleware is a token bucket shared by every call on the channel.
// Calls over the limit fail locally with ResourceExhausted instead of queueing.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if !limiter.Allow() {
			return status.Errorf(codes.ResourceExhausted, "rate limit exceeded for %s", method)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

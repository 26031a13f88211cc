// Package middleware provides client-side gRPC interceptors that are configured
// once per channel. None of them retries: a failed call surfaces exactly once.
package middleware

import (
	"context"

	"google.golang.org/grpc"
)

type Middleware = grpc.UnaryClientInterceptor

// Chain composes middlewares into one; the first one is outermost.
//
//	Chain(A, B, C) → A.before → B.before → C.before → invoker → C.after → B.after → A.after
func Chain(middlewares ...Middleware) Middleware {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		next := invoker
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = bind(middlewares[i], next)
		}
		return next(ctx, method, req, reply, cc, opts...)
	}
}

func bind(mw Middleware, next grpc.UnaryInvoker) grpc.UnaryInvoker {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return mw(ctx, method, req, reply, cc, next, opts...)
	}
}

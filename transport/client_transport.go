// Package transport owns the gRPC channel to a render host.
//
// One ClientTransport multiplexes every concurrent unary call over a single
// HTTP/2 connection; opt-in keepalive pings take the place of heartbeat frames:
//
//	goroutine-1 ──Invoke──┐
//	goroutine-2 ──Invoke──┼──→ *grpc.ClientConn (HTTP/2 streams) ──→ render host
//	goroutine-3 ──Invoke──┘
//
// Timeouts, rate limits and logging are installed here once, as interceptors,
// so every call on the channel shares the same policy.
package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"

	"renderlink/codec"
	"renderlink/middleware"
)

// Options configure a ClientTransport.
type Options struct {
	Codec        codec.CodecType
	Interceptors []middleware.Middleware
	// Headers are sent with every call on the channel.
	Headers map[string]string
	// Heartbeat is the keepalive ping interval. Zero sends no pings. A stock
	// gRPC server rejects pings more often than every 5m with too_many_pings,
	// so a non-zero value must be permitted by the host's enforcement policy.
	Heartbeat time.Duration
	// Dialer replaces the TCP dialer, for in-memory listeners.
	Dialer func(ctx context.Context, addr string) (net.Conn, error)
}

// ClientTransport is a thread-safe channel to one render host address.
type ClientTransport struct {
	conn    *grpc.ClientConn
	addr    string
	codec   codec.Codec
	headers metadata.MD
}

// NewClientTransport creates the channel. Connecting is lazy: the first call
// dials, and a host that is down surfaces as an Unavailable call status.
func NewClientTransport(addr string, opts Options) (*ClientTransport, error) {
	cdc := codec.GetCodec(opts.Codec)

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(cdc.Name())),
	}
	if kp, ok := keepaliveParams(opts.Heartbeat); ok {
		dialOpts = append(dialOpts, grpc.WithKeepaliveParams(kp))
	}
	if len(opts.Interceptors) > 0 {
		dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(middleware.Chain(opts.Interceptors...)))
	}
	if opts.Dialer != nil {
		dialOpts = append(dialOpts, grpc.WithContextDialer(opts.Dialer))
	}

	conn, err := grpc.NewClient(target(addr), dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	headers := metadata.MD{}
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}
	return &ClientTransport{
		conn:    conn,
		addr:    addr,
		codec:   cdc,
		headers: headers,
	}, nil
}

// keepaliveParams turns a heartbeat interval into ping parameters. Pings are
// only sent while calls are in flight.
func keepaliveParams(heartbeat time.Duration) (keepalive.ClientParameters, bool) {
	if heartbeat <= 0 {
		return keepalive.ClientParameters{}, false
	}
	return keepalive.ClientParameters{
		Time:                heartbeat,
		Timeout:             heartbeat / 3,
		PermitWithoutStream: false,
	}, true
}

// target leaves explicit resolver URIs alone and sends plain host:port
// addresses straight to the dialer.
func target(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "passthrough:///" + addr
}

// Invoke performs one unary call. It never retries.
func (t *ClientTransport) Invoke(ctx context.Context, method string, req, reply any) error {
	return t.conn.Invoke(ctx, method, req, reply)
}

// Headers returns a copy of the static per-channel headers.
func (t *ClientTransport) Headers() metadata.MD {
	return t.headers.Copy()
}

func (t *ClientTransport) Addr() string {
	return t.addr
}

func (t *ClientTransport) Codec() codec.Codec {
	return t.codec
}

// Conn returns the underlying channel.
func (t *ClientTransport) Conn() *grpc.ClientConn {
	return t.conn
}

func (t *ClientTransport) Close() error {
	return t.conn.Close()
}

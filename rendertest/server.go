// Package rendertest runs an in-process render host for tests.
//
// The host serves the forward render services over real gRPC against an
// in-memory object table and calls back into a client's callback endpoint the
// way a real host does during imports and project events.
//
//	client ──create/getPinValue/…──▶ Host ──▶ object table
//	client ──importFromStream──────▶ Host ──nextChunk*/assetMissing*──▶ client callback endpoint
package rendertest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"renderlink/codec"
	"renderlink/message"
	"renderlink/registry"
	"renderlink/transport"
)

// Call is one request the host received.
type Call struct {
	Method   string
	Metadata metadata.MD
}

// Host is a fake render host. The zero value is not usable; call NewHost.
type Host struct {
	logger *zap.Logger
	codec  codec.CodecType

	mu             sync.Mutex
	objects        map[uint64]*object
	nextHandle     uint64
	callbacks      map[int32]hostCallback
	nextCallbackID int32
	missingAssets  []MissingAsset
	imports        [][]byte
	evaluations    int
	corruptValues  bool
	failures       map[string]*status.Status
	calls          []Call
	sources        map[string]*transport.ClientTransport

	interceptors []grpc.UnaryServerInterceptor
	server       *grpc.Server
	listener     net.Listener
	registry     registry.Registry
	service      string
	advertise    string
	served       chan error
}

type Option func(*Host)

func WithLogger(l *zap.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// WithService sets the service name announced to the registry.
func WithService(name string) Option {
	return func(h *Host) { h.service = name }
}

// WithCallbackCodec selects the codec the host calls back with.
func WithCallbackCodec(ct codec.CodecType) Option {
	return func(h *Host) { h.codec = ct }
}

func NewHost(opts ...Option) *Host {
	h := &Host{
		logger:         zap.NewNop(),
		objects:        make(map[uint64]*object),
		nextHandle:     1,
		callbacks:      make(map[int32]hostCallback),
		nextCallbackID: 1,
		failures:       make(map[string]*status.Status),
		sources:        make(map[string]*transport.ClientTransport),
		service:        registry.DefaultService,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Use registers a server interceptor. Interceptors run in the order added,
// after the host's own recording and failure injection.
func (h *Host) Use(mw grpc.UnaryServerInterceptor) {
	h.interceptors = append(h.interceptors, mw)
}

// Start listens on address and serves in the background. It returns the
// address clients should dial.
func (h *Host) Start(address string, reg registry.Registry) (string, error) {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return "", err
	}
	addr := lis.Addr().String()
	if err := h.serve(lis, addr, reg); err != nil {
		lis.Close()
		return "", err
	}
	return addr, nil
}

// Serve serves on lis in the background. When reg is non-nil the host
// announces advertiseAddr there until Shutdown.
func (h *Host) Serve(lis net.Listener, advertiseAddr string, reg registry.Registry) error {
	return h.serve(lis, advertiseAddr, reg)
}

func (h *Host) serve(lis net.Listener, advertiseAddr string, reg registry.Registry) error {
	if h.server != nil {
		return errors.New("rendertest: host already serving")
	}

	chain := append([]grpc.UnaryServerInterceptor{h.record}, h.interceptors...)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(chain...))
	message.RegisterApiNodeServer(srv, h)
	message.RegisterApiNodeGraphServer(srv, h)
	message.RegisterApiCallbacksServer(srv, h)
	message.RegisterApiProjectManagerServer(srv, h)

	if reg != nil {
		err := reg.Register(context.Background(), h.service, registry.ServiceInstance{
			Addr:    advertiseAddr,
			Weight:  10,
			Version: "rendertest",
		}, 10)
		if err != nil {
			return fmt.Errorf("rendertest: announce: %w", err)
		}
	}

	h.server = srv
	h.listener = lis
	h.registry = reg
	h.advertise = advertiseAddr
	h.served = make(chan error, 1)
	go func() {
		h.served <- srv.Serve(lis)
	}()
	return nil
}

// Shutdown withdraws the host from the registry first, so no new client picks
// it, then waits for in-flight calls up to timeout before forcing the stop.
func (h *Host) Shutdown(timeout time.Duration) error {
	if h.server == nil {
		return nil
	}
	var errs []error
	if h.registry != nil {
		if err := h.registry.Deregister(context.Background(), h.service, h.advertise); err != nil {
			errs = append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		h.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		h.server.Stop()
		errs = append(errs, errors.New("rendertest: timeout waiting for in-flight calls"))
	}
	<-h.served
	h.server = nil

	h.mu.Lock()
	for src, t := range h.sources {
		t.Close()
		delete(h.sources, src)
	}
	h.mu.Unlock()
	return errors.Join(errs...)
}

// record keeps every call and returns any injected failure for it.
func (h *Host) record(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	h.mu.Lock()
	h.calls = append(h.calls, Call{Method: info.FullMethod, Metadata: md.Copy()})
	st, fail := h.failures[info.FullMethod]
	delete(h.failures, info.FullMethod)
	h.mu.Unlock()

	h.logger.Debug("rendertest call", zap.String("method", info.FullMethod))
	if fail {
		return nil, st.Err()
	}
	return handler(ctx, req)
}

// FailNext makes the next call of method fail with code and msg.
func (h *Host) FailNext(method string, code codes.Code, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[method] = status.New(code, msg)
}

// Calls returns the calls received so far.
func (h *Host) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Call(nil), h.calls...)
}

// callbackConn returns a cached channel to a client's callback endpoint.
func (h *Host) callbackConn(source string) (*transport.ClientTransport, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.sources[source]; ok {
		return t, nil
	}
	t, err := transport.NewClientTransport(source, transport.Options{Codec: h.codec})
	if err != nil {
		return nil, err
	}
	h.sources[source] = t
	return t, nil
}

// Deliver sends an arbitrary inbound callback to source, as a host would.
func (h *Host) Deliver(ctx context.Context, source, method string, req, resp any) error {
	t, err := h.callbackConn(source)
	if err != nil {
		return err
	}
	return t.Invoke(ctx, method, req, resp)
}

// Addr is the address the host listens on.
func (h *Host) Addr() string {
	return h.listener.Addr().String()
}

package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	_ "renderlink/codec"
	"renderlink/message"
)

var (
	ErrBridgeNotStarted = errors.New("callback: bridge not started")
	ErrBridgeStarted    = errors.New("callback: bridge already started")
)

// IssueFunc performs the triggering RPC, carrying source, and returns the
// callback id the host issued.
type IssueFunc func(ctx context.Context, source string) (int32, error)

// ReleaseFunc hands an issued id back to the host. Register calls it when the
// host issued an id the client cannot store.
type ReleaseFunc func(ctx context.Context, id int32) error

// Bridge owns the registry and the client's inbound callback endpoint.
type Bridge struct {
	registry *Registry
	logger   *zap.Logger

	mu     sync.Mutex
	server *grpc.Server
	source string
	served chan error
}

// NewBridge returns a bridge that is not yet serving. A nil logger discards output.
func NewBridge(logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		registry: NewRegistry(),
		logger:   logger.Named("callback"),
	}
}

// Start listens on address ("127.0.0.1:0" picks a free port) and serves the
// callback endpoint.
func (b *Bridge) Start(address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("callback: listen %s: %w", address, err)
	}
	if err := b.Serve(lis); err != nil {
		lis.Close()
		return err
	}
	return nil
}

// Serve serves the callback endpoint on lis. The listener address becomes the
// callback-source token.
func (b *Bridge) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.server != nil {
		return ErrBridgeStarted
	}

	opts = append([]grpc.ServerOption{
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: 10 * time.Second}),
	}, opts...)
	srv := grpc.NewServer(opts...)
	message.RegisterCallbackHandlerServer(srv, &handler{bridge: b})
	b.server = srv
	b.source = lis.Addr().String()
	b.served = make(chan error, 1)

	go func(done chan<- error) {
		done <- srv.Serve(lis)
	}(b.served)

	b.logger.Debug("callback endpoint serving", zap.String("source", b.source))
	return nil
}

// Close stops the endpoint, waits for in-flight callbacks and clears the registry.
func (b *Bridge) Close() error {
	b.mu.Lock()
	srv, served := b.server, b.served
	b.server, b.served = nil, nil
	b.mu.Unlock()

	b.registry.Clear(true)
	if srv == nil {
		return nil
	}
	srv.GracefulStop()
	if err := <-served; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("callback: serve: %w", err)
	}
	return nil
}

// Source returns the callback-source token that identifies this client to the host.
func (b *Bridge) Source() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.server == nil {
		return "", ErrBridgeNotStarted
	}
	return b.source, nil
}

// Register runs issue inside a registration window and stores the returned id.
// No inbound callback for that id can be dispatched before it is stored.
// If the id cannot be stored, release (when non-nil) returns it to the host.
func (b *Bridge) Register(ctx context.Context, kind Kind, fn any, userData any, issue IssueFunc, release ReleaseFunc) (Registration, error) {
	if err := checkFn(kind, fn); err != nil {
		return Registration{}, err
	}
	source, err := b.Source()
	if err != nil {
		return Registration{}, err
	}

	end := b.registry.Begin()
	defer end()

	id, err := issue(ctx, source)
	if err != nil {
		return Registration{}, err
	}
	reg, err := b.registry.Register(Registration{
		ID:       id,
		Kind:     kind,
		Fn:       fn,
		UserData: userData,
		Source:   source,
	})
	if err != nil && id != 0 && release != nil {
		err = multierr.Append(err, release(context.WithoutCancel(ctx), id))
	}
	return reg, err
}

func (b *Bridge) Lookup(id int32) (Registration, error) {
	return b.registry.Lookup(id)
}

func (b *Bridge) Unregister(id int32) bool {
	return b.registry.Unregister(id)
}

// UnregisterGeneration removes id only while it still holds registration gen.
func (b *Bridge) UnregisterGeneration(id int32, gen uint64) bool {
	return b.registry.UnregisterGeneration(id, gen)
}

func (b *Bridge) Registry() *Registry {
	return b.registry
}

// dispatch resolves an inbound id. Protocol defects are logged and returned as
// gRPC statuses so the host sees them too.
func (b *Bridge) dispatch(method string, id int32, kind Kind) (Registration, error) {
	reg, err := b.registry.Lookup(id)
	if err != nil {
		b.logger.Error("inbound callback for unknown id",
			zap.String("method", method),
			zap.Int32("callback_id", id),
			zap.Error(err))
		return Registration{}, status.Errorf(codes.NotFound, "unknown callback id %d", id)
	}
	if reg.Kind != kind {
		b.logger.Error("inbound callback kind mismatch",
			zap.String("method", method),
			zap.Int32("callback_id", id),
			zap.Stringer("registered", reg.Kind),
			zap.Stringer("delivered", kind))
		return Registration{}, status.Errorf(codes.FailedPrecondition,
			"callback id %d is registered as %s, not %s", id, reg.Kind, kind)
	}
	return reg, nil
}

type handler struct {
	bridge *Bridge
}

func (h *handler) AssetMissing(ctx context.Context, req *message.AssetMissingRequest) (*message.Empty, error) {
	reg, err := h.bridge.dispatch(message.CallbackHandlerAssetMissing, req.CallbackId, KindAssetMissing)
	if err != nil {
		return nil, err
	}
	reg.Fn.(AssetMissingFunc)(ctx, AssetMissing{
		Item:     req.Item,
		Package:  req.Package,
		FileName: req.FileName,
	}, reg.UserData)
	return &message.Empty{}, nil
}

func (h *handler) NextChunk(ctx context.Context, req *message.NextChunkRequest) (*message.NextChunkResponse, error) {
	reg, err := h.bridge.dispatch(message.CallbackHandlerNextChunk, req.CallbackId, KindNextChunk)
	if err != nil {
		return nil, err
	}
	data, err := reg.Fn.(NextChunkFunc)(ctx, reg.UserData)
	if err != nil {
		return nil, status.Errorf(codes.Aborted, "next chunk %d: %v", req.CallbackId, err)
	}
	return &message.NextChunkResponse{Data: data}, nil
}

func (h *handler) ProjectChanged(ctx context.Context, req *message.ProjectChangedRequest) (*message.Empty, error) {
	reg, err := h.bridge.dispatch(message.CallbackHandlerProjectChanged, req.CallbackId, KindProjectChanged)
	if err != nil {
		return nil, err
	}
	reg.Fn.(ProjectChangedFunc)(ctx, req.Event, req.ProjectPath, reg.UserData)
	return &message.Empty{}, nil
}

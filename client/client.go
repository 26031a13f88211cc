// Package client is the RPC invoker every generated wrapper calls through.
//
// A Client owns one channel to one render host and the callback endpoint that
// host calls back into. Both live and die together:
//
//	Dial:  resolve host (static or etcd + balancer) → open channel → start callback endpoint → watch host
//	Close: stop watch → stop callback endpoint (clears registrations) → close channel → close registry
//
// Invoke blocks for exactly one unary call. Each call gets a fresh context and
// fresh outgoing metadata; nothing from a previous call leaks into the next.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"

	"renderlink/callback"
	"renderlink/codec"
	"renderlink/config"
	"renderlink/loadbalance"
	"renderlink/logger"
	"renderlink/middleware"
	"renderlink/registry"
	"renderlink/transport"
)

// ClientIDKey is the static header that names the client session.
const ClientIDKey = "x-render-client-id"

type Client struct {
	id        string
	instance  registry.ServiceInstance
	transport *transport.ClientTransport
	bridge    *callback.Bridge
	logger    *zap.Logger

	ownedRegistry *registry.EtcdRegistry
	discovery     registry.Registry
	service       string

	withdrawn chan struct{}
	stopWatch context.CancelFunc
	watchDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

type options struct {
	logger           *zap.Logger
	registry         registry.Registry
	dialer           func(ctx context.Context, addr string) (net.Conn, error)
	callbackListener net.Listener
	interceptors     []middleware.Middleware
}

type Option func(*options)

// WithLogger sets the logger for callback defects and, when cfg.Logging.Calls
// is set, the logging interceptor.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry discovers the host through reg instead of etcd.
func WithRegistry(reg registry.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithDialer replaces the channel's TCP dialer.
func WithDialer(d func(ctx context.Context, addr string) (net.Conn, error)) Option {
	return func(o *options) { o.dialer = d }
}

// WithCallbackListener serves the callback endpoint on lis instead of
// listening on the configured address.
func WithCallbackListener(lis net.Listener) Option {
	return func(o *options) { o.callbackListener = lis }
}

// WithInterceptors appends channel-wide interceptors after the configured ones.
func WithInterceptors(mws ...middleware.Middleware) Option {
	return func(o *options) { o.interceptors = append(o.interceptors, mws...) }
}

// Dial connects to a render host as described by cfg. A nil cfg is read
// from the environment. Without WithLogger the logger follows cfg.Logging.
func Dial(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		var err error
		if cfg, err = config.FromEnv(); err != nil {
			return nil, err
		}
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		l, err := logger.New(cfg.Logging)
		if err != nil {
			return nil, err
		}
		o.logger = l
	}

	c := &Client{id: cfg.ClientID, logger: o.logger}
	if c.id == "" {
		c.id = uuid.NewString()
	}

	instance, err := c.resolve(ctx, cfg, &o)
	if err != nil {
		return nil, multierr.Append(err, c.closeRegistry())
	}
	c.instance = instance

	var interceptors []middleware.Middleware
	if cfg.Logging.Calls {
		interceptors = append(interceptors, middleware.LoggingMiddleware(o.logger))
	}
	interceptors = append(interceptors, middleware.TimeOutMiddleware(cfg.Timeout.Std()))
	if cfg.RateLimit.PerSecond > 0 {
		interceptors = append(interceptors, middleware.RateLimitMiddleware(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst))
	}
	interceptors = append(interceptors, o.interceptors...)

	headers := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	headers[ClientIDKey] = c.id

	c.transport, err = transport.NewClientTransport(instance.Addr, transport.Options{
		Codec:        codec.CodecType(cfg.Codec),
		Interceptors: interceptors,
		Headers:      headers,
		Heartbeat:    cfg.Heartbeat.Std(),
		Dialer:       o.dialer,
	})
	if err != nil {
		return nil, multierr.Append(err, c.closeRegistry())
	}

	c.bridge = callback.NewBridge(o.logger)
	if o.callbackListener != nil {
		err = c.bridge.Serve(o.callbackListener)
	} else {
		err = c.bridge.Start(cfg.Callback.ListenAddress)
	}
	if err != nil {
		return nil, multierr.Combine(err, c.transport.Close(), c.closeRegistry())
	}

	c.watch()

	source, _ := c.bridge.Source()
	o.logger.Debug("render client connected",
		zap.String("client_id", c.id),
		zap.String("host", instance.Addr),
		zap.String("callback_source", source))
	return c, nil
}

// resolve picks the host address: a fixed address, or one discovered
// instance chosen by the configured balancer with the client id as key.
func (c *Client) resolve(ctx context.Context, cfg *config.Config, o *options) (registry.ServiceInstance, error) {
	disc := cfg.Endpoint.Discovery
	reg := o.registry
	if reg == nil && !disc.Enabled {
		return registry.ServiceInstance{Addr: cfg.Endpoint.Address}, nil
	}
	if reg == nil {
		etcd, err := registry.NewEtcdRegistry(disc.Endpoints, disc.DialTimeout.Std())
		if err != nil {
			return registry.ServiceInstance{}, err
		}
		c.ownedRegistry = etcd
		reg = etcd
	}

	service := disc.Service
	if service == "" {
		service = registry.DefaultService
	}
	c.discovery, c.service = reg, service
	instances, err := reg.Discover(ctx, service)
	if err != nil {
		return registry.ServiceInstance{}, err
	}
	bal, err := loadbalance.New(disc.Balancer)
	if err != nil {
		return registry.ServiceInstance{}, err
	}
	inst, err := bal.Pick(c.id, instances)
	if err != nil {
		return registry.ServiceInstance{}, fmt.Errorf("client: pick %s host: %w", service, err)
	}
	return *inst, nil
}

// watch closes withdrawn once the bound host leaves the discovered service.
// A fixed-address client has nothing to watch.
func (c *Client) watch() {
	if c.discovery == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.stopWatch = cancel
	c.withdrawn = make(chan struct{})
	c.watchDone = make(chan struct{})
	updates := c.discovery.Watch(ctx, c.service)

	go func() {
		defer close(c.watchDone)
		for instances := range updates {
			if !containsAddr(instances, c.instance.Addr) {
				c.logger.Warn("render host withdrawn",
					zap.String("client_id", c.id),
					zap.String("host", c.instance.Addr),
					zap.String("service", c.service))
				close(c.withdrawn)
				return
			}
		}
	}()
}

func containsAddr(instances []registry.ServiceInstance, addr string) bool {
	for _, inst := range instances {
		if inst.Addr == addr {
			return true
		}
	}
	return false
}

func (c *Client) closeRegistry() error {
	if c.ownedRegistry == nil {
		return nil
	}
	return c.ownedRegistry.Close()
}

// Invoke performs exactly one unary call of method and classifies it.
// resp is filled in place; it is only meaningful when the outcome is not an error.
func (c *Client) Invoke(ctx context.Context, method string, req, resp any) Outcome {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	md := c.transport.Headers()
	md.Set(middleware.CallIDKey, uuid.NewString())
	callCtx = metadata.NewOutgoingContext(callCtx, md)

	return Classify(c.transport.Invoke(callCtx, method, req, resp), resp)
}

// Close stops the callback endpoint and closes the channel. It is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.stopWatch != nil {
			c.stopWatch()
			<-c.watchDone
		}
		c.closeErr = multierr.Combine(
			c.bridge.Close(),
			c.transport.Close(),
			c.closeRegistry(),
		)
	})
	return c.closeErr
}

// Bridge returns the callback bridge wrappers register callbacks with.
func (c *Client) Bridge() *callback.Bridge {
	return c.bridge
}

// ID is the session key sent with every call.
func (c *Client) ID() string {
	return c.id
}

// Instance is the render host this client is bound to.
func (c *Client) Instance() registry.ServiceInstance {
	return c.instance
}

// Withdrawn is closed when a discovered host deregisters. Calls keep going to
// that host; redial to pick another. It is nil for a fixed address.
func (c *Client) Withdrawn() <-chan struct{} {
	return c.withdrawn
}

func (c *Client) Logger() *zap.Logger {
	return c.logger
}

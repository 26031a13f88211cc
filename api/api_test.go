package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"renderlink/client"
	"renderlink/config"
	"renderlink/handle"
	"renderlink/message"
	"renderlink/rendertest"
)

func setup(t *testing.T, opts ...rendertest.Option) (*rendertest.Host, *client.Client) {
	t.Helper()
	host := rendertest.NewHost(opts...)
	addr, err := host.Start("127.0.0.1:0", nil)
	require.NoError(t, err)

	cfg := config.NewConfig()
	cfg.Endpoint.Address = addr
	c, err := client.Dial(context.Background(), cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		c.Close()
		host.Shutdown(time.Second)
	})
	return host, c
}

func TestCreate(t *testing.T) {
	host, c := setup(t)
	ctx := context.Background()

	graph, err := CreateNodeGraph(ctx, c, handle.Proxy{})
	require.NoError(t, err)
	require.False(t, graph.IsNull())
	assert.Equal(t, message.ObjectTypeNodeGraph, graph.Tag())

	node, err := CreateNode(ctx, c, graph.Proxy)
	require.NoError(t, err)
	require.False(t, node.IsNull())
	assert.True(t, host.Exists(uint64(node.Handle())))
}

func TestCreateWithDeadOwnerIsNull(t *testing.T) {
	_, c := setup(t)
	ctx := context.Background()

	graph, err := CreateNodeGraph(ctx, c, handle.Proxy{})
	require.NoError(t, err)
	stale := graph.Proxy
	require.NoError(t, destroy(ctx, c, graph.Proxy))

	node, err := CreateNode(ctx, c, stale)
	require.NoError(t, err, "a refused create is not an error")
	assert.True(t, node.IsNull())
	assert.Equal(t, message.ObjectTypeNode, node.Tag())
}

func TestCreateRejectedType(t *testing.T) {
	_, c := setup(t)

	_, err := Create(context.Background(), c, message.ObjectTypeItemArray, handle.Proxy{})
	require.ErrorIs(t, err, client.ErrInvalidArgument)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func destroy(ctx context.Context, c *client.Client, p handle.Proxy) error {
	return c.Invoke(ctx, message.ApiNodeDestroy, &message.ObjectRequest{Object: p.Ref()}, new(message.Empty)).Err
}

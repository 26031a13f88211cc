package rendertest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"renderlink/message"
	"renderlink/registry"
)

func TestObjectTable(t *testing.T) {
	h := NewHost()
	ctx := context.Background()

	graph, err := h.Create(ctx, &message.CreateRequest{Type: message.ObjectTypeNodeGraph})
	require.NoError(t, err)
	node, err := h.Create(ctx, &message.CreateRequest{Type: message.ObjectTypeNode, Owner: graph.Result})
	require.NoError(t, err)
	require.True(t, h.Exists(node.Result.Handle))

	_, err = h.Destroy(ctx, &message.ObjectRequest{Object: graph.Result})
	require.NoError(t, err)
	assert.False(t, h.Exists(graph.Result.Handle))
	assert.False(t, h.Exists(node.Result.Handle), "owned objects go with their owner")

	_, err = h.Destroy(ctx, &message.ObjectRequest{Object: graph.Result})
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = h.Destroy(ctx, &message.ObjectRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestPinAddressMustBeExclusive(t *testing.T) {
	h := NewHost()
	ctx := context.Background()
	node, err := h.Create(ctx, &message.CreateRequest{Type: message.ObjectTypeNode})
	require.NoError(t, err)

	id, name := PinLabel, "label"
	_, err = h.GetPinValue(ctx, &message.GetPinValueRequest{
		Object:  node.Result,
		Address: message.PinAddress{PinId: &id, Name: &name},
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = h.GetPinValue(ctx, &message.GetPinValueRequest{Object: node.Result})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCallbackIDsSkipLiveOnes(t *testing.T) {
	h := NewHost()
	ctx := context.Background()
	h.SetNextCallbackID(5)

	req := &message.RegisterCallbackRequest{Kind: message.CallbackKindNextChunk, CallbackSource: "127.0.0.1:1"}
	first, err := h.RegisterCallback(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int32(5), first.CallbackId)

	h.SetNextCallbackID(5)
	second, err := h.RegisterCallback(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int32(6), second.CallbackId)

	removed, err := h.RemoveCallback(ctx, &message.RemoveCallbackRequest{CallbackId: 5})
	require.NoError(t, err)
	assert.True(t, removed.Result)
	assert.Equal(t, 1, h.Callbacks())

	_, err = h.RegisterCallback(ctx, &message.RegisterCallbackRequest{Kind: message.CallbackKindNextChunk})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAnnouncesToRegistry(t *testing.T) {
	reg := registry.NewStaticRegistry(registry.DefaultService)
	h := NewHost()
	addr, err := h.Start("127.0.0.1:0", reg)
	require.NoError(t, err)
	assert.Equal(t, addr, h.Addr())

	instances, err := reg.Discover(context.Background(), registry.DefaultService)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, addr, instances[0].Addr)

	require.NoError(t, h.Shutdown(time.Second))
	instances, err = reg.Discover(context.Background(), registry.DefaultService)
	require.NoError(t, err)
	assert.Empty(t, instances)
	require.NoError(t, h.Shutdown(time.Second))
}

package api

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"renderlink/address"
	"renderlink/callback"
	"renderlink/client"
	"renderlink/handle"
	"renderlink/message"
	"renderlink/rendertest"
	"renderlink/value"
)

func newGraph(t *testing.T, c *client.Client) NodeGraph {
	t.Helper()
	g, err := CreateNodeGraph(context.Background(), c, handle.Proxy{})
	require.NoError(t, err)
	require.False(t, g.IsNull())
	return g
}

func TestImportStreamsChunks(t *testing.T) {
	host, c := setup(t)
	ctx := context.Background()
	g := newGraph(t, c)

	payload := bytes.Repeat([]byte("orbx"), 1000)
	root, err := g.Import(ctx, ImportSource{
		FileName:  "scene.orbx",
		Reader:    bytes.NewReader(payload),
		ChunkSize: 333,
	})
	require.NoError(t, err)
	require.False(t, root.IsNull())

	imports := host.Imports()
	require.Len(t, imports, 1)
	assert.Equal(t, payload, imports[0])

	// the imported root is a live node
	_, err = root.GetPinValue(ctx, address.ByID(rendertest.PinEnabled), value.TagBool)
	require.NoError(t, err)

	assert.Zero(t, c.Bridge().Registry().Len())
	assert.Zero(t, host.Callbacks())
}

func TestImportReportsMissingAssets(t *testing.T) {
	host, c := setup(t)
	g := newGraph(t, c)
	host.SetMissingAssets(
		rendertest.MissingAsset{Package: "textures", FileName: "brick.png"},
		rendertest.MissingAsset{Package: "textures", FileName: "moss.png"},
	)

	var (
		mu     sync.Mutex
		assets []callback.AssetMissing
	)
	root, err := g.Import(context.Background(), ImportSource{
		Reader: strings.NewReader("scene data"),
		OnAssetMissing: func(_ context.Context, a callback.AssetMissing) {
			mu.Lock()
			defer mu.Unlock()
			assets = append(assets, a)
		},
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, assets, 2)
	assert.Equal(t, "brick.png", assets[0].FileName)
	assert.Equal(t, "moss.png", assets[1].FileName)
	assert.Equal(t, root.Ref(), assets[0].Item)

	assert.Zero(t, c.Bridge().Registry().Len())
	assert.Zero(t, host.Callbacks())
}

func TestEmptyImportReturnsNullRoot(t *testing.T) {
	host, c := setup(t)
	g := newGraph(t, c)

	root, err := g.Import(context.Background(), ImportSource{Reader: strings.NewReader("")})
	require.NoError(t, err)
	assert.True(t, root.IsNull())
	assert.Zero(t, host.Callbacks())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestImportReaderErrorAbortsTransfer(t *testing.T) {
	host, c := setup(t)
	g := newGraph(t, c)

	_, err := g.Import(context.Background(), ImportSource{Reader: failingReader{}})
	require.ErrorIs(t, err, client.ErrRPCFailure)
	assert.Contains(t, status.Convert(err).Message(), "disk on fire")

	// cleanup still ran
	assert.Zero(t, c.Bridge().Registry().Len())
	assert.Zero(t, host.Callbacks())
}

func TestHostIssuedIDRoutesInbound(t *testing.T) {
	host, c := setup(t)
	ctx := context.Background()
	g := newGraph(t, c)
	host.SetNextCallbackID(42)

	var calls atomic.Int32
	reg, err := c.Bridge().Register(ctx, callback.KindNextChunk,
		callback.NextChunkFunc(func(context.Context, any) ([]byte, error) {
			calls.Add(1)
			return []byte("chunk"), nil
		}), nil, registerWith(c, callback.KindNextChunk, g.Ref()), releaseWith(c))
	require.NoError(t, err)
	require.Equal(t, int32(42), reg.ID)

	source, err := c.Bridge().Source()
	require.NoError(t, err)
	resp := new(message.NextChunkResponse)
	require.NoError(t, host.Deliver(ctx, source, message.CallbackHandlerNextChunk,
		&message.NextChunkRequest{CallbackId: 42}, resp))
	assert.Equal(t, []byte("chunk"), resp.Data)
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, removeCallback(ctx, c, reg))
	_, err = c.Bridge().Lookup(42)
	require.ErrorIs(t, err, callback.ErrUnknownCallbackID)
	assert.Zero(t, host.Callbacks())
}

func TestImportWithoutReader(t *testing.T) {
	_, c := setup(t)
	g := newGraph(t, c)

	_, err := g.Import(context.Background(), ImportSource{})
	require.Error(t, err)
}

func TestUnknownInboundCallback(t *testing.T) {
	host, c := setup(t)
	source, err := c.Bridge().Source()
	require.NoError(t, err)

	err = host.Deliver(context.Background(), source, message.CallbackHandlerNextChunk,
		&message.NextChunkRequest{CallbackId: 77}, new(message.NextChunkResponse))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

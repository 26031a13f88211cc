package api

import (
	"context"
	"errors"
	"io"

	"go.uber.org/multierr"

	"renderlink/callback"
	"renderlink/client"
	"renderlink/handle"
	"renderlink/message"
)

const defaultChunkSize = 64 << 10

// NodeGraph is a proxy for a remote node graph.
type NodeGraph struct {
	handle.Proxy
	c *client.Client
}

func CreateNodeGraph(ctx context.Context, c *client.Client, owner handle.Proxy) (NodeGraph, error) {
	p, err := Create(ctx, c, message.ObjectTypeNodeGraph, owner)
	if err != nil {
		return NodeGraph{}, err
	}
	return NodeGraph{Proxy: p, c: c}, nil
}

// ImportSource is the data streamed into an import.
type ImportSource struct {
	// FileName lets the host pick an importer.
	FileName string
	Reader   io.Reader
	// ChunkSize defaults to 64 KiB.
	ChunkSize int
	// OnAssetMissing, when set, is called once per asset the host cannot resolve.
	OnAssetMissing func(ctx context.Context, asset callback.AssetMissing)
}

type chunkReader struct {
	r   io.Reader
	buf []byte
}

func nextChunk(_ context.Context, userData any) ([]byte, error) {
	cr := userData.(*chunkReader)
	n, err := io.ReadFull(cr.r, cr.buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return append([]byte(nil), cr.buf[:n]...), nil
}

func assetMissing(ctx context.Context, asset callback.AssetMissing, userData any) {
	userData.(func(context.Context, callback.AssetMissing))(ctx, asset)
}

// Import streams src into the graph. The host pulls chunks through a
// one-shot NextChunk callback and reports missing assets through an optional
// AssetMissing callback; both are removed when the call completes, whatever
// its outcome. The returned root node is null when the host reports failure.
func (g NodeGraph) Import(ctx context.Context, src ImportSource) (root Node, err error) {
	if src.Reader == nil {
		return Node{}, errors.New("api: import without a reader")
	}
	size := src.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	bridge := g.c.Bridge()

	chunks, err := bridge.Register(ctx, callback.KindNextChunk, callback.NextChunkFunc(nextChunk),
		&chunkReader{r: src.Reader, buf: make([]byte, size)},
		registerWith(g.c, callback.KindNextChunk, g.Ref()), releaseWith(g.c))
	if err != nil {
		return Node{}, err
	}
	defer func() {
		err = multierr.Append(err, removeCallback(context.WithoutCancel(ctx), g.c, chunks))
	}()

	req := &message.ImportRequest{
		Object:              g.Ref(),
		NextChunkCallbackId: chunks.ID,
		FileName:            src.FileName,
	}
	if src.OnAssetMissing != nil {
		assets, err := bridge.Register(ctx, callback.KindAssetMissing, callback.AssetMissingFunc(assetMissing),
			src.OnAssetMissing, registerWith(g.c, callback.KindAssetMissing, g.Ref()), releaseWith(g.c))
		if err != nil {
			return Node{}, err
		}
		defer func() {
			err = multierr.Append(err, removeCallback(context.WithoutCancel(ctx), g.c, assets))
		}()
		req.AssetMissingCallbackId = assets.ID
	}

	resp := new(message.ImportResponse)
	out := g.c.Invoke(ctx, message.ApiNodeGraphImport, req, resp)
	if out.Err != nil {
		return Node{}, out.Err
	}

	root = Node{Proxy: handle.New(message.ObjectTypeNode), c: g.c}
	if out.Failed() {
		return root, nil
	}
	if err := root.Adopt(resp.Root); err != nil {
		return Node{}, err
	}
	return root, nil
}

// Package api holds hand-written versions of the wrappers a generator emits
// for the render API. Each wrapper resolves its arguments, issues exactly one
// call through client.Client and converts the result: a logical failure comes
// back as a value (false, a null proxy), transport failures as *client.RPCError.
package api

import (
	"context"

	"renderlink/callback"
	"renderlink/client"
	"renderlink/handle"
	"renderlink/message"
)

// Create asks the host for a new object of typ owned by owner, which may be
// null. A host that refuses returns a null proxy and no error.
func Create(ctx context.Context, c *client.Client, typ message.ObjectType, owner handle.Proxy) (handle.Proxy, error) {
	req := &message.CreateRequest{Type: typ, Owner: owner.Ref()}
	resp := new(message.ObjectRefResponse)
	out := c.Invoke(ctx, message.ApiNodeCreate, req, resp)
	if out.Err != nil {
		return handle.Proxy{}, out.Err
	}

	p := handle.New(typ)
	if out.Failed() {
		return p, nil
	}
	if err := p.Adopt(resp.Result); err != nil {
		return handle.Proxy{}, err
	}
	return p, nil
}

// registerWith returns the issue step for callbacks registered through
// ApiCallbacks.registerCallback.
func registerWith(c *client.Client, kind callback.Kind, object message.ObjectRef) callback.IssueFunc {
	return func(ctx context.Context, source string) (int32, error) {
		req := &message.RegisterCallbackRequest{Kind: kind, CallbackSource: source, Object: object}
		resp := new(message.RegisterCallbackResponse)
		if out := c.Invoke(ctx, message.ApiCallbacksRegister, req, resp); out.Err != nil {
			return 0, out.Err
		}
		return resp.CallbackId, nil
	}
}

// releaseWith returns the release step matching registerWith. It only
// touches the host: the client never stored the id.
func releaseWith(c *client.Client) callback.ReleaseFunc {
	return func(ctx context.Context, id int32) error {
		out := c.Invoke(ctx, message.ApiCallbacksRemove, &message.RemoveCallbackRequest{CallbackId: id}, new(message.BoolResponse))
		return out.Err
	}
}

// removeCallback drops reg locally and on the host.
func removeCallback(ctx context.Context, c *client.Client, reg callback.Registration) error {
	c.Bridge().UnregisterGeneration(reg.ID, reg.Generation)
	return releaseWith(c)(ctx, reg.ID)
}

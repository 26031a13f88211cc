package api

import (
	"context"

	"renderlink/address"
	"renderlink/client"
	"renderlink/handle"
	"renderlink/message"
	"renderlink/value"
)

// Node is a proxy for a remote node.
type Node struct {
	handle.Proxy
	c *client.Client
}

// NodeFrom wraps an existing proxy.
func NodeFrom(c *client.Client, p handle.Proxy) Node {
	return Node{Proxy: p, c: c}
}

func CreateNode(ctx context.Context, c *client.Client, owner handle.Proxy) (Node, error) {
	p, err := Create(ctx, c, message.ObjectTypeNode, owner)
	if err != nil {
		return Node{}, err
	}
	return Node{Proxy: p, c: c}, nil
}

// GetPinValue reads a pin. A value of any type but expected is a
// *value.TypeMismatchError.
func (n Node) GetPinValue(ctx context.Context, addr address.Address, expected value.Tag) (value.Value, error) {
	pa, err := address.Resolve(addr)
	if err != nil {
		return nil, err
	}

	req := &message.GetPinValueRequest{Object: n.Ref(), Address: pa, ExpectedType: expected.ValueType()}
	resp := new(message.GetPinValueResponse)
	if out := n.c.Invoke(ctx, message.ApiNodeGetPinValue, req, resp); out.Err != nil {
		return nil, out.Err
	}
	return value.Decode(resp.Value, expected)
}

// SetPinValue writes a pin and reports whether the host accepted the value.
// With evaluate set the host propagates the change before returning.
func (n Node) SetPinValue(ctx context.Context, addr address.Address, v value.Value, evaluate bool) (bool, error) {
	pa, err := address.Resolve(addr)
	if err != nil {
		return false, err
	}
	fields, err := value.Encode(v, evaluate)
	if err != nil {
		return false, err
	}

	req := &message.SetPinValueRequest{
		Object:   n.Ref(),
		Address:  pa,
		Value:    fields.Value,
		Evaluate: fields.Evaluate,
	}
	resp := new(message.BoolResponse)
	out := n.c.Invoke(ctx, message.ApiNodeSetPinValue, req, resp)
	if out.Err != nil {
		return false, out.Err
	}
	return out.OK(), nil
}

func (n Node) GetPinFloat3(ctx context.Context, addr address.Address) (value.Float3, error) {
	v, err := n.GetPinValue(ctx, addr, value.TagFloat3)
	if err != nil {
		return value.Float3{}, err
	}
	return v.(value.Float3), nil
}

func (n Node) SetPinBool(ctx context.Context, addr address.Address, b, evaluate bool) (bool, error) {
	return n.SetPinValue(ctx, addr, value.Bool(b), evaluate)
}

// Destroy deletes the remote node and nulls this proxy. Copies of the proxy
// keep the stale handle.
func (n *Node) Destroy(ctx context.Context) error {
	out := n.c.Invoke(ctx, message.ApiNodeDestroy, &message.ObjectRequest{Object: n.Ref()}, new(message.Empty))
	if out.Err != nil {
		return out.Err
	}
	n.SetNull()
	return nil
}

// Package handle implements the local stand-in for a server-resident object.
//
// A Proxy pairs an opaque 64-bit handle with the remote type tag it was created
// for. It never owns the remote object: dropping, nulling, or re-attaching a
// proxy issues no RPC. Remote lifetime is governed by explicit remote calls
// (destroy, free) or by the host's own object graph.
//
// Proxies carry no lock. Callers that mutate one proxy from several goroutines
// serialize those calls themselves.
package handle

import (
	"errors"
	"fmt"

	"renderlink/message"
)

// ErrTagMismatch reports an ObjectRef whose type tag differs from the proxy's.
// It is a protocol defect, never a recoverable state.
var ErrTagMismatch = errors.New("handle: object type tag mismatch")

// Handle identifies a server-resident object. Zero means "no object".
type Handle uint64

func (h Handle) IsNull() bool {
	return h == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("0x%x", uint64(h))
}

// Proxy is a value type; copying it copies the reference, not the remote object.
type Proxy struct {
	tag    message.ObjectType
	handle Handle
}

// New returns a null proxy for the given remote type.
func New(tag message.ObjectType) Proxy {
	return Proxy{tag: tag}
}

// Attach replaces the handle. Reachability is not checked.
func (p *Proxy) Attach(h Handle) {
	p.handle = h
}

func (p Proxy) Handle() Handle {
	return p.handle
}

func (p Proxy) IsNull() bool {
	return p.handle == 0
}

// SetNull forgets the remote object locally. The remote object is untouched.
func (p *Proxy) SetNull() {
	p.handle = 0
}

func (p Proxy) Tag() message.ObjectType {
	return p.tag
}

// Ref is the identity field sent with every instance-method request.
func (p Proxy) Ref() message.ObjectRef {
	return message.ObjectRef{Type: p.tag, Handle: uint64(p.handle)}
}

// Adopt attaches the handle carried by a received ObjectRef.
// A null ref nulls the proxy regardless of its tag, since hosts report
// "no object" without a type.
func (p *Proxy) Adopt(ref message.ObjectRef) error {
	if ref.Handle == 0 {
		p.handle = 0
		return nil
	}
	if ref.Type != p.tag {
		return fmt.Errorf("%w: proxy is %s, host sent %s", ErrTagMismatch, p.tag, ref.Type)
	}
	p.handle = Handle(ref.Handle)
	return nil
}

func (p Proxy) String() string {
	if p.IsNull() {
		return p.tag.String() + "(null)"
	}
	return p.tag.String() + "(" + p.handle.String() + ")"
}

// Same reports whether two proxies refer to the same remote object. Only the
// handle is compared; the tag is local bookkeeping. Two null proxies are never
// the same object.
func Same(a, b Proxy) bool {
	return !a.IsNull() && a.handle == b.handle
}

// Package callback implements the reverse-RPC callback bridge.
//
// A registration maps a host-issued callback id to a client function and the
// caller's user data. The host later delivers callbacks on a separate inbound
// gRPC endpoint, keyed by that id:
//
//	forward:  client ──registerCallback(source)──▶ host ──id──▶ Registry.Register
//	inbound:  host ──assetMissing/nextChunk/projectChanged(id)──▶ Bridge ──▶ Registry.Lookup ──▶ fn(userData)
//
// Registry is one table guarded by one mutex. Its lifetime is tied to the
// Bridge, which is tied to the client's channel.
package callback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"renderlink/message"
)

// Kind is the callback family a registration belongs to.
type Kind = message.CallbackKind

const (
	KindAssetMissing   = message.CallbackKindAssetMissing
	KindNextChunk      = message.CallbackKindNextChunk
	KindProjectChanged = message.CallbackKindProjectChanged
)

// AssetMissing describes one asset the host could not resolve.
type AssetMissing struct {
	Item     message.ObjectRef
	Package  string
	FileName string
}

// AssetMissingFunc may be called zero or more times for one triggering call.
type AssetMissingFunc func(ctx context.Context, asset AssetMissing, userData any)

// NextChunkFunc returns the next buffer of a transfer. An empty buffer ends it.
type NextChunkFunc func(ctx context.Context, userData any) ([]byte, error)

// ProjectChangedFunc observes project lifecycle events until removed.
type ProjectChangedFunc func(ctx context.Context, event message.ProjectEvent, projectPath string, userData any)

var (
	ErrUnknownCallbackID = errors.New("callback: unknown callback id")
	ErrCallbackIDInUse   = errors.New("callback: callback id already registered")
	ErrInvalidID         = errors.New("callback: host issued no callback id")
	ErrKindMismatch      = errors.New("callback: function does not match callback kind")
	ErrRegistryClosed    = errors.New("callback: registry closed")
)

// UnknownCallbackError reports an id that is not in the registry.
type UnknownCallbackError struct {
	ID int32
}

func (e *UnknownCallbackError) Error() string {
	return fmt.Sprintf("callback: unknown callback id %d", e.ID)
}

func (e *UnknownCallbackError) Is(target error) bool {
	return target == ErrUnknownCallbackID
}

// Registration is one live callback.
type Registration struct {
	ID       int32
	Kind     Kind
	Fn       any
	UserData any
	// Source is the callback-source token sent with the registering call.
	Source string
	// Generation is unique per registration, so two registrations that reuse
	// an id can be told apart.
	Generation uint64
}

// checkFn verifies that fn has the function type for kind.
func checkFn(kind Kind, fn any) error {
	var ok bool
	switch kind {
	case KindAssetMissing:
		f, typed := fn.(AssetMissingFunc)
		ok = typed && f != nil
	case KindNextChunk:
		f, typed := fn.(NextChunkFunc)
		ok = typed && f != nil
	case KindProjectChanged:
		f, typed := fn.(ProjectChangedFunc)
		ok = typed && f != nil
	}
	if !ok {
		return fmt.Errorf("%w: %s got %T", ErrKindMismatch, kind, fn)
	}
	return nil
}

// Registry is the id → Registration table.
//
// Registrations that are still waiting for their id are tracked with Begin.
// A Lookup that misses while any of them is in flight waits until they finish,
// so the host can never observe an id before it is stored.
type Registry struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries map[int32]Registration
	pending int
	gen     uint64
	closed  bool
}

func NewRegistry() *Registry {
	r := &Registry{entries: make(map[int32]Registration)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Begin opens a registration window. The returned func closes it and must
// be called exactly once, after the id has been stored or the attempt failed.
func (r *Registry) Begin() (end func()) {
	r.mu.Lock()
	r.pending++
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.pending--
			r.mu.Unlock()
			r.cond.Broadcast()
		})
	}
}

// Register stores reg under reg.ID and returns it stamped with its generation.
func (r *Registry) Register(reg Registration) (Registration, error) {
	if reg.ID == 0 {
		return Registration{}, ErrInvalidID
	}
	if err := checkFn(reg.Kind, reg.Fn); err != nil {
		return Registration{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Registration{}, ErrRegistryClosed
	}
	if live, ok := r.entries[reg.ID]; ok {
		return Registration{}, fmt.Errorf("%w: id %d (%s, generation %d)", ErrCallbackIDInUse, reg.ID, live.Kind, live.Generation)
	}
	r.gen++
	reg.Generation = r.gen
	r.entries[reg.ID] = reg
	r.cond.Broadcast()
	return reg, nil
}

// Lookup returns the registration for id, or an *UnknownCallbackError.
func (r *Registry) Lookup(id int32) (Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if reg, ok := r.entries[id]; ok {
			return reg, nil
		}
		if r.pending == 0 || r.closed {
			return Registration{}, &UnknownCallbackError{ID: id}
		}
		r.cond.Wait()
	}
}

// Unregister removes id and reports whether it was registered.
func (r *Registry) Unregister(id int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	return ok
}

// UnregisterGeneration removes id only if its live registration carries gen,
// so a holder of a stale registration cannot remove a newer one.
func (r *Registry) UnregisterGeneration(id int32, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	live, ok := r.entries[id]
	if !ok || live.Generation != gen {
		return false
	}
	delete(r.entries, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear drops every registration. When closing is true the registry refuses
// further registrations and wakes any waiting lookups.
func (r *Registry) Clear(closing bool) {
	r.mu.Lock()
	clear(r.entries)
	if closing {
		r.closed = true
	}
	r.mu.Unlock()
	r.cond.Broadcast()
}

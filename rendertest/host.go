package rendertest

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"renderlink/message"
)

type pin struct {
	id    int32
	name  string
	value message.PinValue
}

type object struct {
	typ   message.ObjectType
	owner uint64
	pins  []*pin
}

type hostCallback struct {
	kind   message.CallbackKind
	source string
	object message.ObjectRef
}

// MissingAsset is reported to the client once per import.
type MissingAsset struct {
	Package  string
	FileName string
}

// Node pins, in index order.
const (
	PinEnabled   int32 = 1 // Bool
	PinPosition  int32 = 2 // Float3
	PinAlbedo    int32 = 3 // FilePath
	PinSamples   int32 = 4 // Int
	PinTransform int32 = 5 // Matrix
	PinLabel     int32 = 6 // String
)

func nodePins() []*pin {
	f, i, s := false, int32(0), ""
	identity := message.Matrix{Rows: [4]message.Float4{
		{X: 1}, {Y: 1}, {Z: 1}, {W: 1},
	}}
	return []*pin{
		{id: PinEnabled, name: "enabled", value: message.PinValue{BoolValue: &f}},
		{id: PinPosition, name: "position", value: message.PinValue{Float3Value: &message.Float3{}}},
		{id: PinAlbedo, name: "albedo", value: message.PinValue{FilePathValue: &message.FilePath{}}},
		{id: PinSamples, name: "samples", value: message.PinValue{IntValue: &i}},
		{id: PinTransform, name: "transform", value: message.PinValue{MatrixValue: &identity}},
		{id: PinLabel, name: "label", value: message.PinValue{StringValue: &s}},
	}
}

var creatable = map[message.ObjectType]bool{
	message.ObjectTypeNode:           true,
	message.ObjectTypeNodeGraph:      true,
	message.ObjectTypeRootNodeGraph:  true,
	message.ObjectTypeProjectManager: true,
}

// SetNextCallbackID makes the next issued callback id equal id.
func (h *Host) SetNextCallbackID(id int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextCallbackID = id
}

// SetMissingAssets configures the assets reported during every import.
func (h *Host) SetMissingAssets(assets ...MissingAsset) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.missingAssets = append([]MissingAsset(nil), assets...)
}

// CorruptPinValues makes getPinValue populate a second value field.
func (h *Host) CorruptPinValues(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.corruptValues = on
}

// Imports returns the data received by each completed import.
func (h *Host) Imports() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]byte(nil), h.imports...)
}

// Evaluations counts setPinValue calls that asked for evaluation.
func (h *Host) Evaluations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.evaluations
}

// Callbacks counts callback ids the host still holds.
func (h *Host) Callbacks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.callbacks)
}

// Exists reports whether handle names a live object.
func (h *Host) Exists(handle uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.objects[handle]
	return ok
}

// lookup must be called with h.mu held.
func (h *Host) lookup(ref message.ObjectRef, want ...message.ObjectType) (*object, error) {
	if ref.Handle == 0 {
		return nil, status.Error(codes.InvalidArgument, "null object reference")
	}
	obj, ok := h.objects[ref.Handle]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no object 0x%x", ref.Handle)
	}
	if obj.typ != ref.Type {
		return nil, status.Errorf(codes.InvalidArgument, "object 0x%x is %s, not %s", ref.Handle, obj.typ, ref.Type)
	}
	if len(want) > 0 {
		for _, t := range want {
			if t == obj.typ {
				return obj, nil
			}
		}
		return nil, status.Errorf(codes.InvalidArgument, "object 0x%x is %s", ref.Handle, obj.typ)
	}
	return obj, nil
}

func (o *object) pin(addr message.PinAddress) (*pin, error) {
	set := 0
	for _, p := range []bool{addr.PinId != nil, addr.Name != nil, addr.Index != nil} {
		if p {
			set++
		}
	}
	if set != 1 {
		return nil, status.Errorf(codes.InvalidArgument, "pin address sets %d fields", set)
	}

	switch {
	case addr.PinId != nil:
		for _, p := range o.pins {
			if p.id == *addr.PinId {
				return p, nil
			}
		}
		return nil, status.Errorf(codes.InvalidArgument, "no pin with id %d", *addr.PinId)
	case addr.Name != nil:
		for _, p := range o.pins {
			if p.name == *addr.Name {
				return p, nil
			}
		}
		return nil, status.Errorf(codes.InvalidArgument, "no pin named %q", *addr.Name)
	default:
		if int(*addr.Index) >= len(o.pins) {
			return nil, status.Errorf(codes.InvalidArgument, "pin index %d out of range", *addr.Index)
		}
		return o.pins[*addr.Index], nil
	}
}

func (h *Host) Create(ctx context.Context, req *message.CreateRequest) (*message.ObjectRefResponse, error) {
	if !creatable[req.Type] {
		return nil, status.Errorf(codes.InvalidArgument, "cannot create %s", req.Type)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if req.Owner.Handle != 0 {
		if _, ok := h.objects[req.Owner.Handle]; !ok {
			// an owner that is gone is a failed create, not a bad request
			return &message.ObjectRefResponse{}, nil
		}
	}

	obj := &object{typ: req.Type, owner: req.Owner.Handle}
	if req.Type == message.ObjectTypeNode {
		obj.pins = nodePins()
	}
	handle := h.newObject(obj)
	return &message.ObjectRefResponse{Result: message.ObjectRef{Type: req.Type, Handle: handle}}, nil
}

// newObject must be called with h.mu held.
func (h *Host) newObject(obj *object) uint64 {
	handle := h.nextHandle
	h.nextHandle++
	h.objects[handle] = obj
	return handle
}

func (h *Host) Destroy(ctx context.Context, req *message.ObjectRequest) (*message.Empty, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.lookup(req.Object); err != nil {
		return nil, err
	}
	delete(h.objects, req.Object.Handle)
	for handle, obj := range h.objects {
		if obj.owner == req.Object.Handle {
			delete(h.objects, handle)
		}
	}
	return &message.Empty{}, nil
}

func (h *Host) GetPinValue(ctx context.Context, req *message.GetPinValueRequest) (*message.GetPinValueResponse, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	obj, err := h.lookup(req.Object, message.ObjectTypeNode)
	if err != nil {
		return nil, err
	}
	p, err := obj.pin(req.Address)
	if err != nil {
		return nil, err
	}

	v := p.value
	if h.corruptValues {
		if v.BoolValue != nil {
			one := float32(1)
			v.FloatValue = &one
		} else {
			yes := true
			v.BoolValue = &yes
		}
	}
	return &message.GetPinValueResponse{Value: v}, nil
}

func (h *Host) SetPinValue(ctx context.Context, req *message.SetPinValueRequest) (*message.BoolResponse, error) {
	incoming := req.Value.Populated()
	if len(incoming) != 1 {
		return nil, status.Errorf(codes.InvalidArgument, "value sets %d fields", len(incoming))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	obj, err := h.lookup(req.Object, message.ObjectTypeNode)
	if err != nil {
		return nil, err
	}
	p, err := obj.pin(req.Address)
	if err != nil {
		return nil, err
	}
	if current := p.value.Populated(); current[0] != incoming[0] {
		// pins keep their type; a wrong-typed write is refused, not an error
		return &message.BoolResponse{Result: false}, nil
	}
	p.value = req.Value
	if req.Evaluate {
		h.evaluations++
	}
	return &message.BoolResponse{Result: true}, nil
}

// issue must be called with h.mu held.
func (h *Host) issue(cb hostCallback) int32 {
	id := h.nextCallbackID
	for {
		if _, taken := h.callbacks[id]; !taken && id != 0 {
			break
		}
		id++
	}
	h.nextCallbackID = id + 1
	h.callbacks[id] = cb
	return id
}

func (h *Host) RegisterCallback(ctx context.Context, req *message.RegisterCallbackRequest) (*message.RegisterCallbackResponse, error) {
	switch req.Kind {
	case message.CallbackKindAssetMissing, message.CallbackKindNextChunk, message.CallbackKindProjectChanged:
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown callback kind %s", req.Kind)
	}
	if req.CallbackSource == "" {
		return nil, status.Error(codes.InvalidArgument, "missing callback source")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.issue(hostCallback{kind: req.Kind, source: req.CallbackSource, object: req.Object})
	return &message.RegisterCallbackResponse{CallbackId: id}, nil
}

func (h *Host) RemoveCallback(ctx context.Context, req *message.RemoveCallbackRequest) (*message.BoolResponse, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.callbacks[req.CallbackId]
	delete(h.callbacks, req.CallbackId)
	return &message.BoolResponse{Result: ok}, nil
}

// callback must be called with h.mu held.
func (h *Host) callback(id int32, kind message.CallbackKind) (hostCallback, error) {
	cb, ok := h.callbacks[id]
	if !ok {
		return hostCallback{}, status.Errorf(codes.InvalidArgument, "callback id %d was not registered", id)
	}
	if cb.kind != kind {
		return hostCallback{}, status.Errorf(codes.InvalidArgument, "callback id %d is %s, not %s", id, cb.kind, kind)
	}
	return cb, nil
}

// ImportFromStream pulls chunks from the client until an empty one, reports
// every configured missing asset, and creates a root node for the import.
func (h *Host) ImportFromStream(ctx context.Context, req *message.ImportRequest) (*message.ImportResponse, error) {
	h.mu.Lock()
	_, err := h.lookup(req.Object, message.ObjectTypeNodeGraph, message.ObjectTypeRootNodeGraph)
	var chunkCB, assetCB hostCallback
	if err == nil {
		chunkCB, err = h.callback(req.NextChunkCallbackId, message.CallbackKindNextChunk)
	}
	if err == nil && req.AssetMissingCallbackId != 0 {
		assetCB, err = h.callback(req.AssetMissingCallbackId, message.CallbackKindAssetMissing)
	}
	missing := append([]MissingAsset(nil), h.missingAssets...)
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var data bytes.Buffer
	for {
		resp := new(message.NextChunkResponse)
		err := h.Deliver(ctx, chunkCB.source, message.CallbackHandlerNextChunk,
			&message.NextChunkRequest{CallbackId: req.NextChunkCallbackId}, resp)
		if err != nil {
			return nil, fmt.Errorf("rendertest: next chunk: %w", err)
		}
		if len(resp.Data) == 0 {
			break
		}
		data.Write(resp.Data)
	}

	h.mu.Lock()
	root := h.newObject(&object{typ: message.ObjectTypeNode, owner: req.Object.Handle, pins: nodePins()})
	h.mu.Unlock()

	if req.AssetMissingCallbackId != 0 {
		for _, asset := range missing {
			err := h.Deliver(ctx, assetCB.source, message.CallbackHandlerAssetMissing, &message.AssetMissingRequest{
				CallbackId: req.AssetMissingCallbackId,
				Item:       message.ObjectRef{Type: message.ObjectTypeNode, Handle: root},
				Package:    asset.Package,
				FileName:   asset.FileName,
			}, new(message.Empty))
			if err != nil {
				return nil, fmt.Errorf("rendertest: asset missing: %w", err)
			}
		}
	}

	h.mu.Lock()
	h.imports = append(h.imports, data.Bytes())
	h.mu.Unlock()

	if data.Len() == 0 {
		return &message.ImportResponse{Result: false}, nil
	}
	return &message.ImportResponse{Result: true, Root: message.ObjectRef{Type: message.ObjectTypeNode, Handle: root}}, nil
}

func (h *Host) AddObserver(ctx context.Context, req *message.AddObserverRequest) (*message.RegisterCallbackResponse, error) {
	if req.CallbackSource == "" {
		return nil, status.Error(codes.InvalidArgument, "missing callback source")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.lookup(req.Object, message.ObjectTypeProjectManager); err != nil {
		return nil, err
	}
	id := h.issue(hostCallback{kind: message.CallbackKindProjectChanged, source: req.CallbackSource, object: req.Object})
	return &message.RegisterCallbackResponse{CallbackId: id}, nil
}

func (h *Host) RemoveObserver(ctx context.Context, req *message.RemoveObserverRequest) (*message.BoolResponse, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cb, ok := h.callbacks[req.CallbackId]
	if !ok || cb.kind != message.CallbackKindProjectChanged || cb.object != req.Object {
		return &message.BoolResponse{Result: false}, nil
	}
	delete(h.callbacks, req.CallbackId)
	return &message.BoolResponse{Result: true}, nil
}

// FireProjectEvent notifies every project observer and returns the combined
// delivery errors.
func (h *Host) FireProjectEvent(ctx context.Context, event message.ProjectEvent, projectPath string) error {
	type target struct {
		id     int32
		source string
	}
	h.mu.Lock()
	var targets []target
	for id, cb := range h.callbacks {
		if cb.kind == message.CallbackKindProjectChanged {
			targets = append(targets, target{id, cb.source})
		}
	}
	h.mu.Unlock()

	var errs []error
	for _, t := range targets {
		err := h.Deliver(ctx, t.source, message.CallbackHandlerProjectChanged, &message.ProjectChangedRequest{
			CallbackId:  t.id,
			Event:       event,
			ProjectPath: projectPath,
		}, new(message.Empty))
		if err != nil {
			errs = append(errs, fmt.Errorf("observer %d: %w", t.id, err))
		}
	}
	return errors.Join(errs...)
}

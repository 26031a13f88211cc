package message

import (
	"context"

	"google.golang.org/grpc"
)

// Full method names. Forward services are served by the render host;
// CallbackHandler is served by the client's callback endpoint.
const (
	ApiNodeService           = "render.ApiNode"
	ApiNodeGraphService      = "render.ApiNodeGraph"
	ApiCallbacksService      = "render.ApiCallbacks"
	ApiProjectManagerService = "render.ApiProjectManager"
	CallbackHandlerService   = "render.CallbackHandler"

	ApiNodeGetPinValue = "/render.ApiNode/getPinValue"
	ApiNodeSetPinValue = "/render.ApiNode/setPinValue"
	ApiNodeCreate      = "/render.ApiNode/create"
	ApiNodeDestroy     = "/render.ApiNode/destroy"

	ApiNodeGraphImport = "/render.ApiNodeGraph/importFromStream"

	ApiCallbacksRegister = "/render.ApiCallbacks/registerCallback"
	ApiCallbacksRemove   = "/render.ApiCallbacks/removeCallback"

	ApiProjectManagerAddObserver    = "/render.ApiProjectManager/addObserver"
	ApiProjectManagerRemoveObserver = "/render.ApiProjectManager/removeObserver"

	CallbackHandlerAssetMissing   = "/render.CallbackHandler/assetMissing"
	CallbackHandlerNextChunk      = "/render.CallbackHandler/nextChunk"
	CallbackHandlerProjectChanged = "/render.CallbackHandler/projectChanged"
)

type ApiNodeServer interface {
	GetPinValue(context.Context, *GetPinValueRequest) (*GetPinValueResponse, error)
	SetPinValue(context.Context, *SetPinValueRequest) (*BoolResponse, error)
	Create(context.Context, *CreateRequest) (*ObjectRefResponse, error)
	Destroy(context.Context, *ObjectRequest) (*Empty, error)
}

type ApiNodeGraphServer interface {
	ImportFromStream(context.Context, *ImportRequest) (*ImportResponse, error)
}

type ApiCallbacksServer interface {
	RegisterCallback(context.Context, *RegisterCallbackRequest) (*RegisterCallbackResponse, error)
	RemoveCallback(context.Context, *RemoveCallbackRequest) (*BoolResponse, error)
}

type ApiProjectManagerServer interface {
	AddObserver(context.Context, *AddObserverRequest) (*RegisterCallbackResponse, error)
	RemoveObserver(context.Context, *RemoveObserverRequest) (*BoolResponse, error)
}

type CallbackHandlerServer interface {
	AssetMissing(context.Context, *AssetMissingRequest) (*Empty, error)
	NextChunk(context.Context, *NextChunkRequest) (*NextChunkResponse, error)
	ProjectChanged(context.Context, *ProjectChangedRequest) (*Empty, error)
}

func RegisterApiNodeServer(s grpc.ServiceRegistrar, srv ApiNodeServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: ApiNodeService,
		HandlerType: (*ApiNodeServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "getPinValue", Handler: unary(ApiNodeGetPinValue, ApiNodeServer.GetPinValue)},
			{MethodName: "setPinValue", Handler: unary(ApiNodeSetPinValue, ApiNodeServer.SetPinValue)},
			{MethodName: "create", Handler: unary(ApiNodeCreate, ApiNodeServer.Create)},
			{MethodName: "destroy", Handler: unary(ApiNodeDestroy, ApiNodeServer.Destroy)},
		},
		Metadata: "render/apinode.proto",
	}, srv)
}

func RegisterApiNodeGraphServer(s grpc.ServiceRegistrar, srv ApiNodeGraphServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: ApiNodeGraphService,
		HandlerType: (*ApiNodeGraphServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "importFromStream", Handler: unary(ApiNodeGraphImport, ApiNodeGraphServer.ImportFromStream)},
		},
		Metadata: "render/apinodegraph.proto",
	}, srv)
}

func RegisterApiCallbacksServer(s grpc.ServiceRegistrar, srv ApiCallbacksServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: ApiCallbacksService,
		HandlerType: (*ApiCallbacksServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "registerCallback", Handler: unary(ApiCallbacksRegister, ApiCallbacksServer.RegisterCallback)},
			{MethodName: "removeCallback", Handler: unary(ApiCallbacksRemove, ApiCallbacksServer.RemoveCallback)},
		},
		Metadata: "render/apicallbacks.proto",
	}, srv)
}

func RegisterApiProjectManagerServer(s grpc.ServiceRegistrar, srv ApiProjectManagerServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: ApiProjectManagerService,
		HandlerType: (*ApiProjectManagerServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "addObserver", Handler: unary(ApiProjectManagerAddObserver, ApiProjectManagerServer.AddObserver)},
			{MethodName: "removeObserver", Handler: unary(ApiProjectManagerRemoveObserver, ApiProjectManagerServer.RemoveObserver)},
		},
		Metadata: "render/apiprojectmanager.proto",
	}, srv)
}

func RegisterCallbackHandlerServer(s grpc.ServiceRegistrar, srv CallbackHandlerServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: CallbackHandlerService,
		HandlerType: (*CallbackHandlerServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "assetMissing", Handler: unary(CallbackHandlerAssetMissing, CallbackHandlerServer.AssetMissing)},
			{MethodName: "nextChunk", Handler: unary(CallbackHandlerNextChunk, CallbackHandlerServer.NextChunk)},
			{MethodName: "projectChanged", Handler: unary(CallbackHandlerProjectChanged, CallbackHandlerServer.ProjectChanged)},
		},
		Metadata: "render/callbackhandler.proto",
	}, srv)
}

// unary builds the method handler protoc-gen-go-grpc would emit for one unary method.
func unary[S any, Req any, Resp any](fullMethod string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(S), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

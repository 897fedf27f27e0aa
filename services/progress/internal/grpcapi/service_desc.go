package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "learnerstate.v1.ContentStateService"

const (
	methodUpdate = "/" + ServiceName + "/UpdateContentState"
	methodGet    = "/" + ServiceName + "/GetContentState"
)

// ContentStateServer is the server side of learnerstate.v1.ContentStateService.
// Messages are google.protobuf.Struct so no generated code is needed.
type ContentStateServer interface {
	UpdateContentState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetContentState(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc registers a ContentStateServer with a grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ContentStateServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "UpdateContentState", Handler: unaryHandler(methodUpdate, ContentStateServer.UpdateContentState)},
		{MethodName: "GetContentState", Handler: unaryHandler(methodGet, ContentStateServer.GetContentState)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "learnerstate/v1/content_state.proto",
}

// Register attaches srv to s.
func Register(s grpc.ServiceRegistrar, srv ContentStateServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryMethod func(ContentStateServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ContentStateServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ContentStateServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls ContentStateService over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) UpdateContentState(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodUpdate, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetContentState(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGet, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

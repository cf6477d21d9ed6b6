package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// AdminServiceName is the fully qualified gRPC service name.
const AdminServiceName = "wopihost.admin.AdminService"

// Full method names, as seen by interceptors.
const (
	MethodPrune       = "/" + AdminServiceName + "/Prune"
	MethodForceUnlock = "/" + AdminServiceName + "/ForceUnlock"
	MethodGetLock     = "/" + AdminServiceName + "/GetLock"
	MethodImport      = "/" + AdminServiceName + "/Import"
	MethodRevokeToken = "/" + AdminServiceName + "/RevokeToken"
)

// AdminServer is implemented by the admin service. Messages are
// google.protobuf.Struct so the service needs no generated code.
type AdminServer interface {
	Prune(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ForceUnlock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetLock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Import(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RevokeToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type adminCall func(AdminServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call adminCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AdminServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AdminServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Prune", Handler: unaryHandler(MethodPrune, AdminServer.Prune)},
		{MethodName: "ForceUnlock", Handler: unaryHandler(MethodForceUnlock, AdminServer.ForceUnlock)},
		{MethodName: "GetLock", Handler: unaryHandler(MethodGetLock, AdminServer.GetLock)},
		{MethodName: "Import", Handler: unaryHandler(MethodImport, AdminServer.Import)},
		{MethodName: "RevokeToken", Handler: unaryHandler(MethodRevokeToken, AdminServer.RevokeToken)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "wopihost/admin.proto",
}

// RegisterAdminServer registers srv on s.
func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&adminServiceDesc, srv)
}

// AdminClient is the client side of AdminService.
type AdminClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminClient(cc grpc.ClientConnInterface) *AdminClient {
	return &AdminClient{cc: cc}
}

func (c *AdminClient) Prune(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodPrune, in, opts...)
}

func (c *AdminClient) ForceUnlock(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodForceUnlock, in, opts...)
}

func (c *AdminClient) GetLock(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetLock, in, opts...)
}

func (c *AdminClient) Import(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodImport, in, opts...)
}

func (c *AdminClient) RevokeToken(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodRevokeToken, in, opts...)
}

func (c *AdminClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

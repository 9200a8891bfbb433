package proxyrpc

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName matches the package.Service name documented in
// mediaproxy.proto.
const serviceName = "mcm.mediaproxy.v1.MediaProxy"

// mediaProxyServer is the interface a mock proxy (or a future real
// one) implements; it is the hand-written equivalent of the
// protoc-gen-go-grpc XxxServer interface.
type mediaProxyServer interface {
	CreateConnection(context.Context, *CreateConnectionRequest) (*CreateConnectionReply, error)
	ActivateConnection(context.Context, *ActivateConnectionRequest) (*ActivateConnectionReply, error)
	DeleteConnection(context.Context, *DeleteConnectionRequest) (*DeleteConnectionReply, error)
	RegisterAndStreamEvents(*RegisterClientRequest, mediaProxyRegisterAndStreamEventsServer) error
}

// mediaProxyRegisterAndStreamEventsServer is the server-side handle
// for the event stream, the hand-written equivalent of the generated
// MediaProxy_RegisterAndStreamEventsServer interface.
type mediaProxyRegisterAndStreamEventsServer interface {
	Send(*Event) error
	grpc.ServerStream
}

type mediaProxyRegisterAndStreamEventsServerImpl struct {
	grpc.ServerStream
}

func (x *mediaProxyRegisterAndStreamEventsServerImpl) Send(e *Event) error {
	return x.ServerStream.SendMsg(e)
}

func mediaProxyCreateConnectionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateConnectionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(mediaProxyServer).CreateConnection(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/CreateConnection"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(mediaProxyServer).CreateConnection(ctx, req.(*CreateConnectionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func mediaProxyActivateConnectionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ActivateConnectionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(mediaProxyServer).ActivateConnection(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ActivateConnection"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(mediaProxyServer).ActivateConnection(ctx, req.(*ActivateConnectionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func mediaProxyDeleteConnectionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeleteConnectionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(mediaProxyServer).DeleteConnection(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/DeleteConnection"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(mediaProxyServer).DeleteConnection(ctx, req.(*DeleteConnectionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func mediaProxyRegisterAndStreamEventsHandler(srv any, stream grpc.ServerStream) error {
	m := new(RegisterClientRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(mediaProxyServer).RegisterAndStreamEvents(m, &mediaProxyRegisterAndStreamEventsServerImpl{stream})
}

// serviceDesc is the hand-declared equivalent of the
// protoc-gen-go-grpc-emitted _MediaProxy_serviceDesc.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*mediaProxyServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateConnection", Handler: mediaProxyCreateConnectionHandler},
		{MethodName: "ActivateConnection", Handler: mediaProxyActivateConnectionHandler},
		{MethodName: "DeleteConnection", Handler: mediaProxyDeleteConnectionHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "RegisterAndStreamEvents",
			Handler:       mediaProxyRegisterAndStreamEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "mediaproxy.proto",
}

// registerMediaProxyServer registers a server-side implementation with
// a *grpc.Server, mirroring the generated RegisterMediaProxyServer
// function protoc-gen-go-grpc would otherwise emit.
func registerMediaProxyServer(s *grpc.Server, srv mediaProxyServer) {
	s.RegisterService(&serviceDesc, srv)
}

package grpctransport

import (
	"context"

	"google.golang.org/grpc"
)

// TransportServer is the server-side contract generated stubs would
// normally provide; hand-written here since there is no .proto source to
// run through protoc.
type TransportServer interface {
	Send(context.Context, *wireEnvelope) (*wireAck, error)
}

// TransportClient is the client-side counterpart of TransportServer.
type TransportClient interface {
	Send(ctx context.Context, in *wireEnvelope, opts ...grpc.CallOption) (*wireAck, error)
}

type transportClient struct {
	cc grpc.ClientConnInterface
}

// NewTransportClient wraps an established connection.
func NewTransportClient(cc grpc.ClientConnInterface) TransportClient {
	return &transportClient{cc: cc}
}

func (c *transportClient) Send(ctx context.Context, in *wireEnvelope, opts ...grpc.CallOption) (*wireAck, error) {
	out := new(wireAck)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/omnipaxos.transport.Transport/Send", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Transport_Send_Handler(
	srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(wireEnvelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransportServer).Send(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/omnipaxos.transport.Transport/Send",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TransportServer).Send(ctx, req.(*wireEnvelope))
	}
	return interceptor(ctx, in, info, handler)
}

var transportServiceDesc = grpc.ServiceDesc{
	ServiceName: "omnipaxos.transport.Transport",
	HandlerType: (*TransportServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Send",
			Handler:    _Transport_Send_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "transport.proto",
}

// RegisterTransportServer attaches srv to s the way generated code would.
func RegisterTransportServer(s grpc.ServiceRegistrar, srv TransportServer) {
	s.RegisterService(&transportServiceDesc, srv)
}

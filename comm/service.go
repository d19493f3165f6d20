package comm

import (
	"context"

	"google.golang.org/grpc"
)

// Constants

const (
	receiverServiceName = "lwwdict.comm.Receiver"
	pushMethod          = "/" + receiverServiceName + "/Push"
	pullMethod          = "/" + receiverServiceName + "/Pull"
)

// Interfaces

// ReceiverServer is the server API of the
// synchronization service.
type ReceiverServer interface {

	// Push merges the state of a peer into
	// the local replica.
	Push(context.Context, *StateMsg) (*Conf, error)

	// Pull returns the state of the local replica.
	Pull(context.Context, *PullReq) (*StateMsg, error)
}

// ReceiverClient is the client API of the
// synchronization service.
type ReceiverClient interface {
	Push(ctx context.Context, in *StateMsg, opts ...grpc.CallOption) (*Conf, error)
	Pull(ctx context.Context, in *PullReq, opts ...grpc.CallOption) (*StateMsg, error)
}

// Structs

type receiverClient struct {
	cc grpc.ClientConnInterface
}

// Variables

var receiverServiceDesc = grpc.ServiceDesc{
	ServiceName: receiverServiceName,
	HandlerType: (*ReceiverServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Push",
			Handler:    pushHandler,
		},
		{
			MethodName: "Pull",
			Handler:    pullHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "comm/service.go",
}

// Functions

// RegisterReceiverServer makes srv available on s.
func RegisterReceiverServer(s grpc.ServiceRegistrar, srv ReceiverServer) {
	s.RegisterService(&receiverServiceDesc, srv)
}

// NewReceiverClient returns a client calling the
// synchronization service via cc.
func NewReceiverClient(cc grpc.ClientConnInterface) ReceiverClient {
	return &receiverClient{cc}
}

func (c *receiverClient) Push(ctx context.Context, in *StateMsg, opts ...grpc.CallOption) (*Conf, error) {

	out := new(Conf)

	if err := c.cc.Invoke(ctx, pushMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *receiverClient) Pull(ctx context.Context, in *PullReq, opts ...grpc.CallOption) (*StateMsg, error) {

	out := new(StateMsg)

	if err := c.cc.Invoke(ctx, pullMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func pushHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	in := new(StateMsg)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ReceiverServer).Push(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: pushMethod,
	}

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReceiverServer).Push(ctx, req.(*StateMsg))
	}

	return interceptor(ctx, in, info, handler)
}

func pullHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	in := new(PullReq)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ReceiverServer).Pull(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: pullMethod,
	}

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReceiverServer).Pull(ctx, req.(*PullReq))
	}

	return interceptor(ctx, in, info, handler)
}

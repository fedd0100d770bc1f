package grpccomm

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dynlb/internal/collective"
)

const exchangeMethod = "/dynlb.collective.Hub/Exchange"

// exchangeServer is the service contract behind the handwritten
// descriptor.
type exchangeServer interface {
	Exchange(ctx context.Context, req *exchangeRequest) (*exchangeResponse, error)
}

// hubService serves Exchange RPCs by forwarding them into the shared
// rendezvous hub.
type hubService struct {
	hub *collective.Hub
}

// Exchange contributes the caller's payload to the current round and
// blocks until the round completes.
func (s *hubService) Exchange(ctx context.Context, req *exchangeRequest) (*exchangeResponse, error) {
	out, err := s.hub.Exchange(ctx, int(req.Rank), collective.Op(req.Op), req.Payload)
	if err != nil {
		return nil, status.Error(codes.Aborted, err.Error())
	}
	return &exchangeResponse{Payload: out}, nil
}

func exchangeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(exchangeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(exchangeServer).Exchange(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: exchangeMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(exchangeServer).Exchange(ctx, req.(*exchangeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// exchangeServiceDesc describes the Hub service without generated
// stubs; the wire format stays the gob-encoded request/response pair.
var exchangeServiceDesc = grpc.ServiceDesc{
	ServiceName: "dynlb.collective.Hub",
	HandlerType: (*exchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Exchange",
			Handler:    exchangeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dynlb/collective",
}

// Coordinator is the rank-0 side of a gRPC collective group: it hosts
// the hub, serves the worker ranks, and participates through a direct
// hub attachment.
type Coordinator struct {
	hub    *collective.Hub
	server *grpc.Server
	lis    net.Listener
	comm   collective.Comm
}

// Serve starts a coordinator for a group of the given size on addr.
// Pass an address with port 0 to let the kernel pick one; Addr reports
// the bound address.
func Serve(addr string, size int) (*Coordinator, error) {
	hub, err := collective.NewHub(size)
	if err != nil {
		return nil, err
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	server := grpc.NewServer()
	server.RegisterService(&exchangeServiceDesc, &hubService{hub: hub})

	go func() {
		_ = server.Serve(lis)
	}()

	return &Coordinator{
		hub:    hub,
		server: server,
		lis:    lis,
		comm:   collective.NewComm(hub.Attach(0)),
	}, nil
}

// Comm returns the coordinator's own rank-0 collective handle.
func (c *Coordinator) Comm() collective.Comm {
	return c.comm
}

// Addr returns the bound listen address.
func (c *Coordinator) Addr() string {
	return c.lis.Addr().String()
}

// Close stops serving. In-flight collectives are aborted.
func (c *Coordinator) Close() error {
	c.server.Stop()
	return nil
}

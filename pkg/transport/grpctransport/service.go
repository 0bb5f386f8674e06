package grpctransport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/cuemby/rangedb/pkg/rangedberr"
)

// serviceName and methodName name the single RPC this package exposes:
// one destination rank's range server accepting one packed BulkRequest
// and returning one packed BulkResponse.
const (
	serviceName = "rangedb.RangeServer"
	methodName  = "Communicate"
	fullMethod  = "/" + serviceName + "/" + methodName
)

// rangeServer is what the generated *_grpc.pb.go would have named the
// server-side interface, had this service been described in a .proto.
type rangeServer interface {
	communicate(ctx context.Context, req frame) (*frame, error)
}

func communicateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(frame)
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(rangeServer).communicate(ctx, *req.(*frame))
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
	return interceptor(ctx, in, info, handler)
}

// serviceDesc is the hand-written equivalent of a protoc-generated
// grpc.ServiceDesc. rangedb has exactly one RPC and one message type,
// so describing it by hand avoids running protoc for a schema nobody
// reads (see doc.go).
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*rangeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodName, Handler: communicateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pkg/transport/grpctransport/service.go",
}

func errNotARangedbError(err error) error {
	if err == nil {
		return nil
	}
	if rangedberr.Is(err, rangedberr.TransportError) {
		return err
	}
	return rangedberr.Wrap(rangedberr.TransportError, "grpctransport", err)
}

package grpctransport

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/cuemby/rangedb/pkg/log"
	"github.com/cuemby/rangedb/pkg/rangeserver"
	"github.com/cuemby/rangedb/pkg/wire"
)

// Server exposes one rangeserver.Dispatcher over gRPC: one process per
// rank, one listener, one registered service.
type Server struct {
	dispatcher *rangeserver.Dispatcher
	grpcServer *grpc.Server
}

// NewServer wraps dispatcher for RPC. srvOpts is where callers layer in
// TLS credentials or interceptors.
func NewServer(dispatcher *rangeserver.Dispatcher, srvOpts ...grpc.ServerOption) *Server {
	s := &Server{dispatcher: dispatcher}
	s.grpcServer = grpc.NewServer(srvOpts...)
	s.grpcServer.RegisterService(&serviceDesc, s)
	return s
}

// communicate implements rangeServer: unpack, dispatch locally, repack.
// The reply is returned by pointer because that is the shape rawCodec
// marshals (the same *frame the client side decodes into).
func (s *Server) communicate(ctx context.Context, req frame) (*frame, error) {
	bulkReq, err := wire.UnpackRequest(req)
	if err != nil {
		return nil, errNotARangedbError(err)
	}
	resp, err := s.dispatcher.Dispatch(ctx, bulkReq)
	if err != nil {
		return nil, errNotARangedbError(err)
	}
	out, err := resp.Pack()
	if err != nil {
		return nil, errNotARangedbError(err)
	}
	reply := frame(out)
	return &reply, nil
}

// Serve blocks accepting connections on lis until the gRPC server stops.
func (s *Server) Serve(lis net.Listener) error {
	logger := log.WithRank(int(s.dispatcher.Rank))
	logger.Info().Str("addr", lis.Addr().String()).Msg("grpctransport: range server listening")
	return s.grpcServer.Serve(lis)
}

// GracefulStop drains in-flight RPCs before returning.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// Stop aborts immediately, dropping any in-flight RPC.
func (s *Server) Stop() {
	s.grpcServer.Stop()
}

package grpctransport

// No .proto file or generated stub lives in this package on purpose.
// rangedb's wire format (pkg/wire) is already a complete, fixed-layout
// binary codec; describing the same bytes a second time in
// protobuf would just be a second schema to keep in sync with the first.
// Instead this package rides gRPC's transport (HTTP/2 framing, conn
// pooling, deadlines) while keeping pkg/wire as the one encoding: a
// content-subtype codec (codec.go) copies frames through unmodified, and
// a hand-built grpc.ServiceDesc (service.go) registers the single RPC
// this service needs without protoc.

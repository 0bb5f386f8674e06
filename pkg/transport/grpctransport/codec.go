// Package grpctransport is the concrete RPC substrate implementing the
// abstract transport.Transport contract over gRPC. rangedb has no domain
// messages worth describing in .proto, since the packed bulk bytes
// already are the message, so this package registers a raw-bytes codec
// and a hand-written grpc.ServiceDesc instead of generating stubs, the
// same technique grpc-proxying reverse proxies use to pass opaque
// payloads through grpc-go without a schema.
package grpctransport

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is the content-subtype rangedb registers its raw codec
// under. Selecting it per-call (client) or via the incoming content-type
// header (server) opts that call out of protobuf entirely.
const codecName = "rangedb-raw"

// frame is the only message type this service ever carries: one packed
// wire.BulkRequest or wire.BulkResponse, verbatim.
type frame []byte

// rawCodec implements encoding.Codec over frame, copying bytes straight
// through instead of running a marshaler.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	f, ok := v.(*frame)
	if !ok {
		return nil, fmt.Errorf("grpctransport: rawCodec.Marshal: unsupported type %T", v)
	}
	return *f, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	f, ok := v.(*frame)
	if !ok {
		return fmt.Errorf("grpctransport: rawCodec.Unmarshal: unsupported type %T", v)
	}
	*f = append((*f)[:0:0], data...)
	return nil
}

func (rawCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(rawCodec{})
}

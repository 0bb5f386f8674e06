// Package transport defines the abstract send-many-receive-many contract
// every concrete RPC substrate implements. A Transport never sees
// loopback destinations; the client invokes the local range server
// directly instead.
package transport

import (
	"context"

	"github.com/cuemby/rangedb/pkg/wire"
)

// Transport sends one concurrent batch of bulk requests, one per
// destination rank, and collects their responses. A missing entry in the
// returned map means that destination's request failed and no response
// will ever arrive for it.
type Transport interface {
	CommunicateBPut(ctx context.Context, reqs map[int32]*wire.BulkRequest) (map[int32]*wire.BulkResponse, error)
	CommunicateBGet(ctx context.Context, reqs map[int32]*wire.BulkRequest) (map[int32]*wire.BulkResponse, error)
	CommunicateBGetOp(ctx context.Context, reqs map[int32]*wire.BulkRequest) (map[int32]*wire.BulkResponse, error)
	CommunicateBDelete(ctx context.Context, reqs map[int32]*wire.BulkRequest) (map[int32]*wire.BulkResponse, error)
	CommunicateBHistogram(ctx context.Context, reqs map[int32]*wire.BulkRequest) (map[int32]*wire.BulkResponse, error)

	// Close releases any connections or background goroutines the
	// transport holds.
	Close() error
}

// Communicate dispatches reqs to the Communicate* method matching op,
// letting callers that already branched on wire.Op avoid a second switch.
func Communicate(ctx context.Context, t Transport, op wire.Op, reqs map[int32]*wire.BulkRequest) (map[int32]*wire.BulkResponse, error) {
	switch op {
	case wire.OpPut:
		return t.CommunicateBPut(ctx, reqs)
	case wire.OpGet:
		return t.CommunicateBGet(ctx, reqs)
	case wire.OpGetOp:
		return t.CommunicateBGetOp(ctx, reqs)
	case wire.OpDelete:
		return t.CommunicateBDelete(ctx, reqs)
	case wire.OpHistogram:
		return t.CommunicateBHistogram(ctx, reqs)
	default:
		return nil, nil
	}
}

package grpctransport

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/rangedb/pkg/metrics"
	"github.com/cuemby/rangedb/pkg/wire"
)

// Transport is the gRPC-backed transport.Transport implementation
// (transport.type = "grpc"): one persistent *grpc.ClientConn per peer,
// reused across calls and fanned out concurrently per bulk round.
type Transport struct {
	mu      sync.RWMutex
	conns   map[int32]*grpc.ClientConn
	dialOpt []grpc.DialOption
}

// NewTransport returns a Transport with no established connections.
// dialOpts are appended to every Dial call this Transport makes; pass
// grpc.WithTransportCredentials(insecure.NewCredentials()) explicitly to
// opt into a plaintext connection. Callers choose their own credentials
// rather than getting insecure silently.
func NewTransport(dialOpts ...grpc.DialOption) *Transport {
	return &Transport{conns: make(map[int32]*grpc.ClientConn), dialOpt: dialOpts}
}

// InsecureDialOption is a convenience for local/test deployments that
// don't terminate TLS at the transport layer.
func InsecureDialOption() grpc.DialOption {
	return grpc.WithTransportCredentials(insecure.NewCredentials())
}

// Connect dials addr and registers it as the peer for rank. An existing
// connection to rank is replaced and then closed.
func (t *Transport) Connect(rank int32, addr string) error {
	conn, err := grpc.NewClient(addr, t.dialOpt...)
	if err != nil {
		return fmt.Errorf("grpctransport: dial rank %d at %s: %w", rank, addr, err)
	}
	t.mu.Lock()
	old := t.conns[rank]
	t.conns[rank] = conn
	t.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

func (t *Transport) conn(rank int32) (*grpc.ClientConn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.conns[rank]
	return c, ok
}

func (t *Transport) invoke(ctx context.Context, rank int32, req *wire.BulkRequest) (*wire.BulkResponse, error) {
	conn, ok := t.conn(rank)
	if !ok {
		return nil, fmt.Errorf("grpctransport: no connection registered for rank %d", rank)
	}
	reqBytes, err := req.Pack()
	if err != nil {
		return nil, err
	}
	in := frame(reqBytes)
	out := new(frame)
	if err := conn.Invoke(ctx, fullMethod, &in, out, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, err
	}
	return wire.UnpackResponse(*out)
}

func (t *Transport) communicate(ctx context.Context, reqs map[int32]*wire.BulkRequest) (map[int32]*wire.BulkResponse, error) {
	type result struct {
		rank int32
		resp *wire.BulkResponse
		ok   bool
	}
	results := make(chan result, len(reqs))
	var wg sync.WaitGroup
	for rank, req := range reqs {
		wg.Add(1)
		go func(rank int32, req *wire.BulkRequest) {
			defer wg.Done()
			timer := metrics.NewTimer()
			resp, err := t.invoke(ctx, rank, req)
			metrics.TransportRoundTrip.WithLabelValues(req.Header.Op.String()).Observe(timer.Duration().Seconds())
			if err != nil {
				metrics.TransportErrorsTotal.WithLabelValues(rankLabel(rank)).Inc()
				results <- result{rank: rank, ok: false}
				return
			}
			results <- result{rank: rank, resp: resp, ok: true}
		}(rank, req)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[int32]*wire.BulkResponse, len(reqs))
	for r := range results {
		if r.ok {
			out[r.rank] = r.resp
		}
	}
	return out, nil
}

func (t *Transport) CommunicateBPut(ctx context.Context, reqs map[int32]*wire.BulkRequest) (map[int32]*wire.BulkResponse, error) {
	return t.communicate(ctx, reqs)
}

func (t *Transport) CommunicateBGet(ctx context.Context, reqs map[int32]*wire.BulkRequest) (map[int32]*wire.BulkResponse, error) {
	return t.communicate(ctx, reqs)
}

func (t *Transport) CommunicateBGetOp(ctx context.Context, reqs map[int32]*wire.BulkRequest) (map[int32]*wire.BulkResponse, error) {
	return t.communicate(ctx, reqs)
}

func (t *Transport) CommunicateBDelete(ctx context.Context, reqs map[int32]*wire.BulkRequest) (map[int32]*wire.BulkResponse, error) {
	return t.communicate(ctx, reqs)
}

func (t *Transport) CommunicateBHistogram(ctx context.Context, reqs map[int32]*wire.BulkRequest) (map[int32]*wire.BulkResponse, error) {
	return t.communicate(ctx, reqs)
}

// Close tears down every connection this Transport dialed.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	for rank, conn := range t.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("grpctransport: close rank %d: %w", rank, err)
		}
	}
	t.conns = make(map[int32]*grpc.ClientConn)
	return firstErr
}

func rankLabel(rank int32) string {
	return strconv.Itoa(int(rank))
}

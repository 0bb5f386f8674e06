// Package localtransport is an in-process Transport that simulates a
// multi-rank job with goroutines and channels instead of a real network,
// standing in for the "transport.type = None" configuration option: one
// dispatch per destination, run concurrently, joined before returning,
// fanned out over a rank registry.
package localtransport

import (
	"context"
	"strconv"
	"sync"

	"github.com/cuemby/rangedb/pkg/metrics"
	"github.com/cuemby/rangedb/pkg/rangeserver"
	"github.com/cuemby/rangedb/pkg/wire"
)

// Transport routes each destination rank's bulk request directly to that
// rank's in-process rangeserver.Dispatcher. Every Communicate* call fans
// out one goroutine per destination and joins them all before returning.
type Transport struct {
	mu      sync.RWMutex
	ranks   map[int32]*rangeserver.Dispatcher
	running bool
}

// New returns a Transport with no registered ranks.
func New() *Transport {
	return &Transport{ranks: make(map[int32]*rangeserver.Dispatcher), running: true}
}

// Register adds or replaces the Dispatcher simulating rank.
func (t *Transport) Register(rank int32, d *rangeserver.Dispatcher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ranks[rank] = d
}

func (t *Transport) dispatcher(rank int32) (*rangeserver.Dispatcher, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.ranks[rank]
	return d, ok
}

func (t *Transport) isRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
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
			if !t.isRunning() {
				results <- result{rank: rank, ok: false}
				return
			}
			d, ok := t.dispatcher(rank)
			if !ok {
				metrics.TransportErrorsTotal.WithLabelValues(rankLabel(rank)).Inc()
				results <- result{rank: rank, ok: false}
				return
			}
			resp, err := d.Dispatch(ctx, req)
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

// Close stops accepting new dispatches; blocking calls already in flight
// finish, but isRunning-gated goroutines started after Close return no
// response for their destination.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	return nil
}

func rankLabel(rank int32) string {
	return strconv.Itoa(int(rank))
}

// Package client is the orchestrator every rangedb process drives: it
// wires placement, the five per-kind queues, shuffle, the local range
// server, a Transport, and the result-stream builder into the
// Put/Get/GetOp/Delete/Histogram + Flush* surface. Operations enqueue
// and return immediately; only a flush touches the network.
package client

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/rangedb/pkg/blob"
	"github.com/cuemby/rangedb/pkg/cursor"
	"github.com/cuemby/rangedb/pkg/datastore"
	"github.com/cuemby/rangedb/pkg/hash"
	"github.com/cuemby/rangedb/pkg/histogram"
	rdblog "github.com/cuemby/rangedb/pkg/log"
	"github.com/cuemby/rangedb/pkg/metrics"
	"github.com/cuemby/rangedb/pkg/opitem"
	"github.com/cuemby/rangedb/pkg/queue"
	"github.com/cuemby/rangedb/pkg/rangedbcfg"
	"github.com/cuemby/rangedb/pkg/rangedberr"
	"github.com/cuemby/rangedb/pkg/rangeserver"
	"github.com/cuemby/rangedb/pkg/resultstream"
	"github.com/cuemby/rangedb/pkg/shuffle"
	"github.com/cuemby/rangedb/pkg/transport"
	"github.com/cuemby/rangedb/pkg/wire"
)

// Client is one process's view of the distributed store: it enqueues
// operations locally and, on flush, shuffles them out to whichever range
// server (local or remote) owns their destination datastore.
type Client struct {
	cfg       rangedbcfg.Config
	router    shuffle.Router
	local     *rangeserver.Dispatcher
	transport transport.Transport
	selfRank  int32
	endpoints map[int32]bool

	putQ   *queue.Queue[opitem.PutItem]
	getQ   *queue.Queue[opitem.GetItem]
	getOpQ *queue.Queue[opitem.GetOpItem]
	delQ   *queue.Queue[opitem.DeleteItem]
	histQ  *queue.Queue[opitem.HistogramItem]

	running    atomic.Bool
	workerDone chan struct{}

	asyncMu  sync.Mutex
	asyncBuf *resultstream.Stream
}

// New wires a Client over local (this rank's datastores) and tp (the
// substrate used to reach every other rank). tp may be nil when every
// configured datastore is local (single-process deployments); a flush
// that would otherwise need a remote destination returns no result for
// that slot, the same as any other unreachable destination.
func New(cfg rangedbcfg.Config, local *rangeserver.Dispatcher, tp transport.Transport) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if local == nil {
		return nil, rangedberr.New(rangedberr.InvalidArgument, "client.New")
	}
	hashFn, ok := hash.Named(cfg.HashName)
	if !ok {
		return nil, rangedberr.New(rangedberr.InvalidArgument, "client.New")
	}
	placement := hash.Placement{
		ClientRatio:         cfg.ClientRatio,
		ServerRatio:         cfg.ServerRatio,
		DatastoresPerServer: cfg.DatastoresPerServer,
		WorldSize:           cfg.WorldSize,
	}

	var endpoints map[int32]bool
	if len(cfg.EndpointGroup) > 0 {
		endpoints = make(map[int32]bool, len(cfg.EndpointGroup))
		for _, r := range cfg.EndpointGroup {
			endpoints[r] = true
		}
	}

	c := &Client{
		cfg:       cfg,
		local:     local,
		transport: tp,
		selfRank:  int32(cfg.Rank),
		endpoints: endpoints,
		putQ:      queue.New[opitem.PutItem](),
		getQ:      queue.New[opitem.GetItem](),
		getOpQ:    queue.New[opitem.GetOpItem](),
		delQ:      queue.New[opitem.DeleteItem](),
		histQ:     queue.New[opitem.HistogramItem](),
		asyncBuf:  resultstream.New(),
		router: shuffle.Router{
			SelfRank:      int32(cfg.Rank),
			Hash:          hashFn,
			Placement:     placement,
			MaxOpsPerSend: cfg.MaxOpsPerSend,
		},
	}

	c.running.Store(true)
	if cfg.AsyncPuts.Enabled {
		c.workerDone = make(chan struct{})
		go c.asyncPutWorker()
	}
	return c, nil
}

func requireNonEmpty(b blob.Blob, op string) error {
	if b.Empty() {
		return rangedberr.New(rangedberr.InvalidArgument, op)
	}
	return nil
}

// Put enqueues a write of object at (subject, predicate); it never
// touches the transport. If async puts are enabled, this may wake the
// background worker once the queue crosses its watermark.
func (c *Client) Put(subject, predicate, object blob.Blob) error {
	if err := requireNonEmpty(subject, "client.Put"); err != nil {
		return err
	}
	if err := requireNonEmpty(predicate, "client.Put"); err != nil {
		return err
	}
	n := c.putQ.Push(opitem.PutItem{Subject: subject, Predicate: predicate, Object: object, EnqueuedAt: time.Now()})
	metrics.ItemsEnqueuedTotal.WithLabelValues(wire.OpPut.String()).Inc()
	metrics.QueueDepth.WithLabelValues(wire.OpPut.String()).Set(float64(n))
	return nil
}

// Get enqueues a read of (subject, predicate), decoded as objectType.
func (c *Client) Get(subject, predicate blob.Blob, objectType blob.DataType) error {
	if err := requireNonEmpty(subject, "client.Get"); err != nil {
		return err
	}
	if err := requireNonEmpty(predicate, "client.Get"); err != nil {
		return err
	}
	n := c.getQ.Push(opitem.GetItem{Subject: subject, Predicate: predicate, ObjectType: objectType, EnqueuedAt: time.Now()})
	metrics.ItemsEnqueuedTotal.WithLabelValues(wire.OpGet.String()).Inc()
	metrics.QueueDepth.WithLabelValues(wire.OpGet.String()).Set(float64(n))
	return nil
}

// GetOp enqueues a positional lookup over the (subject, predicate)
// ordering. subject/predicate may be empty for
// opitem.FirstGetOp/opitem.LastGetOp, which ignore the seek key.
func (c *Client) GetOp(subject, predicate blob.Blob, objectType blob.DataType, op opitem.GetOpKind, numRecs int) error {
	if op == opitem.EQ || op == opitem.NEXT || op == opitem.PREV {
		if err := requireNonEmpty(subject, "client.GetOp"); err != nil {
			return err
		}
		if err := requireNonEmpty(predicate, "client.GetOp"); err != nil {
			return err
		}
	}
	if numRecs <= 0 {
		return rangedberr.New(rangedberr.InvalidArgument, "client.GetOp")
	}
	n := c.getOpQ.Push(opitem.GetOpItem{Subject: subject, Predicate: predicate, ObjectType: objectType, Op: op, NumRecs: numRecs, EnqueuedAt: time.Now()})
	metrics.ItemsEnqueuedTotal.WithLabelValues(wire.OpGetOp.String()).Inc()
	metrics.QueueDepth.WithLabelValues(wire.OpGetOp.String()).Set(float64(n))
	return nil
}

// Delete enqueues removal of the object stored at (subject, predicate).
func (c *Client) Delete(subject, predicate blob.Blob) error {
	if err := requireNonEmpty(subject, "client.Delete"); err != nil {
		return err
	}
	if err := requireNonEmpty(predicate, "client.Delete"); err != nil {
		return err
	}
	n := c.delQ.Push(opitem.DeleteItem{Subject: subject, Predicate: predicate, EnqueuedAt: time.Now()})
	metrics.ItemsEnqueuedTotal.WithLabelValues(wire.OpDelete.String()).Inc()
	metrics.QueueDepth.WithLabelValues(wire.OpDelete.String()).Set(float64(n))
	return nil
}

// Histogram enqueues a read of the named estimator configured on the
// datastore addressed by datastoreID. A histogram has no (subject,
// predicate) content to hash, so the caller names the target datastore
// directly instead of letting shuffle compute one.
func (c *Client) Histogram(datastoreID int, name string) error {
	if name == "" {
		return rangedberr.New(rangedberr.InvalidArgument, "client.Histogram")
	}
	placement := c.router.Placement
	rank := placement.GetRank(datastoreID)
	offset := placement.GetOffset(datastoreID)
	if rank < 0 || offset < 0 {
		return rangedberr.New(rangedberr.InvalidArgument, "client.Histogram")
	}
	item := opitem.HistogramItem{
		Name:       name,
		Dest:       opitem.Destination{DatastoreID: datastoreID, Rank: rank, Offset: offset, Valid: true, Preset: true},
		EnqueuedAt: time.Now(),
	}
	n := c.histQ.Push(item)
	metrics.ItemsEnqueuedTotal.WithLabelValues(wire.OpHistogram.String()).Inc()
	metrics.QueueDepth.WithLabelValues(wire.OpHistogram.String()).Set(float64(n))
	return nil
}

// dispatchRound sends local's slots (if any) directly to the local range
// server on the calling goroutine, then hands remote's per-rank requests
// to the transport, which sends them concurrently; loopback is never
// handed to the transport. Responses are keyed by the
// rank that produced them; a missing entry means that destination
// produced no response this round.
func (c *Client) dispatchRound(ctx context.Context, op wire.Op, local *wire.BulkRequest, remote map[int32]*wire.BulkRequest) map[int32]*wire.BulkResponse {
	responses := make(map[int32]*wire.BulkResponse, len(remote)+1)

	// Tag this round with a correlation id so its local leg and the
	// transport's per-rank remote legs can be traced back to one flush
	// in the logs.
	roundLog := rdblog.WithRequestID(uuid.NewString()).With().Str("op", op.String()).Logger()
	roundLog.Debug().Int("remote_dests", len(remote)).Msg("dispatch round starting")

	if local != nil && local.Header.Count > 0 {
		if resp, err := c.local.Dispatch(ctx, local); err == nil {
			responses[c.selfRank] = resp
		}
	}

	remoteReqs := make(map[int32]*wire.BulkRequest, len(remote))
	for rank, req := range remote {
		if req.Header.Count == 0 {
			continue
		}
		if c.endpoints != nil && !c.endpoints[rank] {
			metrics.TransportErrorsTotal.WithLabelValues(rankLabel(rank)).Inc()
			continue
		}
		remoteReqs[rank] = req
	}
	if len(remoteReqs) > 0 && c.transport != nil {
		remoteResps, err := transport.Communicate(ctx, c.transport, op, remoteReqs)
		if err == nil {
			for rank, resp := range remoteResps {
				responses[rank] = resp
			}
		} else {
			roundLog.Warn().Err(err).Msg("transport communicate failed")
		}
	}
	return responses
}

func rankLabel(rank int32) string {
	return strconv.Itoa(int(rank))
}

// FlushPuts drains the put queue and runs it through shuffle + dispatch,
// then prepends whatever the async-PUT worker has already buffered so
// the returned stream covers both.
func (c *Client) FlushPuts() (*resultstream.Stream, error) {
	timer := metrics.NewTimer()
	items := c.putQ.TakeAll()
	fresh := c.runPuts(items)
	merged := resultstream.New()
	merged.Append(c.takeAsyncBuffer())
	merged.Append(fresh)
	metrics.FlushDuration.WithLabelValues(wire.OpPut.String()).Observe(timer.Duration().Seconds())
	metrics.QueueDepth.WithLabelValues(wire.OpPut.String()).Set(0)
	return merged, nil
}

func (c *Client) takeAsyncBuffer() *resultstream.Stream {
	c.asyncMu.Lock()
	defer c.asyncMu.Unlock()
	buf := c.asyncBuf
	c.asyncBuf = resultstream.New()
	return buf
}

func (c *Client) runPuts(items []opitem.PutItem) *resultstream.Stream {
	stream := resultstream.New()
	ctx := context.Background()
	for len(items) > 0 {
		local := &wire.BulkRequest{Header: wire.Header{Op: wire.OpPut, Src: c.selfRank, Dst: c.selfRank}}
		remote := make(map[int32]*wire.BulkRequest)
		remaining, dropped, placed := c.router.Puts(items, local, remote)
		if dropped > 0 {
			metrics.HashMissTotal.Add(float64(dropped))
		}
		responses := c.dispatchRound(ctx, wire.OpPut, local, remote)
		now := time.Now()
		for rank, its := range placed {
			resp, ok := responses[rank]
			if !ok {
				continue
			}
			for i, it := range its {
				if i >= len(resp.Puts) {
					break
				}
				slot := resp.Puts[i]
				stream.Add(resultstream.NewPutNode(slot.Status, resp.Header.Src, it.Subject, it.Predicate, it.EnqueuedAt, now))
			}
		}
		metrics.FlushItemsTotal.WithLabelValues(wire.OpPut.String(), "placed").Add(float64(len(items) - len(remaining)))
		if len(remaining) == len(items) {
			break
		}
		items = remaining
	}
	return stream
}

// FlushGets drains the get queue and runs it through shuffle + dispatch.
func (c *Client) FlushGets() (*resultstream.Stream, error) {
	timer := metrics.NewTimer()
	items := c.getQ.TakeAll()
	stream := c.runGets(items)
	metrics.FlushDuration.WithLabelValues(wire.OpGet.String()).Observe(timer.Duration().Seconds())
	metrics.QueueDepth.WithLabelValues(wire.OpGet.String()).Set(0)
	return stream, nil
}

func (c *Client) runGets(items []opitem.GetItem) *resultstream.Stream {
	stream := resultstream.New()
	ctx := context.Background()
	for len(items) > 0 {
		local := &wire.BulkRequest{Header: wire.Header{Op: wire.OpGet, Src: c.selfRank, Dst: c.selfRank}}
		remote := make(map[int32]*wire.BulkRequest)
		remaining, dropped, placed := c.router.Gets(items, local, remote)
		if dropped > 0 {
			metrics.HashMissTotal.Add(float64(dropped))
		}
		responses := c.dispatchRound(ctx, wire.OpGet, local, remote)
		now := time.Now()
		for rank, its := range placed {
			resp, ok := responses[rank]
			if !ok {
				continue
			}
			for i, it := range its {
				if i >= len(resp.Gets) {
					break
				}
				slot := resp.Gets[i]
				stream.Add(resultstream.NewGetNode(slot.Status, resp.Header.Src, slot.Subject, slot.Predicate, slot.Object, it.EnqueuedAt, now))
			}
		}
		if len(remaining) == len(items) {
			break
		}
		items = remaining
	}
	return stream
}

// FlushGetOps drains the GetOp queue and runs it through shuffle +
// dispatch. Each slot that comes back Success expands into one node per
// returned record, in iteration order.
func (c *Client) FlushGetOps() (*resultstream.Stream, error) {
	timer := metrics.NewTimer()
	items := c.getOpQ.TakeAll()
	stream := c.runGetOps(items)
	metrics.FlushDuration.WithLabelValues(wire.OpGetOp.String()).Observe(timer.Duration().Seconds())
	metrics.QueueDepth.WithLabelValues(wire.OpGetOp.String()).Set(0)
	return stream, nil
}

func (c *Client) runGetOps(items []opitem.GetOpItem) *resultstream.Stream {
	stream := resultstream.New()
	ctx := context.Background()
	for len(items) > 0 {
		local := &wire.BulkRequest{Header: wire.Header{Op: wire.OpGetOp, Src: c.selfRank, Dst: c.selfRank}}
		remote := make(map[int32]*wire.BulkRequest)
		remaining, dropped, placed := c.router.GetOps(items, local, remote)
		if dropped > 0 {
			metrics.HashMissTotal.Add(float64(dropped))
		}
		responses := c.dispatchRound(ctx, wire.OpGetOp, local, remote)
		now := time.Now()
		for rank, its := range placed {
			resp, ok := responses[rank]
			if !ok {
				continue
			}
			for i, it := range its {
				if i >= len(resp.GetOps) {
					break
				}
				slot := resp.GetOps[i]
				if slot.Status != wire.Success || len(slot.Records) == 0 {
					stream.Add(resultstream.NewGetOpRecordNode(slot.Status, resp.Header.Src, it.Subject, it.Predicate, blob.Blob{}, it.EnqueuedAt, now))
					continue
				}
				records := make([]*resultstream.Node, 0, len(slot.Records))
				for _, rec := range slot.Records {
					records = append(records, resultstream.NewGetOpRecordNode(slot.Status, resp.Header.Src, rec.Subject, rec.Predicate, rec.Object, it.EnqueuedAt, now))
				}
				stream.Add(resultstream.NewGetOpChain(records))
			}
		}
		if len(remaining) == len(items) {
			break
		}
		items = remaining
	}
	return stream
}

// FlushDeletes drains the delete queue and runs it through shuffle + dispatch.
func (c *Client) FlushDeletes() (*resultstream.Stream, error) {
	timer := metrics.NewTimer()
	items := c.delQ.TakeAll()
	stream := c.runDeletes(items)
	metrics.FlushDuration.WithLabelValues(wire.OpDelete.String()).Observe(timer.Duration().Seconds())
	metrics.QueueDepth.WithLabelValues(wire.OpDelete.String()).Set(0)
	return stream, nil
}

func (c *Client) runDeletes(items []opitem.DeleteItem) *resultstream.Stream {
	stream := resultstream.New()
	ctx := context.Background()
	for len(items) > 0 {
		local := &wire.BulkRequest{Header: wire.Header{Op: wire.OpDelete, Src: c.selfRank, Dst: c.selfRank}}
		remote := make(map[int32]*wire.BulkRequest)
		remaining, dropped, placed := c.router.Deletes(items, local, remote)
		if dropped > 0 {
			metrics.HashMissTotal.Add(float64(dropped))
		}
		responses := c.dispatchRound(ctx, wire.OpDelete, local, remote)
		now := time.Now()
		for rank, its := range placed {
			resp, ok := responses[rank]
			if !ok {
				continue
			}
			for i, it := range its {
				if i >= len(resp.Deletes) {
					break
				}
				slot := resp.Deletes[i]
				stream.Add(resultstream.NewDeleteNode(slot.Status, resp.Header.Src, slot.Subject, slot.Predicate, it.EnqueuedAt, now))
			}
		}
		if len(remaining) == len(items) {
			break
		}
		items = remaining
	}
	return stream
}

// FlushHistograms drains the histogram queue and runs it through shuffle
// + dispatch, unpacking each returned payload back into a *histogram.Histogram.
func (c *Client) FlushHistograms() (*resultstream.Stream, error) {
	timer := metrics.NewTimer()
	items := c.histQ.TakeAll()
	stream := c.runHistograms(items)
	metrics.FlushDuration.WithLabelValues(wire.OpHistogram.String()).Observe(timer.Duration().Seconds())
	metrics.QueueDepth.WithLabelValues(wire.OpHistogram.String()).Set(0)
	return stream, nil
}

func (c *Client) runHistograms(items []opitem.HistogramItem) *resultstream.Stream {
	stream := resultstream.New()
	ctx := context.Background()
	for len(items) > 0 {
		local := &wire.BulkRequest{Header: wire.Header{Op: wire.OpHistogram, Src: c.selfRank, Dst: c.selfRank}}
		remote := make(map[int32]*wire.BulkRequest)
		remaining, dropped, placed := c.router.Histograms(items, local, remote)
		if dropped > 0 {
			metrics.HashMissTotal.Add(float64(dropped))
		}
		responses := c.dispatchRound(ctx, wire.OpHistogram, local, remote)
		now := time.Now()
		for rank, its := range placed {
			resp, ok := responses[rank]
			if !ok {
				continue
			}
			for i, it := range its {
				if i >= len(resp.Histograms) {
					break
				}
				slot := resp.Histograms[i]
				h := unpackHistogramPayload(slot)
				status := slot.Status
				if status == wire.Success && h == nil {
					status = wire.Error
				}
				stream.Add(resultstream.NewHistogramNode(status, resp.Header.Src, h, it.EnqueuedAt, now))
			}
		}
		if len(remaining) == len(items) {
			break
		}
		items = remaining
	}
	return stream
}

// Flush runs every queue's flush in a fixed order (Put, Get, GetOp,
// Delete, Histogram), appending all returned streams.
func (c *Client) Flush() (*resultstream.Stream, error) {
	combined := resultstream.New()
	steps := []func() (*resultstream.Stream, error){c.FlushPuts, c.FlushGets, c.FlushGetOps, c.FlushDeletes, c.FlushHistograms}
	for _, step := range steps {
		s, err := step()
		if err != nil {
			return combined, err
		}
		combined.Append(s)
	}
	return combined, nil
}

// GetStats returns the aggregated put/get counters and durations of every
// local datastore this client's range server owns, indexed by local
// offset.
func (c *Client) GetStats() []datastore.Stats {
	stats := make([]datastore.Stats, len(c.local.Stores))
	for i, st := range c.local.Stores {
		stats[i] = st.Stats()
	}
	return stats
}

// Sync flushes every local datastore to durable storage and persists its
// configured histograms.
func (c *Client) Sync() error {
	for _, st := range c.local.Stores {
		if err := st.Sync(); err != nil {
			return err
		}
		if err := st.WriteHistograms(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) isRunning() bool { return c.running.Load() }

// asyncPutWorker is the background watermark drain. It waits for the put
// queue to reach
// cfg.AsyncPuts.MaxQueued or for running to flip false, then runs the
// entire queue through the same pipeline FlushPuts runs, buffering the
// result for the next FlushPuts call to pick up.
func (c *Client) asyncPutWorker() {
	defer close(c.workerDone)
	for {
		c.putQ.WaitWatermark(c.cfg.AsyncPuts.MaxQueued, c.isRunning)
		if !c.isRunning() {
			return
		}
		items := c.putQ.TakeAll()
		if len(items) == 0 {
			continue
		}
		stream := c.runPuts(items)
		c.asyncMu.Lock()
		c.asyncBuf.Append(stream)
		c.asyncMu.Unlock()
		rdblog.Debug("async-put worker drained a batch")
	}
}

// Close stops the async-PUT worker, closes every local datastore, and
// tears down the transport. Flushes racing with Close return whatever
// completed before running flipped.
func (c *Client) Close() error {
	c.running.Store(false)
	c.putQ.NotifyShutdown()
	if c.workerDone != nil {
		<-c.workerDone
	}
	// Drain and discard whatever is left in every queue; a destroyed
	// Client processes nothing further. Callers that want pending work
	// flushed must flush before Close.
	c.putQ.TakeAll()
	c.getQ.TakeAll()
	c.getOpQ.TakeAll()
	c.delQ.TakeAll()
	c.histQ.TakeAll()

	var firstErr error
	for _, st := range c.local.Stores {
		if err := st.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.transport != nil {
		if err := c.transport.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// unpackHistogramPayload decodes a HistogramResponseSlot's packed payload
// back into a *histogram.Histogram, or nil if the slot carries no payload
// (Status != Success) or the payload fails to unpack.
func unpackHistogramPayload(slot wire.HistogramResponseSlot) *histogram.Histogram {
	if slot.Status != wire.Success || len(slot.Payload) == 0 {
		return nil
	}
	h, err := histogram.Unpack(cursor.NewReader(slot.Payload))
	if err != nil {
		return nil
	}
	return h
}

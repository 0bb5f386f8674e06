// Package rangeserver implements the local dispatch loop every rank that
// hosts datastores runs: given a bulk request, split its slots by which
// local datastore offset they address, run the matching batched
// operation against each one, and reassemble a bulk response whose slots
// line up 1:1 with the request.
package rangeserver

import (
	"context"
	"strconv"

	"github.com/cuemby/rangedb/pkg/cursor"
	"github.com/cuemby/rangedb/pkg/datastore"
	"github.com/cuemby/rangedb/pkg/histogram"
	rdblog "github.com/cuemby/rangedb/pkg/log"
	"github.com/cuemby/rangedb/pkg/metrics"
	"github.com/cuemby/rangedb/pkg/rangedberr"
	"github.com/cuemby/rangedb/pkg/wire"
)

// Dispatcher owns every local datastore this rank serves and routes each
// bulk request slot to the one its DSOffsets entry names.
type Dispatcher struct {
	Rank   int32
	Stores []datastore.Datastore // indexed by local offset
}

// New returns a Dispatcher over stores, one per local offset in order.
func New(rank int32, stores []datastore.Datastore) *Dispatcher {
	return &Dispatcher{Rank: rank, Stores: stores}
}

// groupByOffset buckets slot indices [0,count) by their DSOffsets entry,
// preserving within-bucket order so results on one destination come back
// in the order they were enqueued.
func groupByOffset(offsets []int32, count int) map[int32][]int {
	groups := make(map[int32][]int)
	for i := 0; i < count; i++ {
		off := offsets[i]
		groups[off] = append(groups[off], i)
	}
	return groups
}

func (d *Dispatcher) store(offset int32) (datastore.Datastore, error) {
	if offset < 0 || int(offset) >= len(d.Stores) {
		return nil, rangedberr.New(rangedberr.BackendError, "rangeserver.store")
	}
	return d.Stores[offset], nil
}

// Dispatch executes req against this rank's local datastores and returns
// the matching bulk response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *wire.BulkRequest) (*wire.BulkResponse, error) {
	resp := &wire.BulkResponse{Header: wire.Header{
		Direction: wire.Response, Op: req.Header.Op, Src: d.Rank, Dst: req.Header.Src,
		Count: req.Header.Count, DSOffsets: req.Header.DSOffsets,
	}}

	logger := rdblog.WithOp(req.Header.Op.String())
	timer := metrics.NewTimer()
	switch req.Header.Op {
	case wire.OpPut:
		resp.Puts = make([]wire.PutResponseSlot, len(req.Puts))
		for off, idxs := range groupByOffset(req.Header.DSOffsets, len(req.Puts)) {
			d.dispatchPuts(ctx, off, req.Puts, idxs, resp.Puts)
		}
	case wire.OpGet:
		resp.Gets = make([]wire.GetResponseSlot, len(req.Gets))
		for off, idxs := range groupByOffset(req.Header.DSOffsets, len(req.Gets)) {
			d.dispatchGets(ctx, off, req.Gets, idxs, resp.Gets)
		}
	case wire.OpGetOp:
		resp.GetOps = make([]wire.GetOpResponseSlot, len(req.GetOps))
		for off, idxs := range groupByOffset(req.Header.DSOffsets, len(req.GetOps)) {
			d.dispatchGetOps(ctx, off, req.GetOps, idxs, resp.GetOps)
		}
	case wire.OpDelete:
		resp.Deletes = make([]wire.DeleteResponseSlot, len(req.Deletes))
		for off, idxs := range groupByOffset(req.Header.DSOffsets, len(req.Deletes)) {
			d.dispatchDeletes(ctx, off, req.Deletes, idxs, resp.Deletes)
		}
	case wire.OpHistogram:
		resp.Histograms = make([]wire.HistogramResponseSlot, len(req.Histograms))
		for off, idxs := range groupByOffset(req.Header.DSOffsets, len(req.Histograms)) {
			d.dispatchHistograms(off, req.Histograms, idxs, resp.Histograms)
		}
	default:
		return nil, rangedberr.New(rangedberr.BadTag, "rangeserver.Dispatch")
	}
	metrics.DatastoreOpDuration.WithLabelValues("mixed", req.Header.Op.String()).Observe(timer.Duration().Seconds())
	logger.Debug().Msg("dispatched bulk request")
	return resp, nil
}

func (d *Dispatcher) dispatchPuts(ctx context.Context, offset int32, slots []wire.PutRequestSlot, idxs []int, out []wire.PutResponseSlot) {
	sub := make([]wire.PutRequestSlot, len(idxs))
	for i, idx := range idxs {
		sub[i] = slots[idx]
	}
	store, err := d.store(offset)
	if err != nil {
		fillPutErrors(out, idxs, sub)
		return
	}
	results, err := store.BPut(ctx, sub)
	metrics.DatastoreOpsTotal.WithLabelValues(offsetLabel(offset), wire.OpPut.String()).Add(float64(len(idxs)))
	if err != nil && !rangedberr.Is(err, rangedberr.BackendBatchError) {
		fillPutErrors(out, idxs, sub)
		return
	}
	for i, idx := range idxs {
		out[idx] = results[i]
	}
}

func fillPutErrors(out []wire.PutResponseSlot, idxs []int, sub []wire.PutRequestSlot) {
	for i, idx := range idxs {
		out[idx] = wire.PutResponseSlot{
			Status: wire.Error, SubjectLen: uint32(sub[i].Subject.Len()), PredicateLen: uint32(sub[i].Predicate.Len()),
		}
	}
}

func (d *Dispatcher) dispatchGets(ctx context.Context, offset int32, slots []wire.GetRequestSlot, idxs []int, out []wire.GetResponseSlot) {
	sub := make([]wire.GetRequestSlot, len(idxs))
	for i, idx := range idxs {
		sub[i] = slots[idx]
	}
	store, err := d.store(offset)
	if err != nil {
		for i, idx := range idxs {
			out[idx] = wire.GetResponseSlot{Status: wire.Error, Subject: sub[i].Subject, Predicate: sub[i].Predicate, ObjectType: sub[i].ObjectType}
		}
		return
	}
	results, err := store.BGet(ctx, sub)
	metrics.DatastoreOpsTotal.WithLabelValues(offsetLabel(offset), wire.OpGet.String()).Add(float64(len(idxs)))
	if err != nil {
		for i, idx := range idxs {
			out[idx] = wire.GetResponseSlot{Status: wire.Error, Subject: sub[i].Subject, Predicate: sub[i].Predicate, ObjectType: sub[i].ObjectType}
		}
		return
	}
	for i, idx := range idxs {
		out[idx] = results[i]
	}
}

func (d *Dispatcher) dispatchGetOps(ctx context.Context, offset int32, slots []wire.GetOpRequestSlot, idxs []int, out []wire.GetOpResponseSlot) {
	sub := make([]wire.GetOpRequestSlot, len(idxs))
	for i, idx := range idxs {
		sub[i] = slots[idx]
	}
	store, err := d.store(offset)
	if err != nil {
		for _, idx := range idxs {
			out[idx] = wire.GetOpResponseSlot{Status: wire.Error}
		}
		return
	}
	results, err := store.BGetOp(ctx, sub)
	metrics.DatastoreOpsTotal.WithLabelValues(offsetLabel(offset), wire.OpGetOp.String()).Add(float64(len(idxs)))
	if err != nil {
		for _, idx := range idxs {
			out[idx] = wire.GetOpResponseSlot{Status: wire.Error}
		}
		return
	}
	for i, idx := range idxs {
		out[idx] = results[i]
	}
}

func (d *Dispatcher) dispatchDeletes(ctx context.Context, offset int32, slots []wire.DeleteRequestSlot, idxs []int, out []wire.DeleteResponseSlot) {
	sub := make([]wire.DeleteRequestSlot, len(idxs))
	for i, idx := range idxs {
		sub[i] = slots[idx]
	}
	store, err := d.store(offset)
	if err != nil {
		for i, idx := range idxs {
			out[idx] = wire.DeleteResponseSlot{Status: wire.Error, Subject: sub[i].Subject, Predicate: sub[i].Predicate}
		}
		return
	}
	results, err := store.BDelete(ctx, sub)
	metrics.DatastoreOpsTotal.WithLabelValues(offsetLabel(offset), wire.OpDelete.String()).Add(float64(len(idxs)))
	if err != nil && !rangedberr.Is(err, rangedberr.BackendBatchError) {
		for i, idx := range idxs {
			out[idx] = wire.DeleteResponseSlot{Status: wire.Error, Subject: sub[i].Subject, Predicate: sub[i].Predicate}
		}
		return
	}
	for i, idx := range idxs {
		out[idx] = results[i]
	}
}

func (d *Dispatcher) dispatchHistograms(offset int32, slots []wire.HistogramRequestSlot, idxs []int, out []wire.HistogramResponseSlot) {
	store, err := d.store(offset)
	if err != nil {
		for _, idx := range idxs {
			out[idx] = wire.HistogramResponseSlot{Status: wire.Error}
		}
		return
	}
	for _, idx := range idxs {
		name := slots[idx].Name
		h, ok := store.Histogram(name)
		if !ok {
			out[idx] = wire.HistogramResponseSlot{Status: wire.Error}
			metrics.DatastoreOpsTotal.WithLabelValues(offsetLabel(offset), wire.OpHistogram.String()).Inc()
			continue
		}
		out[idx] = packHistogramResponse(h)
		metrics.HistogramTotalCount.WithLabelValues(offsetLabel(offset), name).Set(float64(h.TotalCount()))
		committed := 0.0
		if h.Committed() {
			committed = 1.0
		}
		metrics.HistogramCommitted.WithLabelValues(offsetLabel(offset), name).Set(committed)
		metrics.DatastoreOpsTotal.WithLabelValues(offsetLabel(offset), wire.OpHistogram.String()).Inc()
	}
}

func packHistogramResponse(h *histogram.Histogram) wire.HistogramResponseSlot {
	w := cursor.NewWriter(nil)
	if err := h.Pack(w); err != nil {
		return wire.HistogramResponseSlot{Status: wire.Error}
	}
	return wire.HistogramResponseSlot{Status: wire.Success, Payload: w.Bytes()}
}

func offsetLabel(offset int32) string {
	return strconv.Itoa(int(offset))
}

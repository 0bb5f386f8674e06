// Package shuffle implements the step that places one queued client item
// into either the local bulk request or a per-destination remote bulk
// request. It is the one place where a (subject, predicate) pair turns
// into a concrete (rank, offset) routing decision and a slot appended to
// a wire.BulkRequest.
package shuffle

import (
	"github.com/cuemby/rangedb/pkg/blob"
	"github.com/cuemby/rangedb/pkg/hash"
	"github.com/cuemby/rangedb/pkg/opitem"
	"github.com/cuemby/rangedb/pkg/rangedberr"
	"github.com/cuemby/rangedb/pkg/wire"
)

// Outcome reports what happened to one item during a shuffle pass.
type Outcome int

const (
	Placed Outcome = iota
	NoSpace
	Dropped
)

// Router holds everything shuffle needs to turn a (subject, predicate)
// into a destination and find (or create) the right bulk request for it.
type Router struct {
	SelfRank      int32
	Hash          hash.Func
	Placement     hash.Placement
	MaxOpsPerSend int
}

// resolve fills in dest from subject/predicate via the configured hash,
// unless dest is already Preset (the Histogram item case) or already
// Valid from a previous shuffle pass. Returns HashMiss if the hash
// returns an out-of-range id.
func (r Router) resolve(dest *opitem.Destination, subject, predicate blob.Blob) error {
	if dest.Valid {
		return nil
	}
	if !dest.Preset {
		id := r.Hash(subject, predicate, r.Placement.TotalDatastores())
		if id < 0 || id >= r.Placement.TotalDatastores() {
			return rangedberr.New(rangedberr.HashMiss, "shuffle.resolve")
		}
		dest.DatastoreID = id
	}
	dest.Rank = r.Placement.GetRank(dest.DatastoreID)
	dest.Offset = r.Placement.GetOffset(dest.DatastoreID)
	if dest.Rank < 0 || dest.Offset < 0 {
		return rangedberr.New(rangedberr.HashMiss, "shuffle.resolve")
	}
	dest.Valid = true
	return nil
}

// target returns the bulk request an item bound for dest should land in,
// creating a remote entry on demand. local is always non-nil; remote may
// be created and inserted into the map when dest.Rank != selfRank.
func (r Router) target(dest opitem.Destination, local *wire.BulkRequest, remote map[int32]*wire.BulkRequest, op wire.Op) *wire.BulkRequest {
	if int32(dest.Rank) == r.SelfRank {
		return local
	}
	rq, ok := remote[int32(dest.Rank)]
	if !ok {
		rq = &wire.BulkRequest{Header: wire.Header{Op: op, Src: r.SelfRank, Dst: int32(dest.Rank)}}
		remote[int32(dest.Rank)] = rq
	}
	return rq
}

// roomFor reports whether bulk currently has fewer than MaxOpsPerSend
// slots of the operation kind it carries.
func (r Router) roomFor(bulk *wire.BulkRequest) bool {
	switch bulk.Header.Op {
	case wire.OpPut:
		return len(bulk.Puts) < r.MaxOpsPerSend
	case wire.OpGet:
		return len(bulk.Gets) < r.MaxOpsPerSend
	case wire.OpGetOp:
		return len(bulk.GetOps) < r.MaxOpsPerSend
	case wire.OpDelete:
		return len(bulk.Deletes) < r.MaxOpsPerSend
	case wire.OpHistogram:
		return len(bulk.Histograms) < r.MaxOpsPerSend
	default:
		return false
	}
}

func appendOffset(bulk *wire.BulkRequest, offset int) {
	bulk.Header.DSOffsets = append(bulk.Header.DSOffsets, int32(offset))
	bulk.Header.Count = int32(len(bulk.Header.DSOffsets))
}

// Puts shuffles a batch of PutItems, appending Placed items into local or
// the appropriate entry of remote and returning the items that didn't
// make it in this round (NoSpace, to be retried next round) alongside a
// HashMiss count (dropped, no result node ever emitted). placed records,
// per destination rank (r.SelfRank for local), the items actually
// appended in append order, the same order their slots land in
// local/remote, which is what a caller needs to zip a wire.BulkResponse
// back to the PutItem each slot started from.
func (r Router) Puts(items []opitem.PutItem, local *wire.BulkRequest, remote map[int32]*wire.BulkRequest) (remaining []opitem.PutItem, dropped int, placed map[int32][]opitem.PutItem) {
	placed = make(map[int32][]opitem.PutItem)
	for _, it := range items {
		if err := r.resolve(&it.Dest, it.Subject, it.Predicate); err != nil {
			dropped++
			continue
		}
		bulk := r.target(it.Dest, local, remote, wire.OpPut)
		if !r.roomFor(bulk) {
			remaining = append(remaining, it)
			continue
		}
		bulk.Puts = append(bulk.Puts, wire.PutRequestSlot{
			Subject: it.Subject, Predicate: it.Predicate, ObjectType: it.Object.Type(), Object: it.Object,
		})
		appendOffset(bulk, it.Dest.Offset)
		placed[int32(it.Dest.Rank)] = append(placed[int32(it.Dest.Rank)], it)
	}
	return remaining, dropped, placed
}

// Gets shuffles a batch of GetItems. See Puts for the placed return value.
func (r Router) Gets(items []opitem.GetItem, local *wire.BulkRequest, remote map[int32]*wire.BulkRequest) (remaining []opitem.GetItem, dropped int, placed map[int32][]opitem.GetItem) {
	placed = make(map[int32][]opitem.GetItem)
	for _, it := range items {
		if err := r.resolve(&it.Dest, it.Subject, it.Predicate); err != nil {
			dropped++
			continue
		}
		bulk := r.target(it.Dest, local, remote, wire.OpGet)
		if !r.roomFor(bulk) {
			remaining = append(remaining, it)
			continue
		}
		bulk.Gets = append(bulk.Gets, wire.GetRequestSlot{
			Subject: it.Subject, Predicate: it.Predicate, ObjectType: it.ObjectType,
		})
		appendOffset(bulk, it.Dest.Offset)
		placed[int32(it.Dest.Rank)] = append(placed[int32(it.Dest.Rank)], it)
	}
	return remaining, dropped, placed
}

// GetOps shuffles a batch of GetOpItems. See Puts for the placed return value.
func (r Router) GetOps(items []opitem.GetOpItem, local *wire.BulkRequest, remote map[int32]*wire.BulkRequest) (remaining []opitem.GetOpItem, dropped int, placed map[int32][]opitem.GetOpItem) {
	placed = make(map[int32][]opitem.GetOpItem)
	for _, it := range items {
		if err := r.resolve(&it.Dest, it.Subject, it.Predicate); err != nil {
			dropped++
			continue
		}
		bulk := r.target(it.Dest, local, remote, wire.OpGetOp)
		if !r.roomFor(bulk) {
			remaining = append(remaining, it)
			continue
		}
		bulk.GetOps = append(bulk.GetOps, wire.GetOpRequestSlot{
			Op: it.Op, Subject: it.Subject, Predicate: it.Predicate, ObjectType: it.ObjectType, NumRecs: int32(it.NumRecs),
		})
		appendOffset(bulk, it.Dest.Offset)
		placed[int32(it.Dest.Rank)] = append(placed[int32(it.Dest.Rank)], it)
	}
	return remaining, dropped, placed
}

// Deletes shuffles a batch of DeleteItems. See Puts for the placed return value.
func (r Router) Deletes(items []opitem.DeleteItem, local *wire.BulkRequest, remote map[int32]*wire.BulkRequest) (remaining []opitem.DeleteItem, dropped int, placed map[int32][]opitem.DeleteItem) {
	placed = make(map[int32][]opitem.DeleteItem)
	for _, it := range items {
		if err := r.resolve(&it.Dest, it.Subject, it.Predicate); err != nil {
			dropped++
			continue
		}
		bulk := r.target(it.Dest, local, remote, wire.OpDelete)
		if !r.roomFor(bulk) {
			remaining = append(remaining, it)
			continue
		}
		bulk.Deletes = append(bulk.Deletes, wire.DeleteRequestSlot{Subject: it.Subject, Predicate: it.Predicate})
		appendOffset(bulk, it.Dest.Offset)
		placed[int32(it.Dest.Rank)] = append(placed[int32(it.Dest.Rank)], it)
	}
	return remaining, dropped, placed
}

// Histograms shuffles a batch of HistogramItems. These always carry a
// Preset destination (a histogram has no subject/predicate content to
// hash), so resolve never invokes the hash for them. See Puts for the
// placed return value.
func (r Router) Histograms(items []opitem.HistogramItem, local *wire.BulkRequest, remote map[int32]*wire.BulkRequest) (remaining []opitem.HistogramItem, dropped int, placed map[int32][]opitem.HistogramItem) {
	placed = make(map[int32][]opitem.HistogramItem)
	for _, it := range items {
		if err := r.resolve(&it.Dest, blob.Blob{}, blob.Blob{}); err != nil {
			dropped++
			continue
		}
		bulk := r.target(it.Dest, local, remote, wire.OpHistogram)
		if !r.roomFor(bulk) {
			remaining = append(remaining, it)
			continue
		}
		bulk.Histograms = append(bulk.Histograms, wire.HistogramRequestSlot{Name: it.Name})
		appendOffset(bulk, it.Dest.Offset)
		placed[int32(it.Dest.Rank)] = append(placed[int32(it.Dest.Rank)], it)
	}
	return remaining, dropped, placed
}

// Package opitem is the shape of a single pending client operation: what
// sits in a pkg/queue.Queue between being enqueued by the client and
// being shuffled onto the wire.
package opitem

import (
	"time"

	"github.com/cuemby/rangedb/pkg/blob"
)

// GetOpKind selects the traversal direction for a GetOp request.
type GetOpKind int

const (
	EQ GetOpKind = iota
	NEXT
	PREV
	FirstGetOp
	LastGetOp
)

func (k GetOpKind) String() string {
	switch k {
	case EQ:
		return "EQ"
	case NEXT:
		return "NEXT"
	case PREV:
		return "PREV"
	case FirstGetOp:
		return "FIRST"
	case LastGetOp:
		return "LAST"
	default:
		return "UNKNOWN"
	}
}

// Destination is the resolved routing target for an item, filled in by
// shuffle. DatastoreID may be pre-set by the caller (the
// Histogram item does this, since a histogram is datastore-local and not
// content-addressed); when it is not, shuffle computes it by hashing
// Subject/Predicate. Valid is false until shuffle has run.
type Destination struct {
	DatastoreID int
	Rank        int
	Offset      int
	Valid       bool
	Preset      bool
}

// PutItem is a pending Put: write Object at (Subject, Predicate).
type PutItem struct {
	Subject    blob.Blob
	Predicate  blob.Blob
	Object     blob.Blob
	Dest       Destination
	EnqueuedAt time.Time
}

// GetItem is a pending Get: fetch the object stored at (Subject, Predicate).
// ObjectType tells the datastore how to decode the value it finds.
type GetItem struct {
	Subject    blob.Blob
	Predicate  blob.Blob
	ObjectType blob.DataType
	Dest       Destination
	EnqueuedAt time.Time
}

// GetOpItem is a pending GetOp: a positional lookup (EQ/NEXT/PREV/FIRST/
// LAST) over the (subject, predicate) key ordering, optionally returning
// NumRecs consecutive results.
type GetOpItem struct {
	Subject    blob.Blob
	Predicate  blob.Blob
	ObjectType blob.DataType
	Op         GetOpKind
	NumRecs    int
	Dest       Destination
	EnqueuedAt time.Time
}

// DeleteItem is a pending Delete at (Subject, Predicate).
type DeleteItem struct {
	Subject    blob.Blob
	Predicate  blob.Blob
	Dest       Destination
	EnqueuedAt time.Time
}

// HistogramItem is a pending Histogram read. It always carries a Preset
// Destination: histograms are per-datastore aggregates configured by name,
// not content-addressed, so the caller names the target datastore id
// directly rather than letting shuffle hash (Subject, Predicate); there
// is no subject/predicate content to hash in the first place.
type HistogramItem struct {
	Name       string
	Dest       Destination
	EnqueuedAt time.Time
}

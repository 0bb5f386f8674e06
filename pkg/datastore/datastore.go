// Package datastore defines the backend abstraction one range server
// datastore implements: open/close/sync lifecycle, the bulk operations,
// histogram storage, and aggregated stats.
package datastore

import (
	"context"
	"time"

	"github.com/cuemby/rangedb/pkg/histogram"
	"github.com/cuemby/rangedb/pkg/wire"
)

// Event is one stamped occurrence of a put or get batch, aggregated by
// Stats.
type Event struct {
	Start time.Time
	End   time.Time
	Count int
	Size  int64
}

// Stats aggregates every Event recorded against a datastore. Num* and
// *Time only ever grow over the datastore's lifetime.
type Stats struct {
	NumPuts int64
	PutTime time.Duration
	NumGets int64
	GetTime time.Duration
}

// Datastore is one local storage engine instance owned by exactly one
// range server on exactly one rank. Implementations need not be safe for
// concurrent use; all operations on one datastore are serialized under
// that datastore's mutex.
type Datastore interface {
	Open(name string) error
	Close() error
	Usable() bool
	Sync() error

	BPut(ctx context.Context, reqs []wire.PutRequestSlot) ([]wire.PutResponseSlot, error)
	BGet(ctx context.Context, reqs []wire.GetRequestSlot) ([]wire.GetResponseSlot, error)
	BGetOp(ctx context.Context, reqs []wire.GetOpRequestSlot) ([]wire.GetOpResponseSlot, error)
	BDelete(ctx context.Context, reqs []wire.DeleteRequestSlot) ([]wire.DeleteResponseSlot, error)

	// ConfigureHistogram registers a named streaming estimator that BPut
	// feeds whenever a triple's predicate matches name and its object is
	// numeric.
	ConfigureHistogram(name string, firstN int, generator histogram.Generator)
	// Histogram looks up a configured histogram by name.
	Histogram(name string) (*histogram.Histogram, bool)
	// WriteHistograms serializes every configured histogram to the
	// backend, keyed by name. memstore stores them under
	// HistogramsSubject; boltstore stores them in a separate bucket, not
	// under that subject.
	WriteHistograms() error
	// ReadHistograms reloads the named histograms previously written by
	// WriteHistograms.
	ReadHistograms(names []string) error

	Stats() Stats
}

// HistogramsSubject is the reserved subject memstore stores histograms
// under, keyed by name as the predicate. The leading NUL sorts it ahead
// of every user triple whose subject is non-empty and does not start
// with a NUL byte.
const HistogramsSubject = "\x00__rangedb_histograms__"

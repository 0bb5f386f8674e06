// Package resultstream implements the linked result list returned by
// every client flush operation: one node per per-slot outcome, in the
// order operations were enqueued to their destination.
package resultstream

import (
	"time"

	"github.com/cuemby/rangedb/pkg/blob"
	"github.com/cuemby/rangedb/pkg/histogram"
	"github.com/cuemby/rangedb/pkg/wire"
)

// Kind distinguishes which client operation produced a Node, so the typed
// accessors know whether they apply.
type Kind int

const (
	KindPut Kind = iota
	KindGet
	KindGetOp
	KindDelete
	KindHistogram
)

// Node is one per-slot outcome. It holds borrowed references into the
// caller's original Blobs, which must stay alive until the stream is
// destroyed; Node never copies subject/predicate/object bytes of its
// own accord.
type Node struct {
	kind        Kind
	op          wire.Op
	status      wire.Status
	rangeServer int32
	subject     blob.Blob
	predicate   blob.Blob
	object      blob.Blob
	histogram   *histogram.Histogram
	enqueuedAt  time.Time
	completedAt time.Time

	// chain holds the flattened per-record nodes of one GetOp slot; Add
	// walks it and appends each member individually instead of the
	// wrapper node itself.
	chain []*Node

	next *Node
}

// NewPutNode builds a result node for one BPut response slot.
func NewPutNode(status wire.Status, rangeServer int32, subject, predicate blob.Blob, enqueuedAt, completedAt time.Time) *Node {
	return &Node{kind: KindPut, op: wire.OpPut, status: status, rangeServer: rangeServer, subject: subject, predicate: predicate, enqueuedAt: enqueuedAt, completedAt: completedAt}
}

// NewGetNode builds a result node for one BGet response slot.
func NewGetNode(status wire.Status, rangeServer int32, subject, predicate, object blob.Blob, enqueuedAt, completedAt time.Time) *Node {
	return &Node{kind: KindGet, op: wire.OpGet, status: status, rangeServer: rangeServer, subject: subject, predicate: predicate, object: object, enqueuedAt: enqueuedAt, completedAt: completedAt}
}

// NewDeleteNode builds a result node for one BDelete response slot.
func NewDeleteNode(status wire.Status, rangeServer int32, subject, predicate blob.Blob, enqueuedAt, completedAt time.Time) *Node {
	return &Node{kind: KindDelete, op: wire.OpDelete, status: status, rangeServer: rangeServer, subject: subject, predicate: predicate, enqueuedAt: enqueuedAt, completedAt: completedAt}
}

// NewHistogramNode builds a result node for one BHistogram response slot.
func NewHistogramNode(status wire.Status, rangeServer int32, h *histogram.Histogram, enqueuedAt, completedAt time.Time) *Node {
	return &Node{kind: KindHistogram, op: wire.OpHistogram, status: status, rangeServer: rangeServer, histogram: h, enqueuedAt: enqueuedAt, completedAt: completedAt}
}

// NewGetOpChain wraps the per-record nodes of one BGetOp response slot so
// Stream.Add can flatten them in order.
func NewGetOpChain(records []*Node) *Node {
	return &Node{kind: KindGetOp, op: wire.OpGetOp, chain: records}
}

// NewGetOpRecordNode builds one record within a GetOp chain.
func NewGetOpRecordNode(status wire.Status, rangeServer int32, subject, predicate, object blob.Blob, enqueuedAt, completedAt time.Time) *Node {
	return &Node{kind: KindGetOp, op: wire.OpGetOp, status: status, rangeServer: rangeServer, subject: subject, predicate: predicate, object: object, enqueuedAt: enqueuedAt, completedAt: completedAt}
}

// Stream is a singly-linked result list plus a cursor and total duration.
type Stream struct {
	head, tail *Node
	cursor     *Node
	size       int
	duration   time.Duration
}

// New returns an empty Stream.
func New() *Stream { return &Stream{} }

func (s *Stream) appendOne(n *Node) {
	n.next = nil
	if s.tail == nil {
		s.head, s.tail = n, n
	} else {
		s.tail.next = n
		s.tail = n
	}
	s.size++
	if d := n.completedAt.Sub(n.enqueuedAt); d > 0 {
		s.duration += d
	}
}

// Add appends node. If node is a GetOp chain wrapper (built by
// NewGetOpChain), its members are appended individually instead of the
// wrapper.
func (s *Stream) Add(n *Node) {
	if n == nil {
		return
	}
	if n.kind == KindGetOp && n.chain != nil {
		for _, member := range n.chain {
			s.appendOne(member)
		}
		return
	}
	s.appendOne(n)
}

// Append splices other onto the end of s; other's duration accumulates
// into s's. other is left empty.
func (s *Stream) Append(other *Stream) {
	if other == nil || other.head == nil {
		return
	}
	if s.tail == nil {
		s.head = other.head
	} else {
		s.tail.next = other.head
	}
	s.tail = other.tail
	s.size += other.size
	s.duration += other.duration
	other.head, other.tail, other.size, other.duration = nil, nil, 0, 0
}

// Size returns the number of nodes in the stream.
func (s *Stream) Size() int { return s.size }

// Duration returns the accumulated per-node wall-clock duration.
func (s *Stream) Duration() time.Duration { return s.duration }

// GoToHead resets the cursor to the first node.
func (s *Stream) GoToHead() { s.cursor = s.head }

// GoToNext advances the cursor one node.
func (s *Stream) GoToNext() {
	if s.cursor != nil {
		s.cursor = s.cursor.next
	}
}

// ValidIterator reports whether the cursor currently points at a node.
func (s *Stream) ValidIterator() bool { return s.cursor != nil }

// Curr returns the node the cursor currently points at, or nil.
func (s *Stream) Curr() *Node { return s.cursor }

// Op returns the operation kind of the current node.
func (s *Stream) Op() wire.Op {
	if s.cursor == nil {
		return wire.Op(0)
	}
	return s.cursor.op
}

// Status returns the outcome status of the current node.
func (s *Stream) Status() wire.Status {
	if s.cursor == nil {
		return wire.Error
	}
	return s.cursor.status
}

// RangeServer returns the rank that produced the current node.
func (s *Stream) RangeServer() int32 {
	if s.cursor == nil {
		return -1
	}
	return s.cursor.rangeServer
}

func (s *Stream) hasKind(k Kind) bool { return s.cursor != nil && s.cursor.kind == k }

// Subject returns the current node's subject blob. Status is Error unless
// the current node's kind carries a subject (Put/Get/GetOp/Delete).
func (s *Stream) Subject() (blob.Blob, wire.Status) {
	switch {
	case s.hasKind(KindPut), s.hasKind(KindGet), s.hasKind(KindGetOp), s.hasKind(KindDelete):
		return s.cursor.subject, wire.Success
	default:
		return blob.Blob{}, wire.Error
	}
}

// Predicate returns the current node's predicate blob, under the same
// kind rule as Subject.
func (s *Stream) Predicate() (blob.Blob, wire.Status) {
	switch {
	case s.hasKind(KindPut), s.hasKind(KindGet), s.hasKind(KindGetOp), s.hasKind(KindDelete):
		return s.cursor.predicate, wire.Success
	default:
		return blob.Blob{}, wire.Error
	}
}

// Object returns the current node's object blob. Status is Error unless
// the current node is a Get or GetOp record.
func (s *Stream) Object() (blob.Blob, wire.Status) {
	if s.hasKind(KindGet) || s.hasKind(KindGetOp) {
		return s.cursor.object, wire.Success
	}
	return blob.Blob{}, wire.Error
}

// Histogram returns the current node's histogram. Status is Error unless
// the current node is a Histogram result.
func (s *Stream) Histogram() (*histogram.Histogram, wire.Status) {
	if s.hasKind(KindHistogram) {
		return s.cursor.histogram, wire.Success
	}
	return nil, wire.Error
}

// Timestamps returns the current node's enqueue/completion times.
func (s *Stream) Timestamps() (enqueuedAt, completedAt time.Time, status wire.Status) {
	if s.cursor == nil {
		return time.Time{}, time.Time{}, wire.Error
	}
	return s.cursor.enqueuedAt, s.cursor.completedAt, wire.Success
}

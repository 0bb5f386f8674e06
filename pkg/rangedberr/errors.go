// Package rangedberr defines the error taxonomy shared by every layer of
// rangedb: client entry points, shuffle, the wire codec, and datastore
// dispatch all classify failures into one of these kinds so callers can
// branch on Kind without string matching.
package rangedberr

import (
	"errors"
	"fmt"
)

// Kind classifies a rangedb error. Each kind carries its own propagation
// rule, documented on the constant.
type Kind int

const (
	// InvalidArgument is raised at a client API entry point (nil blob, bad
	// ratio, unknown op) and returned to the caller without queuing anything.
	InvalidArgument Kind = iota
	// HashMiss means the configured hash returned an out-of-range datastore
	// id during shuffle; the offending item is dropped, no result node is
	// emitted for it.
	HashMiss
	// ShortBuffer means a packer/unpacker ran out of room.
	ShortBuffer
	// BadTag means an unpacker read an operation tag it doesn't recognize.
	BadTag
	// BackendError is a single-slot datastore failure; the batch continues.
	BackendError
	// BackendBatchError is a whole-batch commit failure; every slot in the
	// batch transitions to ERROR.
	BackendBatchError
	// TransportError means no response was obtained for a destination.
	TransportError
	// Shutdown means the running flag flipped mid-operation.
	Shutdown
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case HashMiss:
		return "hash_miss"
	case ShortBuffer:
		return "short_buffer"
	case BadTag:
		return "bad_tag"
	case BackendError:
		return "backend_error"
	case BackendBatchError:
		return "backend_batch_error"
	case TransportError:
		return "transport_error"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Error is a rangedb error tagged with a Kind, wrapping an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap builds an *Error around an existing cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Package blob implements the owning/referencing byte-slice type every
// triple component (subject, predicate, object) is built from. A Blob
// never partially owns its backing bytes: an owning Blob releases exactly
// once; a referencing Blob borrows from a longer-lived buffer and never
// releases.
package blob

import (
	"bytes"

	"github.com/cuemby/rangedb/pkg/cursor"
	"github.com/cuemby/rangedb/pkg/rangedberr"
)

// DataType tags the encoding of a Blob's bytes. It is advisory for the
// blob itself but load-bearing for the datastore's numeric transforms.
type DataType uint8

const (
	Byte DataType = iota
	Pointer
	Tracked
	Int32
	Int64
	UInt32
	UInt64
	Float
	Double
)

func (t DataType) String() string {
	switch t {
	case Byte:
		return "byte"
	case Pointer:
		return "pointer"
	case Tracked:
		return "tracked"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case UInt32:
		return "uint32"
	case UInt64:
		return "uint64"
	case Float:
		return "float"
	case Double:
		return "double"
	default:
		return "unknown"
	}
}

// Numeric reports whether this type participates in histogram tracking
// and the order-preserving numeric encoding.
func (t DataType) Numeric() bool {
	switch t {
	case Int32, Int64, UInt32, UInt64, Float, Double:
		return true
	default:
		return false
	}
}

// Blob is a byte slice plus a length and a DataType tag. The owning flag
// is invisible to callers; it only governs what Release does.
type Blob struct {
	data   []byte
	dtype  DataType
	owning bool
}

// NewOwning takes ownership of data: it will be released exactly once by
// Release, and the Blob is free to hold onto it past the lifetime of
// whatever produced it.
func NewOwning(data []byte, t DataType) Blob {
	return Blob{data: data, dtype: t, owning: true}
}

// NewReference borrows data. The caller guarantees data outlives the Blob
// and every structure (queue node, result node) that copies this Blob by
// value; Release is a no-op for a referencing Blob.
func NewReference(data []byte, t DataType) Blob {
	return Blob{data: data, dtype: t, owning: false}
}

// Empty reports the Blob's zero-value emptiness invariant: len == 0 iff
// data is empty.
func (b Blob) Empty() bool { return len(b.data) == 0 }

// Len returns the number of bytes in the blob.
func (b Blob) Len() int { return len(b.data) }

// Data returns the underlying bytes. For a referencing Blob this aliases
// the caller's buffer.
func (b Blob) Data() []byte { return b.data }

// Type returns the DataType tag.
func (b Blob) Type() DataType { return b.dtype }

// Owning reports whether this Blob owns its backing bytes.
func (b Blob) Owning() bool { return b.owning }

// Release drops the Blob's reference to its backing bytes. It is
// idempotent and a no-op on a referencing Blob. The GC does the actual
// reclaiming, but Release still enforces the moved-from contract so a
// Blob can't be read again after release.
func (b *Blob) Release() {
	if b.owning {
		b.data = nil
	}
}

// Equal compares two blobs byte-wise; the DataType tag is not part of
// identity.
func (b Blob) Equal(other Blob) bool {
	return bytes.Equal(b.data, other.data)
}

// PackSize is the number of bytes Pack will write: a fixed-width length
// prefix plus the payload.
func (b Blob) PackSize() int {
	return cursor.Width + len(b.data)
}

// Pack writes [len][bytes] to c.
func (b Blob) Pack(c *cursor.Cursor) error {
	if err := c.WriteUint32(uint32(len(b.data))); err != nil {
		return err
	}
	return c.WriteBytes(b.data)
}

// Unpack reads a length-prefixed byte run from c and wraps it with
// DataType t. When allocating is true the bytes are copied into a new
// owning Blob; otherwise the Blob references the cursor's backing buffer.
func Unpack(c *cursor.Cursor, t DataType, allocating bool) (Blob, error) {
	n, err := c.ReadUint32()
	if err != nil {
		return Blob{}, rangedberr.Wrap(rangedberr.ShortBuffer, "blob.unpack", err)
	}
	var data []byte
	if allocating {
		data, err = c.ReadCopy(int(n))
	} else {
		data, err = c.ReadBytes(int(n))
	}
	if err != nil {
		return Blob{}, rangedberr.Wrap(rangedberr.ShortBuffer, "blob.unpack", err)
	}
	if allocating {
		return NewOwning(data, t), nil
	}
	return NewReference(data, t), nil
}

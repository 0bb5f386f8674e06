// Package transform implements the datastore's encode/decode callback
// table: the byte-level numeric transforms applied to an object before
// it is written to a backend so that byte-wise lexicographic order over
// encoded bytes matches numeric order, which is what makes BGetOp range
// scans behave.
//
// Unsigned integers are written big-endian; signed integers are written
// big-endian with the sign bit of their two's-complement representation
// flipped. Floats and doubles use the IEEE-754
// order-preserving transform (flip the sign bit for positive values, flip
// every bit for negative ones). Both are fixed-width so decode can
// recover the exact input. Byte, Pointer and Tracked objects pass
// through unchanged.
package transform

import (
	"encoding/binary"
	"math"

	"github.com/cuemby/rangedb/pkg/blob"
	"github.com/cuemby/rangedb/pkg/rangedberr"
)

// Func transforms src into a new byte slice.
type Func func(src []byte) ([]byte, error)

// Callbacks holds one encode/decode pair per DataType.
type Callbacks struct {
	Encode map[blob.DataType]Func
	Decode map[blob.DataType]Func
}

// Default returns the standard encode/decode table used by every
// rangedb datastore backend.
func Default() *Callbacks {
	return &Callbacks{
		Encode: map[blob.DataType]Func{
			blob.Byte:    passthrough,
			blob.Pointer: passthrough,
			blob.Tracked: passthrough,
			blob.Int32:   encodeInt32,
			blob.UInt32:  encodeUint32,
			blob.Int64:   encodeInt64,
			blob.UInt64:  encodeUint64,
			blob.Float:   encodeFloat,
			blob.Double:  encodeDouble,
		},
		Decode: map[blob.DataType]Func{
			blob.Byte:    passthrough,
			blob.Pointer: passthrough,
			blob.Tracked: passthrough,
			blob.Int32:   decodeInt32,
			blob.UInt32:  decodeUint32,
			blob.Int64:   decodeInt64,
			blob.UInt64:  decodeUint64,
			blob.Float:   decodeFloat,
			blob.Double:  decodeDouble,
		},
	}
}

// EncodeValue runs the encode callback for t, or returns an error tagged
// BackendError if t isn't in the table.
func (c *Callbacks) EncodeValue(t blob.DataType, src []byte) ([]byte, error) {
	fn, ok := c.Encode[t]
	if !ok {
		return nil, rangedberr.New(rangedberr.BackendError, "transform.encode")
	}
	return fn(src)
}

// DecodeValue runs the decode callback for t.
func (c *Callbacks) DecodeValue(t blob.DataType, src []byte) ([]byte, error) {
	fn, ok := c.Decode[t]
	if !ok {
		return nil, rangedberr.New(rangedberr.BackendError, "transform.decode")
	}
	return fn(src)
}

func passthrough(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

const signBit32 = uint32(1) << 31
const signBit64 = uint64(1) << 63

func requireLen(src []byte, n int) error {
	if len(src) != n {
		return rangedberr.New(rangedberr.BackendError, "transform.requireLen")
	}
	return nil
}

func encodeUint32(src []byte) ([]byte, error) {
	if err := requireLen(src, 4); err != nil {
		return nil, err
	}
	v := binary.LittleEndian.Uint32(src)
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, v)
	return out, nil
}

func decodeUint32(src []byte) ([]byte, error) {
	if err := requireLen(src, 4); err != nil {
		return nil, err
	}
	v := binary.BigEndian.Uint32(src)
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, v)
	return out, nil
}

func encodeInt32(src []byte) ([]byte, error) {
	if err := requireLen(src, 4); err != nil {
		return nil, err
	}
	v := binary.LittleEndian.Uint32(src) ^ signBit32
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, v)
	return out, nil
}

func decodeInt32(src []byte) ([]byte, error) {
	if err := requireLen(src, 4); err != nil {
		return nil, err
	}
	v := binary.BigEndian.Uint32(src) ^ signBit32
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, v)
	return out, nil
}

func encodeUint64(src []byte) ([]byte, error) {
	if err := requireLen(src, 8); err != nil {
		return nil, err
	}
	v := binary.LittleEndian.Uint64(src)
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, v)
	return out, nil
}

func decodeUint64(src []byte) ([]byte, error) {
	if err := requireLen(src, 8); err != nil {
		return nil, err
	}
	v := binary.BigEndian.Uint64(src)
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, v)
	return out, nil
}

func encodeInt64(src []byte) ([]byte, error) {
	if err := requireLen(src, 8); err != nil {
		return nil, err
	}
	v := binary.LittleEndian.Uint64(src) ^ signBit64
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, v)
	return out, nil
}

func decodeInt64(src []byte) ([]byte, error) {
	if err := requireLen(src, 8); err != nil {
		return nil, err
	}
	v := binary.BigEndian.Uint64(src) ^ signBit64
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, v)
	return out, nil
}

// orderPreservingFloatBits maps IEEE-754 bits to a representation whose
// unsigned numeric order matches the float's numeric order: flip the sign
// bit for non-negative values, flip every bit for negative ones.
func orderPreservingFloatBits(bits uint32) uint32 {
	if bits&signBit32 != 0 {
		return ^bits
	}
	return bits | signBit32
}

func reverseFloatBits(bits uint32) uint32 {
	if bits&signBit32 != 0 {
		return bits &^ signBit32
	}
	return ^bits
}

func orderPreservingDoubleBits(bits uint64) uint64 {
	if bits&signBit64 != 0 {
		return ^bits
	}
	return bits | signBit64
}

func reverseDoubleBits(bits uint64) uint64 {
	if bits&signBit64 != 0 {
		return bits &^ signBit64
	}
	return ^bits
}

func encodeFloat(src []byte) ([]byte, error) {
	if err := requireLen(src, 4); err != nil {
		return nil, err
	}
	f := math.Float32frombits(binary.LittleEndian.Uint32(src))
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, orderPreservingFloatBits(math.Float32bits(f)))
	return out, nil
}

func decodeFloat(src []byte) ([]byte, error) {
	if err := requireLen(src, 4); err != nil {
		return nil, err
	}
	bits := reverseFloatBits(binary.BigEndian.Uint32(src))
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, bits)
	return out, nil
}

func encodeDouble(src []byte) ([]byte, error) {
	if err := requireLen(src, 8); err != nil {
		return nil, err
	}
	d := math.Float64frombits(binary.LittleEndian.Uint64(src))
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, orderPreservingDoubleBits(math.Float64bits(d)))
	return out, nil
}

func decodeDouble(src []byte) ([]byte, error) {
	if err := requireLen(src, 8); err != nil {
		return nil, err
	}
	bits := reverseDoubleBits(binary.BigEndian.Uint64(src))
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, bits)
	return out, nil
}

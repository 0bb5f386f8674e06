// Package cursor implements the fixed-width, big-endian byte cursor that
// every packer/unpacker in rangedb is built on top of. A Cursor either
// wraps a caller-supplied, fixed-capacity buffer (writing into it fails
// with a ShortBuffer error once the capacity is exhausted) or owns a
// growable buffer allocated on demand.
package cursor

import (
	"encoding/binary"
	"fmt"

	"github.com/cuemby/rangedb/pkg/rangedberr"
)

// Width is the fixed byte width used for every length/count field on the
// wire: subject/predicate lengths, blob lengths, bulk message counts.
// One width for the whole build; nothing else ever sizes these fields.
const Width = 4

// Cursor is a position-tracking view over a byte buffer used for both
// packing (writing) and unpacking (reading).
type Cursor struct {
	buf   []byte
	pos   int
	fixed bool
}

// NewWriter returns a Cursor for packing. If buf is nil the cursor owns a
// growable buffer; otherwise writes are capped at cap(buf) and overflow
// returns a rangedberr.ShortBuffer error.
func NewWriter(buf []byte) *Cursor {
	if buf == nil {
		return &Cursor{buf: make([]byte, 0, 256), fixed: false}
	}
	return &Cursor{buf: buf[:0], fixed: true}
}

// NewReader returns a Cursor for unpacking a caller-supplied buffer.
func NewReader(buf []byte) *Cursor {
	return &Cursor{buf: buf, fixed: true}
}

// Pos returns the current read/write offset.
func (c *Cursor) Pos() int { return c.pos }

// Bytes returns everything written so far (valid for writer cursors).
func (c *Cursor) Bytes() []byte { return c.buf }

// Remaining reports how many more bytes can be read from a reader cursor.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

func shortBuffer(op string) error {
	return rangedberr.New(rangedberr.ShortBuffer, op)
}

func (c *Cursor) ensure(n int) error {
	if c.fixed {
		if c.pos+n > cap(c.buf) {
			return shortBuffer("cursor.write")
		}
		return nil
	}
	if c.pos+n > cap(c.buf) {
		grown := make([]byte, len(c.buf), (c.pos+n)*2)
		copy(grown, c.buf)
		c.buf = grown
	}
	return nil
}

// WriteByte writes a single byte.
func (c *Cursor) WriteByte(v byte) error {
	if err := c.ensure(1); err != nil {
		return err
	}
	c.buf = append(c.buf[:c.pos], v)
	c.pos++
	return nil
}

// WriteUint32 writes v big-endian, fixed Width bytes.
func (c *Cursor) WriteUint32(v uint32) error {
	if err := c.ensure(Width); err != nil {
		return err
	}
	var tmp [Width]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	c.buf = append(c.buf[:c.pos], tmp[:]...)
	c.pos += Width
	return nil
}

// WriteUint64 writes v big-endian, fixed 8 bytes. Used for pointer-sized
// addr fields in request/response slots.
func (c *Cursor) WriteUint64(v uint64) error {
	if err := c.ensure(8); err != nil {
		return err
	}
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	c.buf = append(c.buf[:c.pos], tmp[:]...)
	c.pos += 8
	return nil
}

// WriteBytes writes p verbatim with no length prefix.
func (c *Cursor) WriteBytes(p []byte) error {
	if err := c.ensure(len(p)); err != nil {
		return err
	}
	c.buf = append(c.buf[:c.pos], p...)
	c.pos += len(p)
	return nil
}

// ReadByte reads a single byte.
func (c *Cursor) ReadByte() (byte, error) {
	if c.Remaining() < 1 {
		return 0, shortBuffer("cursor.read")
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

// ReadUint32 reads a fixed Width big-endian uint32.
func (c *Cursor) ReadUint32() (uint32, error) {
	if c.Remaining() < Width {
		return 0, shortBuffer("cursor.read")
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos : c.pos+Width])
	c.pos += Width
	return v, nil
}

// ReadUint64 reads a fixed 8-byte big-endian uint64.
func (c *Cursor) ReadUint64() (uint64, error) {
	if c.Remaining() < 8 {
		return 0, shortBuffer("cursor.read")
	}
	v := binary.BigEndian.Uint64(c.buf[c.pos : c.pos+8])
	c.pos += 8
	return v, nil
}

// ReadBytes returns a view of the next n bytes. The returned slice aliases
// the cursor's backing buffer; callers that need to outlive the buffer
// must copy.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, shortBuffer("cursor.read")
	}
	v := c.buf[c.pos : c.pos+n]
	c.pos += n
	return v, nil
}

// ReadCopy is ReadBytes followed by an explicit copy, for callers building
// an owning Blob out of the unpacked bytes.
func (c *Cursor) ReadCopy(n int) ([]byte, error) {
	v, err := c.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, v)
	return out, nil
}

func (c *Cursor) String() string {
	return fmt.Sprintf("cursor(pos=%d, len=%d, fixed=%v)", c.pos, len(c.buf), c.fixed)
}

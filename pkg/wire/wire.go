// Package wire implements the bulk request/response byte format every
// transport carries between a client and a range server. It is the one
// place that defines the wire layout: header, per-operation slot
// layouts, and the status codes.
package wire

import (
	"github.com/cuemby/rangedb/pkg/cursor"
	"github.com/cuemby/rangedb/pkg/rangedberr"
)

// Direction tags a message as outbound or inbound relative to the range
// server that processes it.
type Direction uint8

const (
	Request Direction = iota
	Response
)

// Op names the bulk operation kind carried by one message. All slots in a
// single BulkRequest/BulkResponse share one Op.
type Op uint8

const (
	OpPut Op = iota
	OpGet
	OpGetOp
	OpDelete
	OpHistogram
)

func (o Op) String() string {
	switch o {
	case OpPut:
		return "PUT"
	case OpGet:
		return "GET"
	case OpGetOp:
		return "GETOP"
	case OpDelete:
		return "DELETE"
	case OpHistogram:
		return "HISTOGRAM"
	default:
		return "UNKNOWN"
	}
}

// Status is the per-slot outcome. Unset must never leave the range
// server: dispatch rewrites every Unset slot to Success or Error before
// a response is packed.
type Status uint8

const (
	Unset Status = iota
	Success
	Error
)

func (s Status) String() string {
	switch s {
	case Unset:
		return "UNSET"
	case Success:
		return "SUCCESS"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Header is identical across request and response messages: who sent it,
// who it's for, the operation kind, and which local datastore offsets on
// the destination rank it addresses.
type Header struct {
	Direction  Direction
	Op         Op
	Src        int32
	Dst        int32
	Count      int32
	DSOffsets  []int32
}

func (h Header) pack(c *cursor.Cursor) error {
	if err := c.WriteByte(byte(h.Direction)); err != nil {
		return err
	}
	if err := c.WriteByte(byte(h.Op)); err != nil {
		return err
	}
	if err := c.WriteUint32(uint32(h.Src)); err != nil {
		return err
	}
	if err := c.WriteUint32(uint32(h.Dst)); err != nil {
		return err
	}
	if err := c.WriteUint32(uint32(h.Count)); err != nil {
		return err
	}
	for _, off := range h.DSOffsets {
		if err := c.WriteUint32(uint32(off)); err != nil {
			return err
		}
	}
	return nil
}

func unpackHeader(c *cursor.Cursor) (Header, error) {
	var h Header
	dir, err := c.ReadByte()
	if err != nil {
		return h, err
	}
	opByte, err := c.ReadByte()
	if err != nil {
		return h, err
	}
	src, err := c.ReadUint32()
	if err != nil {
		return h, err
	}
	dst, err := c.ReadUint32()
	if err != nil {
		return h, err
	}
	count, err := c.ReadUint32()
	if err != nil {
		return h, err
	}
	h.Direction = Direction(dir)
	h.Op = Op(opByte)
	h.Src = int32(src)
	h.Dst = int32(dst)
	h.Count = int32(count)
	if h.Count < 0 {
		return h, rangedberr.New(rangedberr.BadTag, "wire.unpackHeader")
	}
	h.DSOffsets = make([]int32, h.Count)
	for i := range h.DSOffsets {
		off, err := c.ReadUint32()
		if err != nil {
			return h, err
		}
		h.DSOffsets[i] = int32(off)
	}
	return h, nil
}

package wire

import (
	"github.com/cuemby/rangedb/pkg/blob"
	"github.com/cuemby/rangedb/pkg/cursor"
	"github.com/cuemby/rangedb/pkg/opitem"
)

// addr is an opaque correlation token threaded from a request slot to
// its matching response slot: the sender assigns each slot a token when
// building the request, and the response echoes it back unchanged. The
// field is pointer-sized (8 bytes) on the wire.
type addr = uint64

func packBlob(c *cursor.Cursor, b blob.Blob) error { return b.Pack(c) }

func unpackBlob(c *cursor.Cursor, t blob.DataType, allocating bool) (blob.Blob, error) {
	return blob.Unpack(c, t, allocating)
}

// PutRequestSlot is one BPut request entry: subject (with a correlation
// token for the matching response slot), predicate (same), the object's
// declared type, and the object itself.
type PutRequestSlot struct {
	Subject       blob.Blob
	SubjectAddr   addr
	Predicate     blob.Blob
	PredicateAddr addr
	ObjectType    blob.DataType
	Object        blob.Blob
}

func (s PutRequestSlot) pack(c *cursor.Cursor) error {
	if err := packBlob(c, s.Subject); err != nil {
		return err
	}
	if err := c.WriteUint64(s.SubjectAddr); err != nil {
		return err
	}
	if err := packBlob(c, s.Predicate); err != nil {
		return err
	}
	if err := c.WriteUint64(s.PredicateAddr); err != nil {
		return err
	}
	if err := c.WriteByte(byte(s.ObjectType)); err != nil {
		return err
	}
	return packBlob(c, s.Object)
}

func unpackPutRequestSlot(c *cursor.Cursor) (PutRequestSlot, error) {
	var s PutRequestSlot
	subject, err := unpackBlob(c, blob.Byte, true)
	if err != nil {
		return s, err
	}
	subjectAddr, err := c.ReadUint64()
	if err != nil {
		return s, err
	}
	predicate, err := unpackBlob(c, blob.Byte, true)
	if err != nil {
		return s, err
	}
	predicateAddr, err := c.ReadUint64()
	if err != nil {
		return s, err
	}
	typeByte, err := c.ReadByte()
	if err != nil {
		return s, err
	}
	objType := blob.DataType(typeByte)
	object, err := unpackBlob(c, objType, true)
	if err != nil {
		return s, err
	}
	s.Subject, s.SubjectAddr, s.Predicate, s.PredicateAddr = subject, subjectAddr, predicate, predicateAddr
	s.ObjectType, s.Object = objType, object
	return s, nil
}

// PutResponseSlot reports the outcome of one PutRequestSlot. It echoes
// back only the correlation token and original key length, not the key
// bytes themselves; the caller already has them.
type PutResponseSlot struct {
	Status        Status
	SubjectAddr   addr
	SubjectLen    uint32
	PredicateAddr addr
	PredicateLen  uint32
}

func (s PutResponseSlot) pack(c *cursor.Cursor) error {
	if err := c.WriteByte(byte(s.Status)); err != nil {
		return err
	}
	if err := c.WriteUint64(s.SubjectAddr); err != nil {
		return err
	}
	if err := c.WriteUint32(s.SubjectLen); err != nil {
		return err
	}
	if err := c.WriteUint64(s.PredicateAddr); err != nil {
		return err
	}
	return c.WriteUint32(s.PredicateLen)
}

func unpackPutResponseSlot(c *cursor.Cursor) (PutResponseSlot, error) {
	var s PutResponseSlot
	st, err := c.ReadByte()
	if err != nil {
		return s, err
	}
	subjectAddr, err := c.ReadUint64()
	if err != nil {
		return s, err
	}
	subjectLen, err := c.ReadUint32()
	if err != nil {
		return s, err
	}
	predicateAddr, err := c.ReadUint64()
	if err != nil {
		return s, err
	}
	predicateLen, err := c.ReadUint32()
	if err != nil {
		return s, err
	}
	s.Status = Status(st)
	s.SubjectAddr, s.SubjectLen = subjectAddr, subjectLen
	s.PredicateAddr, s.PredicateLen = predicateAddr, predicateLen
	return s, nil
}

// GetRequestSlot is one BGet request entry.
type GetRequestSlot struct {
	Subject       blob.Blob
	SubjectAddr   addr
	Predicate     blob.Blob
	PredicateAddr addr
	ObjectType    blob.DataType
}

func (s GetRequestSlot) pack(c *cursor.Cursor) error {
	if err := packBlob(c, s.Subject); err != nil {
		return err
	}
	if err := c.WriteUint64(s.SubjectAddr); err != nil {
		return err
	}
	if err := packBlob(c, s.Predicate); err != nil {
		return err
	}
	if err := c.WriteUint64(s.PredicateAddr); err != nil {
		return err
	}
	return c.WriteByte(byte(s.ObjectType))
}

func unpackGetRequestSlot(c *cursor.Cursor) (GetRequestSlot, error) {
	var s GetRequestSlot
	subject, err := unpackBlob(c, blob.Byte, true)
	if err != nil {
		return s, err
	}
	subjectAddr, err := c.ReadUint64()
	if err != nil {
		return s, err
	}
	predicate, err := unpackBlob(c, blob.Byte, true)
	if err != nil {
		return s, err
	}
	predicateAddr, err := c.ReadUint64()
	if err != nil {
		return s, err
	}
	typeByte, err := c.ReadByte()
	if err != nil {
		return s, err
	}
	s.Subject, s.SubjectAddr, s.Predicate, s.PredicateAddr = subject, subjectAddr, predicate, predicateAddr
	s.ObjectType = blob.DataType(typeByte)
	return s, nil
}

// GetResponseSlot reports the outcome of one BGet request entry. Object
// is only present on the wire when Status is Success.
type GetResponseSlot struct {
	Status     Status
	Subject    blob.Blob
	Predicate  blob.Blob
	ObjectType blob.DataType
	Object     blob.Blob
}

func (s GetResponseSlot) pack(c *cursor.Cursor) error {
	if err := c.WriteByte(byte(s.Status)); err != nil {
		return err
	}
	if err := packBlob(c, s.Subject); err != nil {
		return err
	}
	if err := packBlob(c, s.Predicate); err != nil {
		return err
	}
	if err := c.WriteByte(byte(s.ObjectType)); err != nil {
		return err
	}
	if s.Status == Success {
		return packBlob(c, s.Object)
	}
	return nil
}

func unpackGetResponseSlot(c *cursor.Cursor) (GetResponseSlot, error) {
	var s GetResponseSlot
	st, err := c.ReadByte()
	if err != nil {
		return s, err
	}
	subject, err := unpackBlob(c, blob.Byte, true)
	if err != nil {
		return s, err
	}
	predicate, err := unpackBlob(c, blob.Byte, true)
	if err != nil {
		return s, err
	}
	typeByte, err := c.ReadByte()
	if err != nil {
		return s, err
	}
	s.Status = Status(st)
	s.Subject, s.Predicate = subject, predicate
	s.ObjectType = blob.DataType(typeByte)
	if s.Status == Success {
		obj, err := unpackBlob(c, s.ObjectType, true)
		if err != nil {
			return s, err
		}
		s.Object = obj
	}
	return s, nil
}

// GetOpRequestSlot is one BGetOp request entry. Subject/Predicate are only
// meaningful for EQ/NEXT/PREV; FIRST/LAST need no starting key.
type GetOpRequestSlot struct {
	Op         opitem.GetOpKind
	Subject    blob.Blob
	Predicate  blob.Blob
	ObjectType blob.DataType
	NumRecs    int32
}

func needsKey(op opitem.GetOpKind) bool {
	return op == opitem.EQ || op == opitem.NEXT || op == opitem.PREV
}

func (s GetOpRequestSlot) pack(c *cursor.Cursor) error {
	if err := c.WriteByte(byte(s.Op)); err != nil {
		return err
	}
	if needsKey(s.Op) {
		if err := packBlob(c, s.Subject); err != nil {
			return err
		}
		if err := packBlob(c, s.Predicate); err != nil {
			return err
		}
	}
	if err := c.WriteByte(byte(s.ObjectType)); err != nil {
		return err
	}
	return c.WriteUint32(uint32(s.NumRecs))
}

func unpackGetOpRequestSlot(c *cursor.Cursor) (GetOpRequestSlot, error) {
	var s GetOpRequestSlot
	opByte, err := c.ReadByte()
	if err != nil {
		return s, err
	}
	s.Op = opitem.GetOpKind(opByte)
	if needsKey(s.Op) {
		subject, err := unpackBlob(c, blob.Byte, true)
		if err != nil {
			return s, err
		}
		predicate, err := unpackBlob(c, blob.Byte, true)
		if err != nil {
			return s, err
		}
		s.Subject, s.Predicate = subject, predicate
	}
	typeByte, err := c.ReadByte()
	if err != nil {
		return s, err
	}
	s.ObjectType = blob.DataType(typeByte)
	numRecs, err := c.ReadUint32()
	if err != nil {
		return s, err
	}
	s.NumRecs = int32(numRecs)
	return s, nil
}

// GetOpRecord is one (subject, predicate, object) result within a
// GetOpResponseSlot.
type GetOpRecord struct {
	Subject   blob.Blob
	Predicate blob.Blob
	Object    blob.Blob
}

// GetOpResponseSlot reports the outcome of one BGetOp request entry: a
// single status governs whether any records carry an object.
type GetOpResponseSlot struct {
	Status     Status
	ObjectType blob.DataType
	NumRecs    int32
	Records    []GetOpRecord
}

func (s GetOpResponseSlot) pack(c *cursor.Cursor) error {
	if err := c.WriteByte(byte(s.Status)); err != nil {
		return err
	}
	if err := c.WriteByte(byte(s.ObjectType)); err != nil {
		return err
	}
	if err := c.WriteUint32(uint32(s.NumRecs)); err != nil {
		return err
	}
	for _, rec := range s.Records {
		if err := packBlob(c, rec.Subject); err != nil {
			return err
		}
		if err := packBlob(c, rec.Predicate); err != nil {
			return err
		}
		if s.Status == Success {
			if err := packBlob(c, rec.Object); err != nil {
				return err
			}
		}
	}
	return nil
}

func unpackGetOpResponseSlot(c *cursor.Cursor) (GetOpResponseSlot, error) {
	var s GetOpResponseSlot
	st, err := c.ReadByte()
	if err != nil {
		return s, err
	}
	typeByte, err := c.ReadByte()
	if err != nil {
		return s, err
	}
	numRecs, err := c.ReadUint32()
	if err != nil {
		return s, err
	}
	s.Status = Status(st)
	s.ObjectType = blob.DataType(typeByte)
	s.NumRecs = int32(numRecs)
	s.Records = make([]GetOpRecord, 0, numRecs)
	for i := uint32(0); i < numRecs; i++ {
		subject, err := unpackBlob(c, blob.Byte, true)
		if err != nil {
			return s, err
		}
		predicate, err := unpackBlob(c, blob.Byte, true)
		if err != nil {
			return s, err
		}
		var object blob.Blob
		if s.Status == Success {
			object, err = unpackBlob(c, s.ObjectType, true)
			if err != nil {
				return s, err
			}
		}
		s.Records = append(s.Records, GetOpRecord{Subject: subject, Predicate: predicate, Object: object})
	}
	return s, nil
}

// DeleteRequestSlot is one BDelete request entry.
type DeleteRequestSlot struct {
	Subject       blob.Blob
	SubjectAddr   addr
	Predicate     blob.Blob
	PredicateAddr addr
}

func (s DeleteRequestSlot) pack(c *cursor.Cursor) error {
	if err := packBlob(c, s.Subject); err != nil {
		return err
	}
	if err := c.WriteUint64(s.SubjectAddr); err != nil {
		return err
	}
	if err := packBlob(c, s.Predicate); err != nil {
		return err
	}
	return c.WriteUint64(s.PredicateAddr)
}

func unpackDeleteRequestSlot(c *cursor.Cursor) (DeleteRequestSlot, error) {
	var s DeleteRequestSlot
	subject, err := unpackBlob(c, blob.Byte, true)
	if err != nil {
		return s, err
	}
	subjectAddr, err := c.ReadUint64()
	if err != nil {
		return s, err
	}
	predicate, err := unpackBlob(c, blob.Byte, true)
	if err != nil {
		return s, err
	}
	predicateAddr, err := c.ReadUint64()
	if err != nil {
		return s, err
	}
	s.Subject, s.SubjectAddr, s.Predicate, s.PredicateAddr = subject, subjectAddr, predicate, predicateAddr
	return s, nil
}

// DeleteResponseSlot reports the outcome of one BDelete request entry,
// echoing the full original key (unlike Put's addr+len echo).
type DeleteResponseSlot struct {
	Status    Status
	Subject   blob.Blob
	Predicate blob.Blob
}

func (s DeleteResponseSlot) pack(c *cursor.Cursor) error {
	if err := c.WriteByte(byte(s.Status)); err != nil {
		return err
	}
	if err := packBlob(c, s.Subject); err != nil {
		return err
	}
	return packBlob(c, s.Predicate)
}

func unpackDeleteResponseSlot(c *cursor.Cursor) (DeleteResponseSlot, error) {
	var s DeleteResponseSlot
	st, err := c.ReadByte()
	if err != nil {
		return s, err
	}
	subject, err := unpackBlob(c, blob.Byte, true)
	if err != nil {
		return s, err
	}
	predicate, err := unpackBlob(c, blob.Byte, true)
	if err != nil {
		return s, err
	}
	s.Status = Status(st)
	s.Subject, s.Predicate = subject, predicate
	return s, nil
}

// HistogramRequestSlot asks for one named streaming estimator. Dest
// routing is what selects the datastore; Name selects the estimator
// within it.
type HistogramRequestSlot struct {
	Name string
}

func (s HistogramRequestSlot) pack(c *cursor.Cursor) error {
	if err := c.WriteUint32(uint32(len(s.Name))); err != nil {
		return err
	}
	return c.WriteBytes([]byte(s.Name))
}

func unpackHistogramRequestSlot(c *cursor.Cursor) (HistogramRequestSlot, error) {
	var s HistogramRequestSlot
	n, err := c.ReadUint32()
	if err != nil {
		return s, err
	}
	name, err := c.ReadCopy(int(n))
	if err != nil {
		return s, err
	}
	s.Name = string(name)
	return s, nil
}

// HistogramResponseSlot carries the status and, packed inline, the named
// histogram's Pack output.
type HistogramResponseSlot struct {
	Status  Status
	Payload []byte
}

func (s HistogramResponseSlot) pack(c *cursor.Cursor) error {
	if err := c.WriteByte(byte(s.Status)); err != nil {
		return err
	}
	if err := c.WriteUint32(uint32(len(s.Payload))); err != nil {
		return err
	}
	return c.WriteBytes(s.Payload)
}

func unpackHistogramResponseSlot(c *cursor.Cursor) (HistogramResponseSlot, error) {
	var s HistogramResponseSlot
	st, err := c.ReadByte()
	if err != nil {
		return s, err
	}
	n, err := c.ReadUint32()
	if err != nil {
		return s, err
	}
	payload, err := c.ReadCopy(int(n))
	if err != nil {
		return s, err
	}
	s.Status = Status(st)
	s.Payload = payload
	return s, nil
}

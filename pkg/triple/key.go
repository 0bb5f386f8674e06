// Package triple implements the (subject, predicate, object) data model
// and the packed-key encoding every backend and the wire protocol agree
// on.
package triple

import (
	"encoding/binary"

	"github.com/cuemby/rangedb/pkg/blob"
	"github.com/cuemby/rangedb/pkg/rangedberr"
)

// Triple is a (subject, predicate, object) record. The store is keyed by
// (Subject, Predicate); Object is the value. Object.Type() carries the
// object's data-type tag.
type Triple struct {
	Subject   blob.Blob
	Predicate blob.Blob
	Object    blob.Blob
}

// lenWidth is the fixed width of the subject_len/predicate_len fields
// packed into a key; it never varies within a build.
const lenWidth = 4

// PackKey materializes the wire/backend key for (subject, predicate):
//
//	subject_bytes || subject_len(BE,4) || predicate_bytes || predicate_len(BE,4)
//
// For subjects that contain no zero byte and are shorter than 16 MiB,
// this layout makes byte-wise key order equal to lexicographic subject
// order with predicate as tiebreaker: the length field's leading zero
// byte sorts below any byte a longer subject continues with. A subject
// that continues a shorter one with a zero byte can sort before it
// ("a\x00" packs below "a").
func PackKey(subject, predicate blob.Blob) []byte {
	sLen := subject.Len()
	pLen := predicate.Len()
	key := make([]byte, sLen+lenWidth+pLen+lenWidth)

	off := 0
	off += copy(key[off:], subject.Data())
	binary.BigEndian.PutUint32(key[off:], uint32(sLen))
	off += lenWidth
	off += copy(key[off:], predicate.Data())
	binary.BigEndian.PutUint32(key[off:], uint32(pLen))

	return key
}

// UnpackKey recovers (subject, predicate) from a packed key by reading it
// in reverse: predicate_len first, then predicate bytes, then
// subject_len, then subject bytes.
func UnpackKey(key []byte) (subject, predicate []byte, err error) {
	if len(key) < 2*lenWidth {
		return nil, nil, rangedberr.New(rangedberr.ShortBuffer, "triple.unpackKey")
	}

	end := len(key)
	pLen := int(binary.BigEndian.Uint32(key[end-lenWidth : end]))
	end -= lenWidth

	if end-pLen < lenWidth {
		return nil, nil, rangedberr.New(rangedberr.ShortBuffer, "triple.unpackKey")
	}
	predicate = key[end-pLen : end]
	end -= pLen

	sLen := int(binary.BigEndian.Uint32(key[end-lenWidth : end]))
	end -= lenWidth

	if end-sLen < 0 {
		return nil, nil, rangedberr.New(rangedberr.ShortBuffer, "triple.unpackKey")
	}
	subject = key[end-sLen : end]

	return subject, predicate, nil
}

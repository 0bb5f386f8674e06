// Package memstore is an in-memory Datastore backend: a sorted key space
// kept as a slice of packed keys plus a map for O(1) value lookup. It is
// what the InMemory datastore.type resolves to, used by tests and
// single-process demos, and is also the reference implementation every
// other backend is checked against.
package memstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/rangedb/pkg/blob"
	"github.com/cuemby/rangedb/pkg/cursor"
	"github.com/cuemby/rangedb/pkg/datastore"
	"github.com/cuemby/rangedb/pkg/datastore/transform"
	"github.com/cuemby/rangedb/pkg/histogram"
	"github.com/cuemby/rangedb/pkg/opitem"
	"github.com/cuemby/rangedb/pkg/rangedberr"
	"github.com/cuemby/rangedb/pkg/triple"
	"github.com/cuemby/rangedb/pkg/wire"
)

// numericToFloat64 interprets the native, little-endian bytes of a
// numeric object (the representation callers hand to Put, before the
// order-preserving transform) as a float64 for histogram tracking.
func numericToFloat64(t blob.DataType, raw []byte) (float64, error) {
	switch t {
	case blob.Int32:
		if len(raw) != 4 {
			return 0, rangedberr.New(rangedberr.ShortBuffer, "memstore.numericToFloat64")
		}
		return float64(int32(binary.LittleEndian.Uint32(raw))), nil
	case blob.UInt32:
		if len(raw) != 4 {
			return 0, rangedberr.New(rangedberr.ShortBuffer, "memstore.numericToFloat64")
		}
		return float64(binary.LittleEndian.Uint32(raw)), nil
	case blob.Int64:
		if len(raw) != 8 {
			return 0, rangedberr.New(rangedberr.ShortBuffer, "memstore.numericToFloat64")
		}
		return float64(int64(binary.LittleEndian.Uint64(raw))), nil
	case blob.UInt64:
		if len(raw) != 8 {
			return 0, rangedberr.New(rangedberr.ShortBuffer, "memstore.numericToFloat64")
		}
		return float64(binary.LittleEndian.Uint64(raw)), nil
	case blob.Float:
		if len(raw) != 4 {
			return 0, rangedberr.New(rangedberr.ShortBuffer, "memstore.numericToFloat64")
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw))), nil
	case blob.Double:
		if len(raw) != 8 {
			return 0, rangedberr.New(rangedberr.ShortBuffer, "memstore.numericToFloat64")
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(raw)), nil
	default:
		return 0, rangedberr.New(rangedberr.InvalidArgument, "memstore.numericToFloat64")
	}
}

type record struct {
	objType blob.DataType
	data    []byte
}

// Store is an in-memory Datastore.
type Store struct {
	mu      sync.Mutex
	name    string
	open    bool
	keys    [][]byte
	values  map[string]record
	xform   *transform.Callbacks
	hists   map[string]*histogram.Histogram
	histGen map[string]histogram.Generator
	stats   statsAccumulator
}

type statsAccumulator struct {
	numPuts int64
	putTime time.Duration
	numGets int64
	getTime time.Duration
}

// New returns an unopened in-memory Store.
func New() *Store {
	return &Store{
		values:  make(map[string]record),
		xform:   transform.Default(),
		hists:   make(map[string]*histogram.Histogram),
		histGen: make(map[string]histogram.Generator),
	}
}

func (s *Store) Open(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	s.open = true
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func (s *Store) Usable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Store) Sync() error { return nil }

func (s *Store) indexOf(key []byte) (int, bool) {
	idx := sort.Search(len(s.keys), func(i int) bool { return bytes.Compare(s.keys[i], key) >= 0 })
	if idx < len(s.keys) && bytes.Equal(s.keys[idx], key) {
		return idx, true
	}
	return idx, false
}

func (s *Store) put(key []byte, rec record) {
	idx, exists := s.indexOf(key)
	if !exists {
		s.keys = append(s.keys, nil)
		copy(s.keys[idx+1:], s.keys[idx:])
		s.keys[idx] = append([]byte(nil), key...)
	}
	s.values[string(key)] = rec
}

func (s *Store) delete(key []byte) bool {
	idx, exists := s.indexOf(key)
	if !exists {
		return false
	}
	s.keys = append(s.keys[:idx], s.keys[idx+1:]...)
	delete(s.values, string(key))
	return true
}

func (s *Store) BPut(_ context.Context, reqs []wire.PutRequestSlot) ([]wire.PutResponseSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	resp := make([]wire.PutResponseSlot, len(reqs))
	for i, r := range reqs {
		encoded, err := s.xform.EncodeValue(r.ObjectType, r.Object.Data())
		status := wire.Success
		if err != nil {
			status = wire.Error
		} else {
			key := triple.PackKey(r.Subject, r.Predicate)
			s.put(key, record{objType: r.ObjectType, data: encoded})
			s.updateHistograms(r.Predicate, r.ObjectType, r.Object.Data())
		}
		resp[i] = wire.PutResponseSlot{
			Status: status, SubjectAddr: r.SubjectAddr, SubjectLen: uint32(r.Subject.Len()),
			PredicateAddr: r.PredicateAddr, PredicateLen: uint32(r.Predicate.Len()),
		}
	}
	s.stats.numPuts += int64(len(reqs))
	s.stats.putTime += time.Since(start)
	return resp, nil
}

func (s *Store) updateHistograms(predicate blob.Blob, objType blob.DataType, raw []byte) {
	if !objType.Numeric() {
		return
	}
	h, ok := s.hists[string(predicate.Data())]
	if !ok {
		return
	}
	v, err := numericToFloat64(objType, raw)
	if err != nil {
		return
	}
	h.Add(v)
}

func (s *Store) BGet(_ context.Context, reqs []wire.GetRequestSlot) ([]wire.GetResponseSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	resp := make([]wire.GetResponseSlot, len(reqs))
	for i, r := range reqs {
		key := triple.PackKey(r.Subject, r.Predicate)
		rec, ok := s.values[string(key)]
		if !ok {
			resp[i] = wire.GetResponseSlot{Status: wire.Error, Subject: r.Subject, Predicate: r.Predicate, ObjectType: r.ObjectType}
			continue
		}
		decoded, err := s.xform.DecodeValue(rec.objType, rec.data)
		if err != nil {
			resp[i] = wire.GetResponseSlot{Status: wire.Error, Subject: r.Subject, Predicate: r.Predicate, ObjectType: r.ObjectType}
			continue
		}
		resp[i] = wire.GetResponseSlot{
			Status: wire.Success, Subject: r.Subject, Predicate: r.Predicate, ObjectType: rec.objType,
			Object: blob.NewOwning(decoded, rec.objType),
		}
	}
	s.stats.numGets += int64(len(reqs))
	s.stats.getTime += time.Since(start)
	return resp, nil
}

func (s *Store) BGetOp(_ context.Context, reqs []wire.GetOpRequestSlot) ([]wire.GetOpResponseSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := make([]wire.GetOpResponseSlot, len(reqs))
	for i, r := range reqs {
		resp[i] = s.getOpOne(r)
	}
	return resp, nil
}

func (s *Store) getOpOne(r wire.GetOpRequestSlot) wire.GetOpResponseSlot {
	numRecs := int(r.NumRecs)
	if numRecs <= 0 {
		numRecs = 1
	}

	var start int
	var forward bool
	switch r.Op {
	case opitem.EQ:
		key := triple.PackKey(r.Subject, r.Predicate)
		idx, ok := s.indexOf(key)
		if !ok {
			return wire.GetOpResponseSlot{Status: wire.Error, ObjectType: r.ObjectType}
		}
		return s.collectForward(idx, 1, r.ObjectType)
	case opitem.NEXT:
		key := triple.PackKey(r.Subject, r.Predicate)
		idx, _ := s.indexOf(key)
		start, forward = idx, true
	case opitem.PREV:
		key := triple.PackKey(r.Subject, r.Predicate)
		idx, exists := s.indexOf(key)
		if !exists {
			idx--
		}
		start, forward = idx, false
	case opitem.FirstGetOp:
		start, forward = 0, true
	case opitem.LastGetOp:
		start, forward = len(s.keys)-1, false
	default:
		return wire.GetOpResponseSlot{Status: wire.Error, ObjectType: r.ObjectType}
	}

	if forward {
		return s.collectForward(start, numRecs, r.ObjectType)
	}
	return s.collectBackward(start, numRecs, r.ObjectType)
}

func (s *Store) collectForward(start, numRecs int, objType blob.DataType) wire.GetOpResponseSlot {
	if start < 0 || start >= len(s.keys) {
		return wire.GetOpResponseSlot{Status: wire.Error, ObjectType: objType}
	}
	var records []wire.GetOpRecord
	for i := start; i < len(s.keys) && len(records) < numRecs; i++ {
		records = append(records, s.recordAt(i, objType))
	}
	return wire.GetOpResponseSlot{Status: wire.Success, ObjectType: objType, NumRecs: int32(len(records)), Records: records}
}

func (s *Store) collectBackward(start, numRecs int, objType blob.DataType) wire.GetOpResponseSlot {
	if start < 0 || start >= len(s.keys) {
		return wire.GetOpResponseSlot{Status: wire.Error, ObjectType: objType}
	}
	var records []wire.GetOpRecord
	for i := start; i >= 0 && len(records) < numRecs; i-- {
		records = append(records, s.recordAt(i, objType))
	}
	return wire.GetOpResponseSlot{Status: wire.Success, ObjectType: objType, NumRecs: int32(len(records)), Records: records}
}

func (s *Store) recordAt(idx int, objType blob.DataType) wire.GetOpRecord {
	key := s.keys[idx]
	subjectBytes, predicateBytes, _ := triple.UnpackKey(key)
	rec := s.values[string(key)]
	decoded, err := s.xform.DecodeValue(rec.objType, rec.data)
	if err != nil {
		decoded = nil
	}
	return wire.GetOpRecord{
		Subject:   blob.NewOwning(append([]byte(nil), subjectBytes...), blob.Byte),
		Predicate: blob.NewOwning(append([]byte(nil), predicateBytes...), blob.Byte),
		Object:    blob.NewOwning(decoded, rec.objType),
	}
}

func (s *Store) BDelete(_ context.Context, reqs []wire.DeleteRequestSlot) ([]wire.DeleteResponseSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := make([]wire.DeleteResponseSlot, len(reqs))
	for i, r := range reqs {
		key := triple.PackKey(r.Subject, r.Predicate)
		s.delete(key)
		resp[i] = wire.DeleteResponseSlot{Status: wire.Success, Subject: r.Subject, Predicate: r.Predicate}
	}
	return resp, nil
}

func (s *Store) ConfigureHistogram(name string, firstN int, generator histogram.Generator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hists[name] = histogram.New(name, firstN, generator)
	s.histGen[name] = generator
}

func (s *Store) Histogram(name string) (*histogram.Histogram, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hists[name]
	return h, ok
}

func (s *Store) WriteHistograms() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, h := range s.hists {
		w := cursor.NewWriter(nil)
		if err := h.Pack(w); err != nil {
			return rangedberr.Wrap(rangedberr.BackendError, "memstore.WriteHistograms", err)
		}
		key := triple.PackKey(blob.NewReference([]byte(datastore.HistogramsSubject), blob.Byte), blob.NewReference([]byte(name), blob.Byte))
		s.put(key, record{objType: blob.Pointer, data: append([]byte(nil), w.Bytes()...)})
	}
	return nil
}

func (s *Store) ReadHistograms(names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		key := triple.PackKey(blob.NewReference([]byte(datastore.HistogramsSubject), blob.Byte), blob.NewReference([]byte(name), blob.Byte))
		rec, ok := s.values[string(key)]
		if !ok {
			continue
		}
		h, err := histogram.Unpack(cursor.NewReader(rec.data))
		if err != nil {
			return rangedberr.Wrap(rangedberr.BackendError, "memstore.ReadHistograms", err)
		}
		if gen, ok := s.histGen[name]; ok {
			h.SetGenerator(gen)
		}
		s.hists[name] = h
	}
	return nil
}

func (s *Store) Stats() datastore.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return datastore.Stats{
		NumPuts: s.stats.numPuts, PutTime: s.stats.putTime,
		NumGets: s.stats.numGets, GetTime: s.stats.getTime,
	}
}

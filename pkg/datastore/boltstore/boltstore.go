// Package boltstore is a Datastore backend on top of go.etcd.io/bbolt,
// the disk-backed engine the LevelDB and RocksDB datastore.type names
// resolve to. bbolt keeps bucket keys in byte order, which is exactly
// the ordering the packed (subject, predicate) key needs for BGetOp
// range scans, so no secondary index is required.
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

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

var (
	bucketTriples    = []byte("triples")
	bucketHistograms = []byte("histograms")
)

// numericToFloat64 interprets the native, little-endian bytes of a numeric
// object (the representation callers hand to Put, before the
// order-preserving transform) as a float64 for histogram tracking.
func numericToFloat64(t blob.DataType, raw []byte) (float64, error) {
	switch t {
	case blob.Int32:
		if len(raw) != 4 {
			return 0, rangedberr.New(rangedberr.ShortBuffer, "boltstore.numericToFloat64")
		}
		return float64(int32(binary.LittleEndian.Uint32(raw))), nil
	case blob.UInt32:
		if len(raw) != 4 {
			return 0, rangedberr.New(rangedberr.ShortBuffer, "boltstore.numericToFloat64")
		}
		return float64(binary.LittleEndian.Uint32(raw)), nil
	case blob.Int64:
		if len(raw) != 8 {
			return 0, rangedberr.New(rangedberr.ShortBuffer, "boltstore.numericToFloat64")
		}
		return float64(int64(binary.LittleEndian.Uint64(raw))), nil
	case blob.UInt64:
		if len(raw) != 8 {
			return 0, rangedberr.New(rangedberr.ShortBuffer, "boltstore.numericToFloat64")
		}
		return float64(binary.LittleEndian.Uint64(raw)), nil
	case blob.Float:
		if len(raw) != 4 {
			return 0, rangedberr.New(rangedberr.ShortBuffer, "boltstore.numericToFloat64")
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw))), nil
	case blob.Double:
		if len(raw) != 8 {
			return 0, rangedberr.New(rangedberr.ShortBuffer, "boltstore.numericToFloat64")
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(raw)), nil
	default:
		return 0, rangedberr.New(rangedberr.InvalidArgument, "boltstore.numericToFloat64")
	}
}

// Store is a bbolt-backed Datastore.
type Store struct {
	dir              string
	createIfMissing  bool
	db               *bolt.DB

	mu      sync.Mutex
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

// New returns an unopened Store rooted at dir. createIfMissing mirrors
// the datastore.create_if_missing config option.
func New(dir string, createIfMissing bool) *Store {
	return &Store{
		dir: dir, createIfMissing: createIfMissing,
		xform: transform.Default(), hists: make(map[string]*histogram.Histogram),
		histGen: make(map[string]histogram.Generator),
	}
}

func (s *Store) Open(name string) error {
	path := filepath.Join(s.dir, name+".db")
	if !s.createIfMissing {
		if _, err := os.Stat(path); err != nil {
			return rangedberr.Wrap(rangedberr.BackendError, "boltstore.Open", err)
		}
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return rangedberr.Wrap(rangedberr.BackendError, "boltstore.Open", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketTriples); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketHistograms)
		return err
	})
	if err != nil {
		db.Close()
		return rangedberr.Wrap(rangedberr.BackendError, "boltstore.Open", err)
	}
	s.db = db
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Usable() bool { return s.db != nil }

func (s *Store) Sync() error {
	if s.db == nil {
		return rangedberr.New(rangedberr.BackendError, "boltstore.Sync")
	}
	return s.db.Sync()
}

func (s *Store) BPut(_ context.Context, reqs []wire.PutRequestSlot) ([]wire.PutResponseSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	resp := make([]wire.PutResponseSlot, len(reqs))
	type pending struct {
		idx            int
		key, encoded   []byte
		predicate      blob.Blob
		objType        blob.DataType
		raw            []byte
	}
	var toWrite []pending

	for i, r := range reqs {
		encoded, err := s.xform.EncodeValue(r.ObjectType, r.Object.Data())
		resp[i] = wire.PutResponseSlot{SubjectAddr: r.SubjectAddr, SubjectLen: uint32(r.Subject.Len()), PredicateAddr: r.PredicateAddr, PredicateLen: uint32(r.Predicate.Len())}
		if err != nil {
			resp[i].Status = wire.Error
			continue
		}
		toWrite = append(toWrite, pending{
			idx: i, key: triple.PackKey(r.Subject, r.Predicate), encoded: encoded,
			predicate: r.Predicate, objType: r.ObjectType, raw: r.Object.Data(),
		})
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTriples)
		for _, p := range toWrite {
			if err := b.Put(p.key, p.encoded); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, p := range toWrite {
			resp[p.idx].Status = wire.Error
		}
		s.stats.numPuts += int64(len(reqs))
		s.stats.putTime += time.Since(start)
		return resp, rangedberr.Wrap(rangedberr.BackendBatchError, "boltstore.BPut", err)
	}

	for _, p := range toWrite {
		resp[p.idx].Status = wire.Success
		s.updateHistograms(p.predicate, p.objType, p.raw)
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
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTriples)
		for i, r := range reqs {
			key := triple.PackKey(r.Subject, r.Predicate)
			val := b.Get(key)
			if val == nil {
				resp[i] = wire.GetResponseSlot{Status: wire.Error, Subject: r.Subject, Predicate: r.Predicate, ObjectType: r.ObjectType}
				continue
			}
			decoded, err := s.xform.DecodeValue(r.ObjectType, val)
			if err != nil {
				resp[i] = wire.GetResponseSlot{Status: wire.Error, Subject: r.Subject, Predicate: r.Predicate, ObjectType: r.ObjectType}
				continue
			}
			resp[i] = wire.GetResponseSlot{
				Status: wire.Success, Subject: r.Subject, Predicate: r.Predicate, ObjectType: r.ObjectType,
				Object: blob.NewOwning(decoded, r.ObjectType),
			}
		}
		return nil
	})
	s.stats.numGets += int64(len(reqs))
	s.stats.getTime += time.Since(start)
	if err != nil {
		return nil, rangedberr.Wrap(rangedberr.BackendError, "boltstore.BGet", err)
	}
	return resp, nil
}

func (s *Store) BGetOp(_ context.Context, reqs []wire.GetOpRequestSlot) ([]wire.GetOpResponseSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := make([]wire.GetOpResponseSlot, len(reqs))
	err := s.db.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(bucketTriples).Cursor()
		for i, r := range reqs {
			resp[i] = s.getOpOne(cur, r)
		}
		return nil
	})
	if err != nil {
		return nil, rangedberr.Wrap(rangedberr.BackendError, "boltstore.BGetOp", err)
	}
	return resp, nil
}

func (s *Store) getOpOne(cur *bolt.Cursor, r wire.GetOpRequestSlot) wire.GetOpResponseSlot {
	numRecs := int(r.NumRecs)
	if numRecs <= 0 {
		numRecs = 1
	}

	switch r.Op {
	case opitem.EQ:
		key := triple.PackKey(r.Subject, r.Predicate)
		k, v := cur.Seek(key)
		if k == nil || !bytes.Equal(k, key) {
			return wire.GetOpResponseSlot{Status: wire.Error, ObjectType: r.ObjectType}
		}
		rec := s.decodeRecord(k, v, r.ObjectType)
		return wire.GetOpResponseSlot{Status: wire.Success, ObjectType: r.ObjectType, NumRecs: 1, Records: []wire.GetOpRecord{rec}}
	case opitem.NEXT:
		key := triple.PackKey(r.Subject, r.Predicate)
		k, v := cur.Seek(key)
		return s.collect(cur, k, v, numRecs, r.ObjectType, true)
	case opitem.PREV:
		// Seek lands on the first key >= target. An exact match is itself
		// the start of the backward walk (mirrors memstore.indexOf's
		// exists branch); anything else means target fell between two
		// keys or past the end, so step back once to the prior key.
		key := triple.PackKey(r.Subject, r.Predicate)
		k, v := cur.Seek(key)
		switch {
		case k != nil && bytes.Equal(k, key):
		case k == nil:
			k, v = cur.Last()
		default:
			k, v = cur.Prev()
		}
		return s.collect(cur, k, v, numRecs, r.ObjectType, false)
	case opitem.FirstGetOp:
		k, v := cur.First()
		return s.collect(cur, k, v, numRecs, r.ObjectType, true)
	case opitem.LastGetOp:
		k, v := cur.Last()
		return s.collect(cur, k, v, numRecs, r.ObjectType, false)
	default:
		return wire.GetOpResponseSlot{Status: wire.Error, ObjectType: r.ObjectType}
	}
}

func (s *Store) collect(cur *bolt.Cursor, k, v []byte, numRecs int, objType blob.DataType, forward bool) wire.GetOpResponseSlot {
	if k == nil {
		return wire.GetOpResponseSlot{Status: wire.Error, ObjectType: objType}
	}
	var records []wire.GetOpRecord
	for k != nil && len(records) < numRecs {
		records = append(records, s.decodeRecord(k, v, objType))
		if forward {
			k, v = cur.Next()
		} else {
			k, v = cur.Prev()
		}
	}
	return wire.GetOpResponseSlot{Status: wire.Success, ObjectType: objType, NumRecs: int32(len(records)), Records: records}
}

func (s *Store) decodeRecord(key, val []byte, objType blob.DataType) wire.GetOpRecord {
	subjectBytes, predicateBytes, _ := triple.UnpackKey(key)
	decoded, err := s.xform.DecodeValue(objType, val)
	if err != nil {
		decoded = nil
	}
	return wire.GetOpRecord{
		Subject:   blob.NewOwning(append([]byte(nil), subjectBytes...), blob.Byte),
		Predicate: blob.NewOwning(append([]byte(nil), predicateBytes...), blob.Byte),
		Object:    blob.NewOwning(decoded, objType),
	}
}

func (s *Store) BDelete(_ context.Context, reqs []wire.DeleteRequestSlot) ([]wire.DeleteResponseSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := make([]wire.DeleteResponseSlot, len(reqs))
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTriples)
		for i, r := range reqs {
			key := triple.PackKey(r.Subject, r.Predicate)
			if err := b.Delete(key); err != nil {
				return err
			}
			resp[i] = wire.DeleteResponseSlot{Status: wire.Success, Subject: r.Subject, Predicate: r.Predicate}
		}
		return nil
	})
	if err != nil {
		for i := range resp {
			resp[i].Status = wire.Error
		}
		return resp, rangedberr.Wrap(rangedberr.BackendBatchError, "boltstore.BDelete", err)
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
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHistograms)
		for name, h := range s.hists {
			w := cursor.NewWriter(nil)
			if err := h.Pack(w); err != nil {
				return err
			}
			if err := b.Put([]byte(name), w.Bytes()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ReadHistograms(names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHistograms)
		for _, name := range names {
			val := b.Get([]byte(name))
			if val == nil {
				continue
			}
			h, err := histogram.Unpack(cursor.NewReader(val))
			if err != nil {
				return fmt.Errorf("unpack histogram %q: %w", name, err)
			}
			if gen, ok := s.histGen[name]; ok {
				h.SetGenerator(gen)
			}
			s.hists[name] = h
		}
		return nil
	})
}

func (s *Store) Stats() datastore.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return datastore.Stats{
		NumPuts: s.stats.numPuts, PutTime: s.stats.putTime,
		NumGets: s.stats.numGets, GetTime: s.stats.getTime,
	}
}

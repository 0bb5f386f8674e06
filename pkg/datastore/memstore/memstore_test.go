package memstore

import (
	"context"
	"testing"

	"github.com/cuemby/rangedb/pkg/blob"
	"github.com/cuemby/rangedb/pkg/histogram"
	"github.com/cuemby/rangedb/pkg/opitem"
	"github.com/cuemby/rangedb/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.Open("test"))
	require.True(t, s.Usable())
	return s
}

func TestPutThenGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	putResp, err := s.BPut(ctx, []wire.PutRequestSlot{{
		Subject: blob.NewReference([]byte("s"), blob.Byte), Predicate: blob.NewReference([]byte("p"), blob.Byte),
		ObjectType: blob.Byte, Object: blob.NewReference([]byte("o"), blob.Byte),
	}})
	require.NoError(t, err)
	require.Len(t, putResp, 1)
	assert.Equal(t, wire.Success, putResp[0].Status)

	getResp, err := s.BGet(ctx, []wire.GetRequestSlot{{
		Subject: blob.NewReference([]byte("s"), blob.Byte), Predicate: blob.NewReference([]byte("p"), blob.Byte), ObjectType: blob.Byte,
	}})
	require.NoError(t, err)
	require.Len(t, getResp, 1)
	assert.Equal(t, wire.Success, getResp[0].Status)
	assert.Equal(t, []byte("o"), getResp[0].Object.Data())
}

func TestGetMissingKeyIsError(t *testing.T) {
	s := openStore(t)
	resp, err := s.BGet(context.Background(), []wire.GetRequestSlot{{
		Subject: blob.NewReference([]byte("s"), blob.Byte), Predicate: blob.NewReference([]byte("p"), blob.Byte), ObjectType: blob.Byte,
	}})
	require.NoError(t, err)
	assert.Equal(t, wire.Error, resp[0].Status)
}

func TestGetOpNextAcrossThreeKeys(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	p := blob.NewReference([]byte("p"), blob.Byte)
	_, err := s.BPut(ctx, []wire.PutRequestSlot{
		{Subject: blob.NewReference([]byte("s1"), blob.Byte), Predicate: p, ObjectType: blob.Byte, Object: blob.NewReference([]byte("o1"), blob.Byte)},
		{Subject: blob.NewReference([]byte("s2"), blob.Byte), Predicate: p, ObjectType: blob.Byte, Object: blob.NewReference([]byte("o2"), blob.Byte)},
		{Subject: blob.NewReference([]byte("s3"), blob.Byte), Predicate: p, ObjectType: blob.Byte, Object: blob.NewReference([]byte("o3"), blob.Byte)},
	})
	require.NoError(t, err)

	resp, err := s.BGetOp(ctx, []wire.GetOpRequestSlot{{
		Op: opitem.NEXT, Subject: blob.NewReference([]byte("s1"), blob.Byte), Predicate: p, ObjectType: blob.Byte, NumRecs: 3,
	}})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	require.Equal(t, wire.Success, resp[0].Status)
	require.Len(t, resp[0].Records, 3)
	assert.Equal(t, []byte("s1"), resp[0].Records[0].Subject.Data())
	assert.Equal(t, []byte("s2"), resp[0].Records[1].Subject.Data())
	assert.Equal(t, []byte("s3"), resp[0].Records[2].Subject.Data())
}

func TestDeleteRemovesExactlyOne(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	_, err := s.BPut(ctx, []wire.PutRequestSlot{{
		Subject: blob.NewReference([]byte("s"), blob.Byte), Predicate: blob.NewReference([]byte("p"), blob.Byte),
		ObjectType: blob.Byte, Object: blob.NewReference([]byte("o"), blob.Byte),
	}})
	require.NoError(t, err)

	delResp, err := s.BDelete(ctx, []wire.DeleteRequestSlot{{
		Subject: blob.NewReference([]byte("s"), blob.Byte), Predicate: blob.NewReference([]byte("p"), blob.Byte),
	}})
	require.NoError(t, err)
	assert.Equal(t, wire.Success, delResp[0].Status)

	getResp, err := s.BGet(ctx, []wire.GetRequestSlot{{
		Subject: blob.NewReference([]byte("s"), blob.Byte), Predicate: blob.NewReference([]byte("p"), blob.Byte), ObjectType: blob.Byte,
	}})
	require.NoError(t, err)
	assert.Equal(t, wire.Error, getResp[0].Status)
}

func TestPutUpdatesConfiguredHistogram(t *testing.T) {
	s := openStore(t)
	s.ConfigureHistogram("latency", 2, histogram.EqualWidth(2))

	le32 := func(v int32) []byte {
		b := make([]byte, 4)
		b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
		return b
	}

	ctx := context.Background()
	_, err := s.BPut(ctx, []wire.PutRequestSlot{
		{Subject: blob.NewReference([]byte("s1"), blob.Byte), Predicate: blob.NewReference([]byte("latency"), blob.Byte), ObjectType: blob.Int32, Object: blob.NewReference(le32(1), blob.Int32)},
		{Subject: blob.NewReference([]byte("s2"), blob.Byte), Predicate: blob.NewReference([]byte("latency"), blob.Byte), ObjectType: blob.Int32, Object: blob.NewReference(le32(9), blob.Int32)},
	})
	require.NoError(t, err)

	h, ok := s.Histogram("latency")
	require.True(t, ok)
	assert.Equal(t, uint64(2), h.TotalCount())
}

func TestWriteThenReadHistograms(t *testing.T) {
	s := openStore(t)
	s.ConfigureHistogram("h", 1, histogram.EqualWidth(2))
	h, _ := s.Histogram("h")
	h.Add(5)
	require.True(t, h.Committed())

	require.NoError(t, s.WriteHistograms())

	// Simulate a reload: drop the in-memory handle and rebuild it purely
	// from the serialized bytes already sitting in the backend.
	delete(s.hists, "h")
	require.NoError(t, s.ReadHistograms([]string{"h"}))
	reloaded, ok := s.Histogram("h")
	require.True(t, ok)
	assert.True(t, reloaded.Committed())
}

func TestStatsMonotonicity(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	before := s.Stats()
	_, err := s.BPut(ctx, []wire.PutRequestSlot{{
		Subject: blob.NewReference([]byte("s"), blob.Byte), Predicate: blob.NewReference([]byte("p"), blob.Byte),
		ObjectType: blob.Byte, Object: blob.NewReference([]byte("o"), blob.Byte),
	}})
	require.NoError(t, err)
	after := s.Stats()
	assert.Greater(t, after.NumPuts, before.NumPuts)
}

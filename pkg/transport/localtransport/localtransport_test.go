package localtransport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/rangedb/pkg/blob"
	"github.com/cuemby/rangedb/pkg/datastore"
	"github.com/cuemby/rangedb/pkg/datastore/memstore"
	"github.com/cuemby/rangedb/pkg/rangeserver"
	"github.com/cuemby/rangedb/pkg/wire"
)

func newDispatcher(t *testing.T, rank int32) *rangeserver.Dispatcher {
	t.Helper()
	s := memstore.New()
	require.NoError(t, s.Open("test"))
	return rangeserver.New(rank, []datastore.Datastore{s})
}

func TestCommunicateBPutFansOutToEveryDestination(t *testing.T) {
	tr := New()
	tr.Register(1, newDispatcher(t, 1))
	tr.Register(2, newDispatcher(t, 2))

	reqs := map[int32]*wire.BulkRequest{
		1: {Header: wire.Header{Op: wire.OpPut, Src: 0, Dst: 1, Count: 1, DSOffsets: []int32{0}},
			Puts: []wire.PutRequestSlot{{Subject: blob.NewReference([]byte("s1"), blob.Byte), Predicate: blob.NewReference([]byte("p"), blob.Byte), ObjectType: blob.Byte, Object: blob.NewReference([]byte("o1"), blob.Byte)}}},
		2: {Header: wire.Header{Op: wire.OpPut, Src: 0, Dst: 2, Count: 1, DSOffsets: []int32{0}},
			Puts: []wire.PutRequestSlot{{Subject: blob.NewReference([]byte("s2"), blob.Byte), Predicate: blob.NewReference([]byte("p"), blob.Byte), ObjectType: blob.Byte, Object: blob.NewReference([]byte("o2"), blob.Byte)}}},
	}

	resp, err := tr.CommunicateBPut(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, resp, 2)
	assert.Equal(t, wire.Success, resp[1].Puts[0].Status)
	assert.Equal(t, wire.Success, resp[2].Puts[0].Status)
}

func TestCommunicateMissingDestinationOmittedFromResponse(t *testing.T) {
	tr := New()
	reqs := map[int32]*wire.BulkRequest{
		9: {Header: wire.Header{Op: wire.OpGet, Src: 0, Dst: 9, Count: 1, DSOffsets: []int32{0}},
			Gets: []wire.GetRequestSlot{{Subject: blob.NewReference([]byte("s"), blob.Byte), Predicate: blob.NewReference([]byte("p"), blob.Byte), ObjectType: blob.Byte}}},
	}
	resp, err := tr.CommunicateBGet(context.Background(), reqs)
	require.NoError(t, err)
	assert.Empty(t, resp)
}

func TestCloseStopsFutureDispatch(t *testing.T) {
	tr := New()
	tr.Register(1, newDispatcher(t, 1))
	require.NoError(t, tr.Close())

	reqs := map[int32]*wire.BulkRequest{
		1: {Header: wire.Header{Op: wire.OpDelete, Src: 0, Dst: 1, Count: 1, DSOffsets: []int32{0}},
			Deletes: []wire.DeleteRequestSlot{{Subject: blob.NewReference([]byte("s"), blob.Byte), Predicate: blob.NewReference([]byte("p"), blob.Byte)}}},
	}
	resp, err := tr.CommunicateBDelete(context.Background(), reqs)
	require.NoError(t, err)
	assert.Empty(t, resp)
}

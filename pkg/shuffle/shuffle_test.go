package shuffle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/rangedb/pkg/blob"
	"github.com/cuemby/rangedb/pkg/hash"
	"github.com/cuemby/rangedb/pkg/opitem"
	"github.com/cuemby/rangedb/pkg/wire"
)

func mkRouter(selfRank int32, maxOps int) Router {
	return Router{
		SelfRank:      selfRank,
		Hash:          hash.SumModDatastores,
		Placement:     hash.Placement{ClientRatio: 1, ServerRatio: 1, DatastoresPerServer: 1, WorldSize: 2},
		MaxOpsPerSend: maxOps,
	}
}

func TestPutsSplitsLocalAndRemote(t *testing.T) {
	r := mkRouter(0, 10)
	local := &wire.BulkRequest{Header: wire.Header{Op: wire.OpPut, Src: 0, Dst: 0}}
	remote := map[int32]*wire.BulkRequest{}

	items := make([]opitem.PutItem, 0, 20)
	for i := 0; i < 20; i++ {
		items = append(items, opitem.PutItem{
			Subject:   blob.NewReference([]byte{byte(i)}, blob.Byte),
			Predicate: blob.NewReference([]byte("p"), blob.Byte),
			Object:    blob.NewReference([]byte("o"), blob.Byte),
		})
	}

	remaining, dropped, placed := r.Puts(items, local, remote)
	assert.Empty(t, remaining)
	assert.Zero(t, dropped)
	assert.Equal(t, len(local.Puts)+len(remote[1].Puts), 20)
	assert.Equal(t, len(placed[0])+len(placed[1]), 20)
}

func TestPutsRespectsMaxOpsPerSendAndRequeues(t *testing.T) {
	r := mkRouter(0, 1)
	r.Placement = hash.Placement{ClientRatio: 1, ServerRatio: 1, DatastoresPerServer: 1, WorldSize: 1}
	local := &wire.BulkRequest{Header: wire.Header{Op: wire.OpPut, Src: 0, Dst: 0}}
	remote := map[int32]*wire.BulkRequest{}

	items := []opitem.PutItem{
		{Subject: blob.NewReference([]byte("a"), blob.Byte), Predicate: blob.NewReference([]byte("p"), blob.Byte), Object: blob.NewReference([]byte("o"), blob.Byte)},
		{Subject: blob.NewReference([]byte("b"), blob.Byte), Predicate: blob.NewReference([]byte("p"), blob.Byte), Object: blob.NewReference([]byte("o"), blob.Byte)},
	}

	remaining, dropped, placed := r.Puts(items, local, remote)
	require.Zero(t, dropped)
	assert.Len(t, local.Puts, 1)
	assert.Len(t, remaining, 1)
	assert.Len(t, placed[0], 1)
}

func TestHashMissDropsItem(t *testing.T) {
	r := mkRouter(0, 10)
	r.Hash = func(_, _ blob.Blob, _ int) int { return -1 }
	local := &wire.BulkRequest{Header: wire.Header{Op: wire.OpGet, Src: 0, Dst: 0}}
	remote := map[int32]*wire.BulkRequest{}

	items := []opitem.GetItem{{Subject: blob.NewReference([]byte("s"), blob.Byte), Predicate: blob.NewReference([]byte("p"), blob.Byte)}}
	remaining, dropped, placed := r.Gets(items, local, remote)
	assert.Empty(t, remaining)
	assert.Equal(t, 1, dropped)
	assert.Empty(t, local.Gets)
	assert.Empty(t, placed)
}

func TestHistogramItemSkipsHashUsingPresetDatastoreID(t *testing.T) {
	r := mkRouter(0, 10)
	r.Hash = func(_, _ blob.Blob, _ int) int { panic("hash should not be called for a preset destination") }
	local := &wire.BulkRequest{Header: wire.Header{Op: wire.OpHistogram, Src: 0, Dst: 0}}
	remote := map[int32]*wire.BulkRequest{}

	items := []opitem.HistogramItem{{Name: "latency", Dest: opitem.Destination{DatastoreID: 0, Preset: true}}}
	remaining, dropped, placed := r.Histograms(items, local, remote)
	assert.Empty(t, remaining)
	assert.Zero(t, dropped)
	require.Len(t, local.Histograms, 1)
	assert.Equal(t, "latency", local.Histograms[0].Name)
	require.Len(t, placed[0], 1)
}

func TestDeletesRouteByDestination(t *testing.T) {
	r := mkRouter(1, 10)
	local := &wire.BulkRequest{Header: wire.Header{Op: wire.OpDelete, Src: 1, Dst: 1}}
	remote := map[int32]*wire.BulkRequest{}

	items := []opitem.DeleteItem{
		{Dest: opitem.Destination{DatastoreID: 0, Rank: 0, Offset: 0, Valid: true}, Subject: blob.NewReference([]byte("s"), blob.Byte), Predicate: blob.NewReference([]byte("p"), blob.Byte)},
		{Dest: opitem.Destination{DatastoreID: 1, Rank: 1, Offset: 0, Valid: true}, Subject: blob.NewReference([]byte("s2"), blob.Byte), Predicate: blob.NewReference([]byte("p"), blob.Byte)},
	}
	remaining, dropped, placed := r.Deletes(items, local, remote)
	assert.Empty(t, remaining)
	assert.Zero(t, dropped)
	assert.Len(t, local.Deletes, 1)
	require.Contains(t, remote, int32(0))
	assert.Len(t, remote[0].Deletes, 1)
	assert.Len(t, placed[1], 1)
	assert.Len(t, placed[0], 1)
}

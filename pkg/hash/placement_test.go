package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPlacementBijection checks that GetRank(GetID(rank, offset)) == rank
// and GetOffset(GetID(rank, offset)) == offset for every valid
// (rank, offset), and the inverse for every valid id.
func TestPlacementBijection(t *testing.T) {
	configs := []Placement{
		{ClientRatio: 1, ServerRatio: 1, DatastoresPerServer: 1, WorldSize: 4},
		{ClientRatio: 2, ServerRatio: 1, DatastoresPerServer: 3, WorldSize: 10},
		{ClientRatio: 4, ServerRatio: 2, DatastoresPerServer: 2, WorldSize: 17},
	}

	for _, p := range configs {
		for rank := 0; rank < p.WorldSize; rank++ {
			if !p.IsRangeServer(rank) {
				continue
			}
			for offset := 0; offset < p.DatastoresPerServer; offset++ {
				id := p.GetID(rank, offset)
				assert.GreaterOrEqual(t, id, 0)
				assert.Equal(t, rank, p.GetRank(id))
				assert.Equal(t, offset, p.GetOffset(id))
			}
		}

		for id := 0; id < p.TotalDatastores(); id++ {
			rank := p.GetRank(id)
			offset := p.GetOffset(id)
			assert.Equal(t, id, p.GetID(rank, offset))
		}
	}
}

func TestIsRangeServer(t *testing.T) {
	tests := []struct {
		rank, clientRatio, serverRatio int
		want                           bool
	}{
		{rank: 0, clientRatio: 2, serverRatio: 1, want: true},
		{rank: 1, clientRatio: 2, serverRatio: 1, want: false},
		{rank: 2, clientRatio: 2, serverRatio: 1, want: true},
		{rank: 3, clientRatio: 4, serverRatio: 2, want: false},
		{rank: 4, clientRatio: 4, serverRatio: 2, want: true},
		{rank: 1, clientRatio: 1, serverRatio: 1, want: true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRangeServer(tt.rank, tt.clientRatio, tt.serverRatio))
	}
}

func TestGetIDRejectsInvalid(t *testing.T) {
	p := Placement{ClientRatio: 2, ServerRatio: 1, DatastoresPerServer: 2, WorldSize: 10}
	assert.Equal(t, -1, p.GetID(1, 0))  // rank 1 is not a server
	assert.Equal(t, -1, p.GetID(0, 5))  // offset too large
	assert.Equal(t, -1, p.GetID(20, 0)) // rank out of world
}

func TestGetRankRejectsInvalid(t *testing.T) {
	p := Placement{ClientRatio: 2, ServerRatio: 1, DatastoresPerServer: 2, WorldSize: 4}
	assert.Equal(t, -1, p.GetRank(-1))
	assert.Equal(t, -1, p.GetRank(p.TotalDatastores()))
}

func TestSingleDatastoreMode(t *testing.T) {
	p := Placement{ClientRatio: 1, ServerRatio: 1, DatastoresPerServer: 1, WorldSize: 1}
	assert.Equal(t, 0, p.GetID(0, 0))
	assert.Equal(t, 0, p.GetRank(0))
	assert.Equal(t, 0, p.GetOffset(0))
}

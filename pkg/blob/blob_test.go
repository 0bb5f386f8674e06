package blob

import (
	"testing"

	"github.com/cuemby/rangedb/pkg/cursor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobInvariants(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "single byte", data: []byte{0x42}},
		{name: "multi byte", data: []byte("subject-value")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewOwning(tt.data, Byte)
			assert.Equal(t, len(tt.data) == 0, b.Empty())
			assert.Equal(t, len(tt.data), b.Len())
		})
	}
}

func TestBlobPackUnpackRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		t    DataType
	}{
		{name: "bytes", data: []byte("s1"), t: Byte},
		{name: "empty", data: nil, t: Pointer},
		{name: "numeric-tagged passthrough", data: []byte{1, 2, 3, 4}, t: Int32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewReference(tt.data, tt.t)

			buf := make([]byte, src.PackSize())
			w := cursor.NewWriter(buf)
			require.NoError(t, src.Pack(w))

			r := cursor.NewReader(w.Bytes())
			got, err := Unpack(r, tt.t, true)
			require.NoError(t, err)

			assert.True(t, src.Equal(got))
			assert.Equal(t, tt.t, got.Type())
			assert.True(t, got.Owning())
		})
	}
}

func TestBlobPackShortBuffer(t *testing.T) {
	b := NewReference([]byte("too long for this buffer"), Byte)
	w := cursor.NewWriter(make([]byte, 2))
	err := b.Pack(w)
	require.Error(t, err)
}

func TestBlobReleaseIdempotent(t *testing.T) {
	owned := NewOwning([]byte("x"), Byte)
	owned.Release()
	assert.True(t, owned.Empty())
	owned.Release()
	assert.True(t, owned.Empty())

	ref := NewReference([]byte("y"), Byte)
	ref.Release()
	assert.Equal(t, 1, ref.Len())
}

func TestEqualityIgnoresDataType(t *testing.T) {
	a := NewReference([]byte("same"), Int32)
	b := NewReference([]byte("same"), Float)
	assert.True(t, a.Equal(b))
}

func TestDataTypeNumeric(t *testing.T) {
	numeric := []DataType{Int32, Int64, UInt32, UInt64, Float, Double}
	for _, dt := range numeric {
		assert.True(t, dt.Numeric(), dt.String())
	}
	nonNumeric := []DataType{Byte, Pointer, Tracked}
	for _, dt := range nonNumeric {
		assert.False(t, dt.Numeric(), dt.String())
	}
}
